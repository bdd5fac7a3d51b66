package olm

import "github.com/rs/zerolog"

var log = zerolog.Nop()

// UseLogger sets the package logger. Only engine failures and object
// lifecycle events are logged, never keys, plaintext or pickles.
func UseLogger(l zerolog.Logger) {
	log = l.With().Str("pkg", "olm").Logger()
}
