package olm

import (
	"olmkit/internal/engine"
	"olmkit/internal/scratch"
)

// newScope opens the scratch scope for one call. Tests swap it to inspect
// the buffers a call used.
var newScope = func() *scratch.Scope { return scratch.New() }

func random(s *scratch.Scope, n int) ([]byte, error) {
	b, err := s.Random(n)
	if err != nil {
		log.Error().Int("bytes", n).Msg("secure random source failed")
		return nil, ErrRandom
	}
	return b, nil
}

// clone copies b out of a scratch buffer before the scope wipes it.
func clone(b []byte) []byte { return append([]byte(nil), b...) }

// noCopy makes go vet flag copies of objects that own engine state.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// LibraryVersion reports the engine version.
func LibraryVersion() (major, minor, patch int) {
	return engine.VersionMajor, engine.VersionMinor, engine.VersionPatch
}
