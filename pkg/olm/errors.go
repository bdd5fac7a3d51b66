package olm

import (
	"errors"
	"fmt"

	"olmkit/internal/engine"
)

// Code is an engine error code such as "BAD_MESSAGE_MAC".
type Code string

const (
	CodeNotEnoughRandom      Code = "NOT_ENOUGH_RANDOM"
	CodeOutputBufferTooSmall Code = "OUTPUT_BUFFER_TOO_SMALL"
	CodeBadMessageVersion    Code = "BAD_MESSAGE_VERSION"
	CodeBadMessageFormat     Code = "BAD_MESSAGE_FORMAT"
	CodeBadMessageMAC        Code = "BAD_MESSAGE_MAC"
	CodeBadMessageKeyID      Code = "BAD_MESSAGE_KEY_ID"
	CodeInvalidBase64        Code = "INVALID_BASE64"
	CodeBadAccountKey        Code = "BAD_ACCOUNT_KEY"
	CodeUnknownPickleVersion Code = "UNKNOWN_PICKLE_VERSION"
	CodeCorruptedPickle      Code = "CORRUPTED_PICKLE"
	CodeBadSessionKey        Code = "BAD_SESSION_KEY"
	CodeUnknownMessageIndex  Code = "UNKNOWN_MESSAGE_INDEX"
	CodeBadSignature         Code = "BAD_SIGNATURE"
	CodeInputBufferTooSmall  Code = "INPUT_BUFFER_TOO_SMALL"
	CodeTooManyOneTimeKeys   Code = "TOO_MANY_ONE_TIME_KEYS"
	CodeNotInitialised       Code = "NOT_INITIALISED"
	CodeAlreadyInitialised   Code = "ALREADY_INITIALISED"
)

// Error is an engine failure. Family is one of "account", "session",
// "outbound_group_session", "inbound_group_session" or "utility".
type Error struct {
	Family string
	Op     string
	Code   Code
}

func (e *Error) Error() string {
	if e.Family == "" {
		return "olm: " + string(e.Code)
	}
	return fmt.Sprintf("olm: %s.%s: %s", e.Family, e.Op, e.Code)
}

// Is matches any *Error carrying the same code when target is one of the
// code sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Family == "" && t.Op == "" {
		return t.Code == e.Code
	}
	return *t == *e
}

var (
	ErrNotEnoughRandom      = &Error{Code: CodeNotEnoughRandom}
	ErrOutputBufferTooSmall = &Error{Code: CodeOutputBufferTooSmall}
	ErrBadMessageVersion    = &Error{Code: CodeBadMessageVersion}
	ErrBadMessageFormat     = &Error{Code: CodeBadMessageFormat}
	ErrBadMessageMAC        = &Error{Code: CodeBadMessageMAC}
	ErrBadMessageKeyID      = &Error{Code: CodeBadMessageKeyID}
	ErrInvalidBase64        = &Error{Code: CodeInvalidBase64}
	ErrBadAccountKey        = &Error{Code: CodeBadAccountKey}
	ErrUnknownPickleVersion = &Error{Code: CodeUnknownPickleVersion}
	ErrCorruptedPickle      = &Error{Code: CodeCorruptedPickle}
	ErrBadSessionKey        = &Error{Code: CodeBadSessionKey}
	ErrUnknownMessageIndex  = &Error{Code: CodeUnknownMessageIndex}
	ErrBadSignature         = &Error{Code: CodeBadSignature}
	ErrInputBufferTooSmall  = &Error{Code: CodeInputBufferTooSmall}
	ErrTooManyOneTimeKeys   = &Error{Code: CodeTooManyOneTimeKeys}
	ErrNotInitialised       = &Error{Code: CodeNotInitialised}
	ErrAlreadyInitialised   = &Error{Code: CodeAlreadyInitialised}
)

var (
	// ErrFreed is returned by every method called after Free.
	ErrFreed = errors.New("olm: object has been freed")
	// ErrRandom means the secure random source failed. It is never retried.
	ErrRandom = errors.New("olm: secure random source failed")
	// ErrNotUTF8 is returned when text output was requested for a plaintext
	// that is not valid UTF-8.
	ErrNotUTF8 = errors.New("olm: plaintext is not valid UTF-8")
	// ErrBadKDF rejects pickle key derivation parameters out of bounds.
	ErrBadKDF = errors.New("olm: pickle kdf parameters out of range")
)

// translator wraps engine calls of one object family. Every call checks the
// sentinel and, on failure, reads the object's last error.
type translator struct {
	family    string
	lastError func() engine.ErrorCode
}

func (t translator) call(op string, fn func() int) (int, error) {
	opsTotal.WithLabelValues(t.family, op).Inc()
	r := fn()
	if r != engine.Error {
		return r, nil
	}
	code := Code(t.lastError().String())
	errorsTotal.WithLabelValues(t.family, op, string(code)).Inc()
	log.Debug().
		Str("family", t.family).
		Str("op", op).
		Str("code", string(code)).
		Msg("engine call failed")
	return r, &Error{Family: t.family, Op: op, Code: code}
}
