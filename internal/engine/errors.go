package engine

// Error is the sentinel returned by every fallible call.
const Error = -1

// ErrorCode is the cause recorded by the most recent failing call on an object.
type ErrorCode int

const (
	Success ErrorCode = iota
	NotEnoughRandom
	OutputBufferTooSmall
	BadMessageVersion
	BadMessageFormat
	BadMessageMAC
	BadMessageKeyID
	InvalidBase64
	BadAccountKey
	UnknownPickleVersion
	CorruptedPickle
	BadSessionKey
	UnknownMessageIndex
	BadSignature
	InputBufferTooSmall
	TooManyOneTimeKeys
	NotInitialised
	AlreadyInitialised
)

var codeNames = [...]string{
	Success:              "SUCCESS",
	NotEnoughRandom:      "NOT_ENOUGH_RANDOM",
	OutputBufferTooSmall: "OUTPUT_BUFFER_TOO_SMALL",
	BadMessageVersion:    "BAD_MESSAGE_VERSION",
	BadMessageFormat:     "BAD_MESSAGE_FORMAT",
	BadMessageMAC:        "BAD_MESSAGE_MAC",
	BadMessageKeyID:      "BAD_MESSAGE_KEY_ID",
	InvalidBase64:        "INVALID_BASE64",
	BadAccountKey:        "BAD_ACCOUNT_KEY",
	UnknownPickleVersion: "UNKNOWN_PICKLE_VERSION",
	CorruptedPickle:      "CORRUPTED_PICKLE",
	BadSessionKey:        "BAD_SESSION_KEY",
	UnknownMessageIndex:  "UNKNOWN_MESSAGE_INDEX",
	BadSignature:         "BAD_SIGNATURE",
	InputBufferTooSmall:  "INPUT_BUFFER_TOO_SMALL",
	TooManyOneTimeKeys:   "TOO_MANY_ONE_TIME_KEYS",
	NotInitialised:       "NOT_INITIALISED",
	AlreadyInitialised:   "ALREADY_INITIALISED",
}

func (c ErrorCode) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "UNKNOWN_ERROR"
}

// object carries the last-error slot shared by every engine object.
type object struct {
	lastError ErrorCode
}

// LastError returns the cause of the most recent failure on this object.
func (o *object) LastError() ErrorCode { return o.lastError }

func (o *object) fail(code ErrorCode) int {
	o.lastError = code
	return Error
}
