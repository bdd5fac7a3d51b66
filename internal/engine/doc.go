// Package engine is the primitive cryptographic engine behind the olm binding.
//
// It follows a C style calling convention on purpose: every fallible call
// returns an int that is either a length or the sentinel Error, the cause of
// the last failure is kept per object and read back with LastError, and
// results are written into caller supplied buffers whose sizes are obtained
// from the matching *Length query first. Random input is never read here; the
// caller queries how many bytes an operation needs and passes them in.
//
// Keys, signatures, messages, session keys and pickles cross this boundary as
// unpadded base64 text. Calls that parse a message decode it in place, so the
// input buffer is destroyed even when the call fails.
//
// No object is safe for concurrent use.
package engine
