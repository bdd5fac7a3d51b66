// Package ratchet implements the pairwise double ratchet.
//
// A State holds a root key, at most one sending chain and a short list of
// receiving chains, newest first. Each chain is a hash chain: every step
// yields one message key and the next chain key. When a message arrives under
// a ratchet key we have not seen, a Diffie-Hellman step with our current
// sending ratchet key derives a new root and a new receiving chain, and the
// sending chain is dropped so the next Encrypt starts a fresh one.
//
// Message keys for messages that arrive out of order are kept in a bounded
// list so they can still be decrypted later. A key is deleted after first use.
//
// Decrypt only commits state once the message authenticates, so a forged or
// corrupted message leaves the State as it was.
//
// Concurrency: State is NOT safe for concurrent use. Callers must serialise
// access per session.
package ratchet
