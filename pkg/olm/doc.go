// Package olm is a safe binding over the olmkit engine: pairwise ratchet
// sessions, group ratchet sessions and the account that owns the identity
// keys behind them.
//
// # Objects
//
// Account, Session, OutboundGroupSession, InboundGroupSession and Utility each
// own one engine object. They are created by the New* and Unpickle*
// constructors and released with Free, after which every method returns
// ErrFreed. Objects must not be copied and are not safe for concurrent use;
// distinct objects are independent, except that RemoveOneTimeKeys mutates the
// Account a Session was created from.
//
// # Memory hygiene
//
// Every call stages its inputs and outputs in a scratch scope. Pickle keys,
// plaintext and random seeds are staged in secret buffers that are wiped
// before the call returns, whether it succeeded or not. Random input is read
// from crypto/rand, sized by asking the engine what the operation needs.
//
// # Errors
//
// Engine failures surface as *Error values carrying the object family, the
// operation and the engine's error code. Compare them with errors.Is against
// the Err* code sentinels:
//
//	if errors.Is(err, olm.ErrBadMessageMAC) { ... }
//
// Nothing is retried. A failed decrypt leaves the session usable.
//
// # Pickles
//
// Pickle seals an object's full state under a caller key; the matching
// Unpickle* constructor restores it. The key derivation applied to pickle keys
// is chosen with SetPickleKDF and recorded in each pickle.
package olm
