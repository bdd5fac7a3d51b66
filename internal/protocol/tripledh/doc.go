// Package tripledh implements the three-way Diffie-Hellman handshake that
// bootstraps a pairwise ratchet session.
//
// # Overview
//
// The initiator combines its long-term identity key and a fresh base key with
// the responder's identity key and one of the responder's published one-time
// keys. Both sides concatenate the same three shared secrets in the same
// order:
//
//	initiator: DH(IKa, OTKb) | DH(EKa, IKb) | DH(EKa, OTKb)
//	responder: DH(OTKb, IKa) | DH(IKb, EKa) | DH(OTKb, EKa)
//
// The 96-byte result is handed to the ratchet, which derives the first root
// and chain keys from it. Callers own the returned buffer and must wipe it.
package tripledh
