// Package crypto exposes the minimal primitives used by the engine.
//
// Contents
//
//   - X25519 key derivation from caller seeds, clamping and Diffie-Hellman
//     (X25519FromSeed, DH)
//   - Ed25519 key derivation, signing and verification (Ed25519FromSeed,
//     SignEd25519, VerifyEd25519)
//   - HKDF-SHA-256 expansion and a one-shot ChaCha20-Poly1305 AEAD (HKDF,
//     Seal, Open)
//   - Unpadded base64, including an in-place decoder (B64, DecodeBase64InPlace)
//   - base64 SHA-256 digests (EncodeSHA256)
//
// # Notes
//
// Nothing in this package reads from a random source. Every key is derived
// from bytes supplied by the caller so the binding layer controls where
// randomness comes from and when it is wiped.
package crypto
