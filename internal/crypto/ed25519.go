package crypto

import (
	"crypto/ed25519"

	"olmkit/internal/domain"
)

const (
	// Ed25519SeedSize is the amount of random input consumed per signing key.
	Ed25519SeedSize = ed25519.SeedSize
	// SignatureSize is the length of a raw Ed25519 signature.
	SignatureSize = ed25519.SignatureSize
)

// Ed25519FromSeed derives a signing key pair from caller supplied random bytes.
func Ed25519FromSeed(seed []byte) (domain.Ed25519KeyPair, error) {
	var kp domain.Ed25519KeyPair
	if len(seed) < Ed25519SeedSize {
		return kp, errShortSeed
	}
	sk := ed25519.NewKeyFromSeed(seed[:Ed25519SeedSize])
	copy(kp.Private[:], sk)
	copy(kp.Public[:], sk[Ed25519SeedSize:])
	Wipe(sk)
	return kp, nil
}

// SignEd25519 signs msg with priv and returns the signature.
func SignEd25519(priv domain.Ed25519Private, msg []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv[:]), msg)
}

// VerifyEd25519 verifies sig over msg with pub.
func VerifyEd25519(pub domain.Ed25519Public, msg, sig []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}
