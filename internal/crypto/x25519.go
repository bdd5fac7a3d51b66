package crypto

import (
	"errors"

	"golang.org/x/crypto/curve25519"

	"olmkit/internal/domain"
	"olmkit/internal/util/memzero"
)

// X25519SeedSize is the amount of random input consumed per Curve25519 key.
const X25519SeedSize = 32

var errShortSeed = errors.New("seed too short")

// X25519FromSeed derives a Curve25519 key pair from caller supplied random
// bytes. The private key is clamped per RFC 7748.
func X25519FromSeed(seed []byte) (domain.X25519KeyPair, error) {
	var kp domain.X25519KeyPair
	if len(seed) < X25519SeedSize {
		return kp, errShortSeed
	}
	copy(kp.Private[:], seed[:X25519SeedSize])
	clamp(&kp.Private)
	pb, err := curve25519.X25519(kp.Private.Slice(), curve25519.Basepoint)
	if err != nil {
		memzero.Zero(kp.Private[:])
		return kp, err
	}
	copy(kp.Public[:], pb)
	return kp, nil
}

// DH computes X25519 Diffie-Hellman.
func DH(priv domain.X25519Private, pub domain.X25519Public) (out [32]byte, err error) {
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, err
	}
	copy(out[:], secret)
	memzero.Zero(secret)
	return out, nil
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
