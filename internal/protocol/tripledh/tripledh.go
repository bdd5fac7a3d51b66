package tripledh

import (
	"olmkit/internal/crypto"
	"olmkit/internal/domain"
	"olmkit/internal/util/memzero"
)

// SecretSize is the length of the concatenated handshake secret.
const SecretSize = 3 * 32

// InitiatorSecret derives the handshake secret for the side that creates the
// outbound session.
func InitiatorSecret(
	ourIdentity domain.X25519Private,
	ourBase domain.X25519Private,
	peerIdentity domain.X25519Public,
	peerOneTime domain.X25519Public,
) ([]byte, error) {
	return concat(
		pair{ourIdentity, peerOneTime},
		pair{ourBase, peerIdentity},
		pair{ourBase, peerOneTime},
	)
}

// ResponderSecret derives the handshake secret for the side that receives the
// first pre-key message.
func ResponderSecret(
	ourIdentity domain.X25519Private,
	ourOneTime domain.X25519Private,
	peerIdentity domain.X25519Public,
	peerBase domain.X25519Public,
) ([]byte, error) {
	return concat(
		pair{ourOneTime, peerIdentity},
		pair{ourIdentity, peerBase},
		pair{ourOneTime, peerBase},
	)
}

type pair struct {
	priv domain.X25519Private
	pub  domain.X25519Public
}

func concat(pairs ...pair) ([]byte, error) {
	out := make([]byte, 0, SecretSize)
	for _, p := range pairs {
		shared, err := crypto.DH(p.priv, p.pub)
		if err != nil {
			memzero.Zero(out[:cap(out)])
			return nil, err
		}
		out = append(out, shared[:]...)
		memzero.Zero(shared[:])
	}
	return out, nil
}
