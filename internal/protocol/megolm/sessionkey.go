package megolm

import (
	"encoding/binary"
	"errors"

	"olmkit/internal/crypto"
	"olmkit/internal/domain"
)

const (
	SessionKeyVersion = 2
	ExportVersion     = 1

	// SessionKeyLength is the raw length of a signed session key.
	SessionKeyLength = 1 + 4 + RatchetLength + 32 + crypto.SignatureSize
	// ExportLength is the raw length of an unsigned export.
	ExportLength = 1 + 4 + RatchetLength + 32
)

var (
	ErrBadSessionKey = errors.New("megolm: malformed session key")
	ErrBadSignature  = errors.New("megolm: bad session key signature")
)

// EncodeSessionKey serialises r with the signing key and signs the result.
func EncodeSessionKey(r *Ratchet, signer domain.Ed25519KeyPair) []byte {
	out := encode(SessionKeyVersion, r, signer.Public, SessionKeyLength)
	return append(out, crypto.SignEd25519(signer.Private, out)...)
}

// EncodeExport serialises r with the sender's public key, unsigned.
func EncodeExport(r *Ratchet, pub domain.Ed25519Public) []byte {
	return encode(ExportVersion, r, pub, ExportLength)
}

func encode(version byte, r *Ratchet, pub domain.Ed25519Public, size int) []byte {
	out := make([]byte, 0, size)
	out = append(out, version)
	out = binary.BigEndian.AppendUint32(out, r.Counter)
	for i := range r.Data {
		out = append(out, r.Data[i][:]...)
	}
	return append(out, pub[:]...)
}

// DecodeSessionKey parses a signed session key and checks its signature.
func DecodeSessionKey(b []byte) (*Ratchet, domain.Ed25519Public, error) {
	if len(b) != SessionKeyLength || b[0] != SessionKeyVersion {
		return nil, domain.Ed25519Public{}, ErrBadSessionKey
	}
	r, pub := decode(b)
	body := b[:ExportLength]
	if !crypto.VerifyEd25519(pub, body, b[ExportLength:]) {
		r.Clear()
		return nil, domain.Ed25519Public{}, ErrBadSignature
	}
	return r, pub, nil
}

// DecodeExport parses an unsigned export.
func DecodeExport(b []byte) (*Ratchet, domain.Ed25519Public, error) {
	if len(b) != ExportLength || b[0] != ExportVersion {
		return nil, domain.Ed25519Public{}, ErrBadSessionKey
	}
	r, pub := decode(b)
	return r, pub, nil
}

func decode(b []byte) (*Ratchet, domain.Ed25519Public) {
	r := &Ratchet{Counter: binary.BigEndian.Uint32(b[1:5])}
	for i := range r.Data {
		copy(r.Data[i][:], b[5+i*PartLength:])
	}
	var pub domain.Ed25519Public
	copy(pub[:], b[5+RatchetLength:])
	return r, pub
}
