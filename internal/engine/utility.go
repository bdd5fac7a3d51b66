package engine

import (
	"olmkit/internal/crypto"
	"olmkit/internal/domain"
)

// Utility hosts the stateless helpers.
type Utility struct {
	object
}

func NewUtility() *Utility { return &Utility{} }

func (u *Utility) Clear() { u.lastError = Success }

func (u *Utility) SHA256Length() int { return crypto.SHA256Len }

// SHA256 writes the base64 SHA-256 digest of input to out.
func (u *Utility) SHA256(input, out []byte) int {
	if len(out) < u.SHA256Length() {
		return u.fail(OutputBufferTooSmall)
	}
	return crypto.EncodeSHA256(out, input)
}

// ED25519Verify checks the base64 signature of msg under the base64 key. The
// signature is decoded in place.
func (u *Utility) ED25519Verify(key, msg, signature []byte) int {
	raw, err := crypto.DecodeBase64(key)
	if err != nil {
		return u.fail(InvalidBase64)
	}
	pub, ok := domain.Ed25519PublicFromBytes(raw)
	if !ok {
		return u.fail(InvalidBase64)
	}
	n, err := crypto.DecodeBase64InPlace(signature)
	if err != nil {
		return u.fail(InvalidBase64)
	}
	if n != crypto.SignatureSize {
		return u.fail(BadMessageFormat)
	}
	if !crypto.VerifyEd25519(pub, msg, signature[:n]) {
		return u.fail(BadSignature)
	}
	return 0
}
