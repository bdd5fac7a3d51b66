package crypto

import (
	"errors"

	"golang.org/x/crypto/chacha20poly1305"

	"olmkit/internal/util/memzero"
)

// Overhead is the number of bytes Seal adds to a plaintext.
const Overhead = chacha20poly1305.Overhead

// ErrAuth is returned by Open when authentication fails.
var ErrAuth = errors.New("message authentication failed")

// Seal encrypts plaintext under a one-shot message key. The AEAD key and
// nonce are both expanded from mk using info, so mk must never be reused.
func Seal(mk, info, ad, plaintext []byte) ([]byte, error) {
	key, nonce := expand(mk, info)
	defer memzero.Zero(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, ad), nil
}

// Open reverses Seal.
func Open(mk, info, ad, ciphertext []byte) ([]byte, error) {
	key, nonce := expand(mk, info)
	defer memzero.Zero(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, ErrAuth
	}
	return pt, nil
}

func expand(mk, info []byte) (key, nonce []byte) {
	key = make([]byte, chacha20poly1305.KeySize)
	nonce = make([]byte, chacha20poly1305.NonceSize)
	HKDF(mk, nil, info, key, nonce)
	return key, nonce
}
