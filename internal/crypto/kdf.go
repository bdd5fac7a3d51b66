package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF expands secret with salt and info and fills each of outs in order.
func HKDF(secret, salt, info []byte, outs ...[]byte) {
	r := hkdf.New(sha256.New, secret, salt, info)
	for _, o := range outs {
		// hkdf only fails past 255 blocks, far beyond any caller here.
		_, _ = io.ReadFull(r, o)
	}
}
