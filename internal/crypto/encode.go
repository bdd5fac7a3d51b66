package crypto

import (
	"encoding/base64"

	"olmkit/internal/util/memzero"
)

// b64 is the unpadded standard alphabet used for every key, signature,
// message and pickle crossing the engine boundary.
var b64 = base64.RawStdEncoding

// B64 returns unpadded standard base64.
func B64(b []byte) string { return b64.EncodeToString(b) }

// EncodeBase64 writes the encoding of src into dst and returns the number of
// bytes written. dst must hold at least Base64Len(len(src)) bytes.
func EncodeBase64(dst, src []byte) int {
	b64.Encode(dst, src)
	return b64.EncodedLen(len(src))
}

// Base64Len is the encoded length of n raw bytes.
func Base64Len(n int) int { return b64.EncodedLen(n) }

// DecodeBase64 decodes s into a freshly allocated slice.
func DecodeBase64(s []byte) ([]byte, error) {
	out := make([]byte, b64.DecodedLen(len(s)))
	n, err := b64.Decode(out, s)
	if err != nil {
		memzero.Zero(out)
		return nil, err
	}
	return out[:n], nil
}

// DecodeBase64InPlace decodes buf into its own prefix and returns the
// decoded length. The encoded input is destroyed either way.
func DecodeBase64InPlace(buf []byte) (int, error) {
	tmp := make([]byte, b64.DecodedLen(len(buf)))
	defer memzero.Zero(tmp)
	n, err := b64.Decode(tmp, buf)
	memzero.Zero(buf)
	if err != nil {
		return 0, err
	}
	copy(buf, tmp[:n])
	return n, nil
}

// Wipe zeroes the provided buffer.
func Wipe(b []byte) { memzero.Zero(b) }
