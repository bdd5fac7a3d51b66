package crypto

import "crypto/sha256"

// SHA256Len is the length of the base64 digest written by EncodeSHA256.
var SHA256Len = Base64Len(sha256.Size)

// EncodeSHA256 hashes the concatenation of parts and writes the unpadded
// base64 digest to dst, which must hold SHA256Len bytes.
func EncodeSHA256(dst []byte, parts ...[]byte) int {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return EncodeBase64(dst, h.Sum(nil))
}
