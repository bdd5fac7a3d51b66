package olm

import "unicode/utf8"

// Payload is a plaintext or signed message, either UTF-8 text or raw bytes.
// The variant is fixed at construction and only matters at the boundary; the
// engine always sees bytes.
type Payload struct {
	b    []byte
	text bool
}

// Text wraps a string.
func Text(s string) Payload { return Payload{b: []byte(s), text: true} }

// Bytes wraps a byte slice. The slice is not copied.
func Bytes(b []byte) Payload { return Payload{b: b} }

func (p Payload) IsText() bool { return p.text }

// Bytes returns the raw content.
func (p Payload) Bytes() []byte { return p.b }

// String returns the content as text.
func (p Payload) String() string { return string(p.b) }

func (p Payload) Len() int { return len(p.b) }

// Format selects how decrypted plaintext is returned.
type Format int

const (
	// AsText requires the plaintext to be valid UTF-8.
	AsText Format = iota
	// AsBytes returns the plaintext untouched.
	AsBytes
)

func (f Format) payload(b []byte) (Payload, error) {
	if f == AsBytes {
		return Bytes(b), nil
	}
	if !utf8.Valid(b) {
		return Payload{}, ErrNotUTF8
	}
	return Payload{b: b, text: true}, nil
}
