package domain

import (
	"encoding/base64"
	"fmt"
)

// ------------- X25519 -------------

// X25519Private is a clamped Curve25519 private scalar.
type X25519Private [32]byte

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

func (k X25519Private) Slice() []byte { return k[:] }
func (k X25519Public) Slice() []byte  { return k[:] }

// X25519KeyPair holds both halves of a Curve25519 key.
type X25519KeyPair struct {
	Private X25519Private `json:"priv"`
	Public  X25519Public  `json:"pub"`
}

func MustX25519Public(b []byte) X25519Public {
	if len(b) != 32 {
		panic(fmt.Errorf("X25519 public: want 32 bytes, got %d", len(b)))
	}
	var out X25519Public
	copy(out[:], b)
	return out
}

// X25519PublicFromBytes is the non-panicking form of MustX25519Public.
func X25519PublicFromBytes(b []byte) (X25519Public, bool) {
	var out X25519Public
	if len(b) != len(out) {
		return out, false
	}
	copy(out[:], b)
	return out, true
}

// ------------- Ed25519 -------------

// Ed25519Private uses the crypto/ed25519 private key layout (seed || public).
type Ed25519Private [64]byte

// Ed25519Public is an Ed25519 verification key.
type Ed25519Public [32]byte

func (k Ed25519Private) Slice() []byte { return k[:] }
func (k Ed25519Public) Slice() []byte  { return k[:] }

// Ed25519KeyPair holds both halves of a signing key.
type Ed25519KeyPair struct {
	Private Ed25519Private `json:"priv"`
	Public  Ed25519Public  `json:"pub"`
}

// Ed25519PublicFromBytes copies b into an Ed25519Public when the length fits.
func Ed25519PublicFromBytes(b []byte) (Ed25519Public, bool) {
	var out Ed25519Public
	if len(b) != len(out) {
		return out, false
	}
	copy(out[:], b)
	return out, true
}

// ------------- Symmetric -------------

// SymmetricKey is a 32-byte root, chain or message key.
type SymmetricKey [32]byte

func (k SymmetricKey) Slice() []byte { return k[:] }

// ------------- Text form -------------

// Keys marshal as unpadded base64.

func (k X25519Private) MarshalText() ([]byte, error)   { return marshalKey(k[:]) }
func (k *X25519Private) UnmarshalText(b []byte) error  { return unmarshalKey(k[:], b) }
func (k X25519Public) MarshalText() ([]byte, error)    { return marshalKey(k[:]) }
func (k *X25519Public) UnmarshalText(b []byte) error   { return unmarshalKey(k[:], b) }
func (k Ed25519Private) MarshalText() ([]byte, error)  { return marshalKey(k[:]) }
func (k *Ed25519Private) UnmarshalText(b []byte) error { return unmarshalKey(k[:], b) }
func (k Ed25519Public) MarshalText() ([]byte, error)   { return marshalKey(k[:]) }
func (k *Ed25519Public) UnmarshalText(b []byte) error  { return unmarshalKey(k[:], b) }
func (k SymmetricKey) MarshalText() ([]byte, error)    { return marshalKey(k[:]) }
func (k *SymmetricKey) UnmarshalText(b []byte) error   { return unmarshalKey(k[:], b) }

func marshalKey(k []byte) ([]byte, error) {
	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(k)))
	base64.RawStdEncoding.Encode(out, k)
	return out, nil
}

func unmarshalKey(dst, text []byte) error {
	if base64.RawStdEncoding.DecodedLen(len(text)) != len(dst) {
		return fmt.Errorf("key: want %d bytes, got %d base64 chars", len(dst), len(text))
	}
	_, err := base64.RawStdEncoding.Decode(dst, text)
	return err
}
