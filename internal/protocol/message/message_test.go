package message

import (
	"bytes"
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestMessageRoundTrip(t *testing.T) {
	m := Message{RatchetKey: bytes.Repeat([]byte{7}, 32), Counter: 300, Ciphertext: []byte("ciphertext")}
	wire := m.Encode()
	if len(wire) != m.EncodedLength(len(m.Ciphertext)) {
		t.Fatalf("encoded length mismatch: %d vs %d", len(wire), m.EncodedLength(len(m.Ciphertext)))
	}
	got, header, err := Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Counter != 300 || !bytes.Equal(got.RatchetKey, m.RatchetKey) || !bytes.Equal(got.Ciphertext, m.Ciphertext) {
		t.Fatalf("decoded message differs: %+v", got)
	}
	if !bytes.Equal(header, m.Header()) {
		t.Fatalf("header mismatch")
	}
}

func TestMessageSkipsUnknownFields(t *testing.T) {
	m := Message{RatchetKey: []byte{1, 2, 3}, Counter: 1, Ciphertext: []byte{9}}
	wire := m.Encode()
	wire = protowire.AppendTag(wire, 9, protowire.VarintType)
	wire = protowire.AppendVarint(wire, 42)
	got, _, err := Decode(wire)
	if err != nil {
		t.Fatalf("decode with trailing unknown field: %v", err)
	}
	if got.Counter != 1 {
		t.Fatalf("counter = %d", got.Counter)
	}
}

func TestMessageRejectsBadInput(t *testing.T) {
	m := Message{RatchetKey: []byte{1}, Counter: 1, Ciphertext: []byte{2}}
	wire := m.Encode()

	bad := append([]byte(nil), wire...)
	bad[0] = 2
	if _, _, err := Decode(bad); !errors.Is(err, ErrBadVersion) {
		t.Fatalf("expected ErrBadVersion, got %v", err)
	}
	if _, _, err := Decode(nil); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat for empty input, got %v", err)
	}
	if _, _, err := Decode(wire[:len(wire)-1]); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat for truncated input, got %v", err)
	}
	if _, _, err := Decode([]byte{Version}); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat for missing fields, got %v", err)
	}
}

func TestPreKeyRoundTrip(t *testing.T) {
	inner := (&Message{RatchetKey: []byte{4}, Counter: 0, Ciphertext: []byte("x")}).Encode()
	p := PreKeyMessage{
		OneTimeKey:  bytes.Repeat([]byte{1}, 32),
		BaseKey:     bytes.Repeat([]byte{2}, 32),
		IdentityKey: bytes.Repeat([]byte{3}, 32),
		Message:     inner,
	}
	wire := p.Encode()
	if len(wire) != p.EncodedLength(len(inner)) {
		t.Fatalf("encoded length mismatch")
	}
	got, err := DecodePreKey(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got.BaseKey, p.BaseKey) || !bytes.Equal(got.Message, inner) {
		t.Fatalf("decoded pre-key message differs")
	}
	if _, err := DecodePreKey(wire[:10]); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat, got %v", err)
	}
}

func TestGroupRoundTrip(t *testing.T) {
	g := GroupMessage{MessageIndex: 5, Ciphertext: []byte("group")}
	sig := bytes.Repeat([]byte{0xAA}, 64)
	wire := append(g.Unsigned(), sig...)
	if len(wire) != g.EncodedLength(len(g.Ciphertext)) {
		t.Fatalf("encoded length mismatch")
	}
	got, signed, header, err := DecodeGroup(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.MessageIndex != 5 || !bytes.Equal(got.Signature, sig) {
		t.Fatalf("decoded group message differs: %+v", got)
	}
	if !bytes.Equal(signed, g.Unsigned()) || !bytes.Equal(header, g.Header()) {
		t.Fatalf("signed prefix or header mismatch")
	}
	if _, _, _, err := DecodeGroup(wire[:40]); err == nil {
		t.Fatalf("expected error for short group message")
	}
}
