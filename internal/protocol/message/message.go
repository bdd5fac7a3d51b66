package message

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// Version is the only protocol version this package speaks.
const Version = 3

var (
	ErrBadVersion = errors.New("bad message version")
	ErrBadFormat  = errors.New("bad message format")
)

const (
	ratchetKeyField protowire.Number = 1
	counterField    protowire.Number = 2
	ciphertextField protowire.Number = 4
)

// Message is a single pairwise ratchet message.
type Message struct {
	RatchetKey []byte
	Counter    uint32
	Ciphertext []byte
}

// Header returns the version byte and every field preceding the ciphertext.
// It is what the ratchet authenticates as associated data.
func (m *Message) Header() []byte {
	b := make([]byte, 0, m.headerLen())
	b = append(b, Version)
	b = protowire.AppendTag(b, ratchetKeyField, protowire.BytesType)
	b = protowire.AppendBytes(b, m.RatchetKey)
	b = protowire.AppendTag(b, counterField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Counter))
	return b
}

// Encode returns the full wire form.
func (m *Message) Encode() []byte {
	b := m.Header()
	b = protowire.AppendTag(b, ciphertextField, protowire.BytesType)
	return protowire.AppendBytes(b, m.Ciphertext)
}

// EncodedLength returns len(m.Encode()) for a ciphertext of n bytes.
func (m *Message) EncodedLength(n int) int {
	return m.headerLen() + protowire.SizeTag(ciphertextField) + protowire.SizeBytes(n)
}

func (m *Message) headerLen() int {
	return 1 +
		protowire.SizeTag(ratchetKeyField) + protowire.SizeBytes(len(m.RatchetKey)) +
		protowire.SizeTag(counterField) + protowire.SizeVarint(uint64(m.Counter))
}

// Decode parses b. The returned slices alias b.
func Decode(b []byte) (Message, []byte, error) {
	var (
		m          Message
		hasKey     bool
		hasCounter bool
		hasCT      bool
		headerEnd  int
	)
	if len(b) == 0 {
		return m, nil, ErrBadFormat
	}
	if b[0] != Version {
		return m, nil, ErrBadVersion
	}
	pos := 1
	err := walk(b, &pos, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch {
		case num == ratchetKeyField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(rest)
			if n < 0 {
				return 0, ErrBadFormat
			}
			m.RatchetKey, hasKey = v, true
			return n, nil
		case num == counterField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(rest)
			if n < 0 || v > 0xFFFFFFFF {
				return 0, ErrBadFormat
			}
			m.Counter, hasCounter = uint32(v), true
			return n, nil
		case num == ciphertextField && typ == protowire.BytesType:
			headerEnd = pos
			v, n := protowire.ConsumeBytes(rest)
			if n < 0 {
				return 0, ErrBadFormat
			}
			m.Ciphertext, hasCT = v, true
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return m, nil, err
	}
	if !hasKey || !hasCounter || !hasCT {
		return m, nil, ErrBadFormat
	}
	return m, b[:headerEnd], nil
}

// walk iterates over the tagged fields of b starting at *pos. fn consumes the
// value of a known field and returns its length, or -1 to have it skipped.
// *pos always points at the tag of the field being handed to fn.
func walk(b []byte, pos *int, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for *pos < len(b) {
		num, typ, n := protowire.ConsumeTag(b[*pos:])
		if n < 0 {
			return ErrBadFormat
		}
		rest := b[*pos+n:]
		used, err := fn(num, typ, rest)
		if err != nil {
			return err
		}
		if used < 0 {
			used = protowire.ConsumeFieldValue(num, typ, rest)
			if used < 0 {
				return ErrBadFormat
			}
		}
		*pos += n + used
	}
	return nil
}
