package message

import (
	"crypto/ed25519"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	messageIndexField    protowire.Number = 1
	groupCiphertextField protowire.Number = 2
)

// GroupMessage is a broadcast ratchet message. The signature covers every
// byte before it.
type GroupMessage struct {
	MessageIndex uint32
	Ciphertext   []byte
	Signature    []byte
}

// Header returns the version byte and the message index field.
func (g *GroupMessage) Header() []byte {
	b := make([]byte, 0, 1+protowire.SizeTag(messageIndexField)+protowire.SizeVarint(uint64(g.MessageIndex)))
	b = append(b, Version)
	b = protowire.AppendTag(b, messageIndexField, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(g.MessageIndex))
}

// Unsigned returns the signed portion of the message.
func (g *GroupMessage) Unsigned() []byte {
	b := g.Header()
	b = protowire.AppendTag(b, groupCiphertextField, protowire.BytesType)
	return protowire.AppendBytes(b, g.Ciphertext)
}

// EncodedLength returns the wire length, signature included, for a
// ciphertext of n bytes.
func (g *GroupMessage) EncodedLength(n int) int {
	return 1 +
		protowire.SizeTag(messageIndexField) + protowire.SizeVarint(uint64(g.MessageIndex)) +
		protowire.SizeTag(groupCiphertextField) + protowire.SizeBytes(n) +
		ed25519.SignatureSize
}

// DecodeGroup parses b and returns the message along with the signed prefix
// and the header. The returned slices alias b.
func DecodeGroup(b []byte) (g GroupMessage, signed, header []byte, err error) {
	if len(b) == 0 {
		return g, nil, nil, ErrBadFormat
	}
	if b[0] != Version {
		return g, nil, nil, ErrBadVersion
	}
	if len(b) < 1+ed25519.SignatureSize {
		return g, nil, nil, ErrBadFormat
	}
	body := b[:len(b)-ed25519.SignatureSize]
	var (
		hasIndex  bool
		headerEnd int
	)
	pos := 1
	err = walk(body, &pos, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch {
		case num == messageIndexField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(rest)
			if n < 0 || v > 0xFFFFFFFF {
				return 0, ErrBadFormat
			}
			g.MessageIndex, hasIndex = uint32(v), true
			return n, nil
		case num == groupCiphertextField && typ == protowire.BytesType:
			headerEnd = pos
			v, n := protowire.ConsumeBytes(rest)
			if n < 0 {
				return 0, ErrBadFormat
			}
			g.Ciphertext = v
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return g, nil, nil, err
	}
	if !hasIndex || g.Ciphertext == nil {
		return g, nil, nil, ErrBadFormat
	}
	g.Signature = b[len(body):]
	return g, body, b[:headerEnd], nil
}
