package message

import "google.golang.org/protobuf/encoding/protowire"

const (
	oneTimeKeyField  protowire.Number = 1
	baseKeyField     protowire.Number = 2
	identityKeyField protowire.Number = 3
	innerField       protowire.Number = 4
)

// PreKeyMessage wraps the first ratchet message of an outbound session with
// the keys the receiver needs to derive the same handshake secret.
type PreKeyMessage struct {
	OneTimeKey  []byte
	BaseKey     []byte
	IdentityKey []byte
	Message     []byte
}

// Encode returns the full wire form.
func (p *PreKeyMessage) Encode() []byte {
	b := make([]byte, 0, p.EncodedLength(len(p.Message)))
	b = append(b, Version)
	b = protowire.AppendTag(b, oneTimeKeyField, protowire.BytesType)
	b = protowire.AppendBytes(b, p.OneTimeKey)
	b = protowire.AppendTag(b, baseKeyField, protowire.BytesType)
	b = protowire.AppendBytes(b, p.BaseKey)
	b = protowire.AppendTag(b, identityKeyField, protowire.BytesType)
	b = protowire.AppendBytes(b, p.IdentityKey)
	b = protowire.AppendTag(b, innerField, protowire.BytesType)
	return protowire.AppendBytes(b, p.Message)
}

// EncodedLength returns the wire length for an inner message of n bytes.
func (p *PreKeyMessage) EncodedLength(n int) int {
	return 1 +
		protowire.SizeTag(oneTimeKeyField) + protowire.SizeBytes(len(p.OneTimeKey)) +
		protowire.SizeTag(baseKeyField) + protowire.SizeBytes(len(p.BaseKey)) +
		protowire.SizeTag(identityKeyField) + protowire.SizeBytes(len(p.IdentityKey)) +
		protowire.SizeTag(innerField) + protowire.SizeBytes(n)
}

// DecodePreKey parses b. The returned slices alias b.
func DecodePreKey(b []byte) (PreKeyMessage, error) {
	var p PreKeyMessage
	if len(b) == 0 {
		return p, ErrBadFormat
	}
	if b[0] != Version {
		return p, ErrBadVersion
	}
	pos := 1
	err := walk(b, &pos, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		if typ != protowire.BytesType {
			return -1, nil
		}
		var dst *[]byte
		switch num {
		case oneTimeKeyField:
			dst = &p.OneTimeKey
		case baseKeyField:
			dst = &p.BaseKey
		case identityKeyField:
			dst = &p.IdentityKey
		case innerField:
			dst = &p.Message
		default:
			return -1, nil
		}
		v, n := protowire.ConsumeBytes(rest)
		if n < 0 {
			return 0, ErrBadFormat
		}
		*dst = v
		return n, nil
	})
	if err != nil {
		return p, err
	}
	if p.OneTimeKey == nil || p.BaseKey == nil || p.IdentityKey == nil || p.Message == nil {
		return p, ErrBadFormat
	}
	return p, nil
}
