package engine

import (
	"encoding/json"
	"errors"

	"olmkit/internal/crypto"
	"olmkit/internal/domain"
	"olmkit/internal/protocol/megolm"
	"olmkit/internal/protocol/message"
	"olmkit/internal/util/memzero"
)

type inboundGroupState struct {
	Initialised bool                 `json:"initialised"`
	Initial     megolm.Ratchet       `json:"initial"`
	Latest      megolm.Ratchet       `json:"latest"`
	SigningKey  domain.Ed25519Public `json:"signing_key"`
	Verified    bool                 `json:"verified"`
}

func (s *inboundGroupState) wipe() {
	s.Initial.Clear()
	s.Latest.Clear()
	*s = inboundGroupState{}
}

// InboundGroupSession is the receiving side of a group ratchet. It keeps the
// ratchet at the first index it learned and at the latest index it reached.
type InboundGroupSession struct {
	object
	state inboundGroupState
}

func NewInboundGroupSession() *InboundGroupSession { return &InboundGroupSession{} }

func (g *InboundGroupSession) Clear() {
	g.state.wipe()
	g.lastError = Success
}

// Init loads a signed base64 session key.
func (g *InboundGroupSession) Init(sessionKey []byte) int {
	return g.load(sessionKey, megolm.DecodeSessionKey, true)
}

// Import loads an unsigned base64 export.
func (g *InboundGroupSession) Import(exported []byte) int {
	return g.load(exported, megolm.DecodeExport, false)
}

func (g *InboundGroupSession) load(key []byte, decode func([]byte) (*megolm.Ratchet, domain.Ed25519Public, error), verified bool) int {
	if g.state.Initialised {
		return g.fail(AlreadyInitialised)
	}
	raw, err := crypto.DecodeBase64(key)
	if err != nil {
		return g.fail(InvalidBase64)
	}
	defer memzero.Zero(raw)
	r, pub, err := decode(raw)
	if err != nil {
		if errors.Is(err, megolm.ErrBadSignature) {
			return g.fail(BadSignature)
		}
		return g.fail(BadSessionKey)
	}
	g.state = inboundGroupState{
		Initialised: true,
		Initial:     *r,
		Latest:      *r,
		SigningKey:  pub,
		Verified:    verified,
	}
	r.Clear()
	return 0
}

// decode unwraps and authenticates a base64 group message decoded in place.
func (g *InboundGroupSession) decode(msg []byte) (message.GroupMessage, []byte, ErrorCode) {
	n, err := crypto.DecodeBase64InPlace(msg)
	if err != nil {
		return message.GroupMessage{}, nil, InvalidBase64
	}
	m, signed, header, err := message.DecodeGroup(msg[:n])
	if err != nil {
		return m, nil, messageErrorCode(err)
	}
	if !crypto.VerifyEd25519(g.state.SigningKey, signed, m.Signature) {
		return m, nil, BadSignature
	}
	if len(m.Ciphertext) < crypto.Overhead {
		return m, nil, BadMessageFormat
	}
	return m, header, Success
}

// DecryptMaxPlaintextLength returns an upper bound on the plaintext of msg.
// msg is decoded in place.
func (g *InboundGroupSession) DecryptMaxPlaintextLength(msg []byte) int {
	if !g.state.Initialised {
		return g.fail(NotInitialised)
	}
	m, _, code := g.decode(msg)
	if code != Success {
		return g.fail(code)
	}
	return len(m.Ciphertext) - crypto.Overhead
}

// ratchetAt returns a copy of the ratchet advanced to index, or false when
// index is older than the first known index.
func (g *InboundGroupSession) ratchetAt(index uint32) (megolm.Ratchet, bool) {
	if index < g.state.Initial.Counter {
		return megolm.Ratchet{}, false
	}
	r := g.state.Initial
	if index >= g.state.Latest.Counter {
		r = g.state.Latest
	}
	r.AdvanceTo(index)
	return r, true
}

// Decrypt writes the plaintext of msg to out and its index to index. msg is
// decoded in place.
func (g *InboundGroupSession) Decrypt(msg, out []byte, index *uint32) int {
	if !g.state.Initialised {
		return g.fail(NotInitialised)
	}
	m, header, code := g.decode(msg)
	if code != Success {
		return g.fail(code)
	}
	if len(out) < len(m.Ciphertext)-crypto.Overhead {
		return g.fail(OutputBufferTooSmall)
	}
	r, ok := g.ratchetAt(m.MessageIndex)
	if !ok {
		return g.fail(UnknownMessageIndex)
	}
	pt, err := r.Open(header, m.Ciphertext)
	if err != nil {
		r.Clear()
		return g.fail(BadMessageMAC)
	}
	defer memzero.Zero(pt)

	if m.MessageIndex >= g.state.Latest.Counter {
		g.state.Latest = r
	}
	r.Clear()
	g.state.Verified = true
	if index != nil {
		*index = m.MessageIndex
	}
	return copy(out, pt)
}

func (g *InboundGroupSession) IDLength() int { return crypto.Base64Len(len(domain.Ed25519Public{})) }

func (g *InboundGroupSession) ID(out []byte) int {
	if !g.state.Initialised {
		return g.fail(NotInitialised)
	}
	if len(out) < g.IDLength() {
		return g.fail(OutputBufferTooSmall)
	}
	return crypto.EncodeBase64(out, g.state.SigningKey[:])
}

func (g *InboundGroupSession) FirstKnownIndex() uint32 { return g.state.Initial.Counter }

// IsVerified reports 1 once the session key was signed or a message decrypted.
func (g *InboundGroupSession) IsVerified() int {
	if g.state.Verified {
		return 1
	}
	return 0
}

func (g *InboundGroupSession) ExportLength() int { return crypto.Base64Len(megolm.ExportLength) }

// Export writes the unsigned session key at index, which must not be older
// than the first known index.
func (g *InboundGroupSession) Export(out []byte, index uint32) int {
	if !g.state.Initialised {
		return g.fail(NotInitialised)
	}
	if len(out) < g.ExportLength() {
		return g.fail(OutputBufferTooSmall)
	}
	r, ok := g.ratchetAt(index)
	if !ok {
		return g.fail(UnknownMessageIndex)
	}
	raw := megolm.EncodeExport(&r, g.state.SigningKey)
	r.Clear()
	defer memzero.Zero(raw)
	return crypto.EncodeBase64(out, raw)
}

func (g *InboundGroupSession) family() string { return "inbound_group_session" }

func (g *InboundGroupSession) marshalState() ([]byte, error) { return json.Marshal(&g.state) }

func (g *InboundGroupSession) unmarshalState(data []byte) error {
	var st inboundGroupState
	if err := json.Unmarshal(data, &st); err != nil {
		st.wipe()
		return err
	}
	if st.Latest.Counter < st.Initial.Counter {
		st.wipe()
		return errCorrupted
	}
	g.state.wipe()
	g.state = st
	return nil
}

func (g *InboundGroupSession) PickleLength() int       { return pickleLength(&g.object, g) }
func (g *InboundGroupSession) PickleRandomLength() int { return PickleSaltLength }

func (g *InboundGroupSession) Pickle(key, random, out []byte) int {
	return pickleInto(&g.object, g, key, random, out)
}

func (g *InboundGroupSession) Unpickle(key, pickle []byte) int {
	return unpickleFrom(&g.object, g, key, pickle)
}
