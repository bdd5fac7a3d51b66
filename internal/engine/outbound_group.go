package engine

import (
	"encoding/json"

	"olmkit/internal/crypto"
	"olmkit/internal/domain"
	"olmkit/internal/protocol/megolm"
	"olmkit/internal/protocol/message"
	"olmkit/internal/util/memzero"
)

const outboundGroupRandomLength = megolm.RatchetLength + crypto.Ed25519SeedSize

type outboundGroupState struct {
	Initialised bool                  `json:"initialised"`
	Ratchet     megolm.Ratchet        `json:"ratchet"`
	Signing     domain.Ed25519KeyPair `json:"signing"`
}

func (s *outboundGroupState) wipe() {
	s.Ratchet.Clear()
	memzero.Zero(s.Signing.Private[:])
	*s = outboundGroupState{}
}

// OutboundGroupSession is the sending side of a group ratchet.
type OutboundGroupSession struct {
	object
	state outboundGroupState
}

func NewOutboundGroupSession() *OutboundGroupSession { return &OutboundGroupSession{} }

func (g *OutboundGroupSession) Clear() {
	g.state.wipe()
	g.lastError = Success
}

func (g *OutboundGroupSession) InitRandomLength() int { return outboundGroupRandomLength }

// Init seeds the ratchet at index 0 and the signing key from random.
func (g *OutboundGroupSession) Init(random []byte) int {
	if g.state.Initialised {
		return g.fail(AlreadyInitialised)
	}
	if len(random) < outboundGroupRandomLength {
		return g.fail(NotEnoughRandom)
	}
	r, err := megolm.New(random[:megolm.RatchetLength], 0)
	if err != nil {
		return g.fail(NotEnoughRandom)
	}
	signing, err := crypto.Ed25519FromSeed(random[megolm.RatchetLength:outboundGroupRandomLength])
	if err != nil {
		r.Clear()
		return g.fail(NotEnoughRandom)
	}
	g.state = outboundGroupState{Initialised: true, Ratchet: *r, Signing: signing}
	r.Clear()
	return 0
}

func (g *OutboundGroupSession) rawMessageLength(plaintextLen int) int {
	m := message.GroupMessage{MessageIndex: g.state.Ratchet.Counter}
	return m.EncodedLength(plaintextLen + crypto.Overhead)
}

func (g *OutboundGroupSession) EncryptMessageLength(plaintextLen int) int {
	return crypto.Base64Len(g.rawMessageLength(plaintextLen))
}

// Encrypt writes the signed base64 group message for plaintext to out and
// advances the ratchet by one.
func (g *OutboundGroupSession) Encrypt(plaintext, out []byte) int {
	if !g.state.Initialised {
		return g.fail(NotInitialised)
	}
	if len(out) < g.EncryptMessageLength(len(plaintext)) {
		return g.fail(OutputBufferTooSmall)
	}
	m := message.GroupMessage{MessageIndex: g.state.Ratchet.Counter}
	ct, err := g.state.Ratchet.Seal(m.Header(), plaintext)
	if err != nil {
		return g.fail(BadMessageFormat)
	}
	m.Ciphertext = ct
	raw := m.Unsigned()
	raw = append(raw, crypto.SignEd25519(g.state.Signing.Private, raw)...)
	g.state.Ratchet.Advance()
	return crypto.EncodeBase64(out, raw)
}

func (g *OutboundGroupSession) IDLength() int { return crypto.Base64Len(len(domain.Ed25519Public{})) }

// ID writes the session id, the base64 signing public key.
func (g *OutboundGroupSession) ID(out []byte) int {
	if !g.state.Initialised {
		return g.fail(NotInitialised)
	}
	if len(out) < g.IDLength() {
		return g.fail(OutputBufferTooSmall)
	}
	return crypto.EncodeBase64(out, g.state.Signing.Public[:])
}

// MessageIndex is the index the next Encrypt will use.
func (g *OutboundGroupSession) MessageIndex() uint32 { return g.state.Ratchet.Counter }

func (g *OutboundGroupSession) KeyLength() int { return crypto.Base64Len(megolm.SessionKeyLength) }

// Key writes the signed session key at the current index.
func (g *OutboundGroupSession) Key(out []byte) int {
	if !g.state.Initialised {
		return g.fail(NotInitialised)
	}
	if len(out) < g.KeyLength() {
		return g.fail(OutputBufferTooSmall)
	}
	raw := megolm.EncodeSessionKey(&g.state.Ratchet, g.state.Signing)
	defer memzero.Zero(raw)
	return crypto.EncodeBase64(out, raw)
}

func (g *OutboundGroupSession) family() string { return "outbound_group_session" }

func (g *OutboundGroupSession) marshalState() ([]byte, error) { return json.Marshal(&g.state) }

func (g *OutboundGroupSession) unmarshalState(data []byte) error {
	var st outboundGroupState
	if err := json.Unmarshal(data, &st); err != nil {
		st.wipe()
		return err
	}
	g.state.wipe()
	g.state = st
	return nil
}

func (g *OutboundGroupSession) PickleLength() int       { return pickleLength(&g.object, g) }
func (g *OutboundGroupSession) PickleRandomLength() int { return PickleSaltLength }

func (g *OutboundGroupSession) Pickle(key, random, out []byte) int {
	return pickleInto(&g.object, g, key, random, out)
}

func (g *OutboundGroupSession) Unpickle(key, pickle []byte) int {
	return unpickleFrom(&g.object, g, key, pickle)
}
