package engine

import (
	"crypto/hmac"
	"encoding/json"
	"errors"

	"olmkit/internal/crypto"
	"olmkit/internal/domain"
	"olmkit/internal/protocol/message"
	"olmkit/internal/protocol/ratchet"
	"olmkit/internal/protocol/tripledh"
	"olmkit/internal/util/memzero"
)

// Message types returned by EncryptMessageType.
const (
	MessageTypePreKey = 0
	MessageTypeNormal = 1
)

const sessionRandomLength = 2 * crypto.X25519SeedSize

type sessionState struct {
	Initialised     bool                `json:"initialised"`
	ReceivedMessage bool                `json:"received_message"`
	AliceIdentity   domain.X25519Public `json:"alice_identity"`
	AliceBase       domain.X25519Public `json:"alice_base"`
	BobOneTimeKey   domain.X25519Public `json:"bob_one_time_key"`
	Ratchet         *ratchet.State      `json:"ratchet,omitempty"`
}

func (s *sessionState) wipe() {
	if s.Ratchet != nil {
		s.Ratchet.Clear()
	}
	*s = sessionState{}
}

// Session is one side of a pairwise ratchet.
type Session struct {
	object
	state sessionState
}

func NewSession() *Session { return &Session{} }

func (s *Session) Clear() {
	s.state.wipe()
	s.lastError = Success
}

func (s *Session) CreateOutboundRandomLength() int { return sessionRandomLength }

// CreateOutbound starts a session towards the owner of theirIdentityKey using
// one of their published one-time keys. Both keys are base64.
func (s *Session) CreateOutbound(acc *Account, theirIdentityKey, theirOneTimeKey, random []byte) int {
	if s.state.Initialised {
		return s.fail(AlreadyInitialised)
	}
	if !acc.state.Initialised {
		return s.fail(NotInitialised)
	}
	if len(random) < sessionRandomLength {
		return s.fail(NotEnoughRandom)
	}
	theirID, code := decodeCurveKey(theirIdentityKey)
	if code != Success {
		return s.fail(code)
	}
	theirOTK, code := decodeCurveKey(theirOneTimeKey)
	if code != Success {
		return s.fail(code)
	}

	base, err := crypto.X25519FromSeed(random[:crypto.X25519SeedSize])
	if err != nil {
		return s.fail(NotEnoughRandom)
	}
	defer memzero.Zero(base.Private[:])
	ratchetKey, err := crypto.X25519FromSeed(random[crypto.X25519SeedSize:sessionRandomLength])
	if err != nil {
		return s.fail(NotEnoughRandom)
	}

	secret, err := tripledh.InitiatorSecret(acc.state.Identity.Private, base.Private, theirID, theirOTK)
	if err != nil {
		memzero.Zero(ratchetKey.Private[:])
		return s.fail(BadMessageKeyID)
	}
	defer memzero.Zero(secret)

	s.state = sessionState{
		Initialised:   true,
		AliceIdentity: acc.state.Identity.Public,
		AliceBase:     base.Public,
		BobOneTimeKey: theirOTK,
		Ratchet:       ratchet.InitAsAlice(secret, ratchetKey),
	}
	return 0
}

// CreateInbound builds the responder side from a base64 pre-key message,
// looking up the one-time key it names in acc. msg is decoded in place.
func (s *Session) CreateInbound(acc *Account, msg []byte) int {
	return s.createInbound(acc, nil, msg)
}

// CreateInboundFrom is CreateInbound that also requires the message to come
// from theirIdentityKey.
func (s *Session) CreateInboundFrom(acc *Account, theirIdentityKey, msg []byte) int {
	return s.createInbound(acc, theirIdentityKey, msg)
}

func (s *Session) createInbound(acc *Account, theirIdentityKey, msg []byte) int {
	if s.state.Initialised {
		return s.fail(AlreadyInitialised)
	}
	if !acc.state.Initialised {
		return s.fail(NotInitialised)
	}
	var want *domain.X25519Public
	if theirIdentityKey != nil {
		k, code := decodeCurveKey(theirIdentityKey)
		if code != Success {
			return s.fail(code)
		}
		want = &k
	}
	pk, code := decodePreKeyMessage(msg)
	if code != Success {
		return s.fail(code)
	}
	if want != nil && *want != pk.identity {
		return s.fail(BadMessageKeyID)
	}
	inner, _, err := message.Decode(pk.inner)
	if err != nil {
		return s.fail(messageErrorCode(err))
	}
	theirRatchet, ok := domain.X25519PublicFromBytes(inner.RatchetKey)
	if !ok {
		return s.fail(BadMessageFormat)
	}
	otk := acc.lookupOneTimeKey(pk.oneTime)
	if otk == nil {
		return s.fail(BadMessageKeyID)
	}

	secret, err := tripledh.ResponderSecret(acc.state.Identity.Private, otk.Key.Private, pk.identity, pk.base)
	if err != nil {
		return s.fail(BadMessageKeyID)
	}
	defer memzero.Zero(secret)

	s.state = sessionState{
		Initialised:   true,
		AliceIdentity: pk.identity,
		AliceBase:     pk.base,
		BobOneTimeKey: pk.oneTime,
		Ratchet:       ratchet.InitAsBob(secret, theirRatchet),
	}
	return 0
}

func (s *Session) IDLength() int { return crypto.SHA256Len }

// ID writes the session id, a hash over the three handshake public keys.
func (s *Session) ID(out []byte) int {
	if !s.state.Initialised {
		return s.fail(NotInitialised)
	}
	if len(out) < s.IDLength() {
		return s.fail(OutputBufferTooSmall)
	}
	return crypto.EncodeSHA256(out, s.state.AliceIdentity[:], s.state.AliceBase[:], s.state.BobOneTimeKey[:])
}

// HasReceivedMessage returns 1 once a message has been decrypted, else 0.
func (s *Session) HasReceivedMessage() int {
	if s.state.ReceivedMessage {
		return 1
	}
	return 0
}

// MatchesInbound returns 1 when the pre-key message msg was produced by the
// session this one was created from, 0 when not. msg is decoded in place.
func (s *Session) MatchesInbound(msg []byte) int {
	return s.matchesInbound(nil, msg)
}

func (s *Session) MatchesInboundFrom(theirIdentityKey, msg []byte) int {
	return s.matchesInbound(theirIdentityKey, msg)
}

func (s *Session) matchesInbound(theirIdentityKey, msg []byte) int {
	if !s.state.Initialised {
		return s.fail(NotInitialised)
	}
	pk, code := decodePreKeyMessage(msg)
	if code != Success {
		return s.fail(code)
	}
	if theirIdentityKey != nil {
		k, code := decodeCurveKey(theirIdentityKey)
		if code != Success {
			return s.fail(code)
		}
		if k != s.state.AliceIdentity {
			return 0
		}
	}
	same := hmac.Equal(pk.identity[:], s.state.AliceIdentity[:]) &&
		hmac.Equal(pk.base[:], s.state.AliceBase[:]) &&
		hmac.Equal(pk.oneTime[:], s.state.BobOneTimeKey[:])
	if same {
		return 1
	}
	return 0
}

// EncryptMessageType is PreKey until a message has been received.
func (s *Session) EncryptMessageType() int {
	if s.state.ReceivedMessage {
		return MessageTypeNormal
	}
	return MessageTypePreKey
}

func (s *Session) EncryptRandomLength() int {
	if s.state.Ratchet == nil {
		return 0
	}
	return s.state.Ratchet.EncryptRandomLength()
}

func (s *Session) rawMessageLength(plaintextLen int) int {
	n := s.state.Ratchet.EncryptedLength(plaintextLen)
	if s.EncryptMessageType() == MessageTypePreKey {
		n = s.preKeyEnvelope(nil).EncodedLength(n)
	}
	return n
}

func (s *Session) EncryptMessageLength(plaintextLen int) int {
	if !s.state.Initialised {
		return s.fail(NotInitialised)
	}
	return crypto.Base64Len(s.rawMessageLength(plaintextLen))
}

func (s *Session) preKeyEnvelope(inner []byte) *message.PreKeyMessage {
	return &message.PreKeyMessage{
		OneTimeKey:  s.state.BobOneTimeKey.Slice(),
		BaseKey:     s.state.AliceBase.Slice(),
		IdentityKey: s.state.AliceIdentity.Slice(),
		Message:     inner,
	}
}

// Encrypt writes the base64 message for plaintext to out.
func (s *Session) Encrypt(plaintext, random, out []byte) int {
	if !s.state.Initialised {
		return s.fail(NotInitialised)
	}
	if len(random) < s.EncryptRandomLength() {
		return s.fail(NotEnoughRandom)
	}
	if len(out) < crypto.Base64Len(s.rawMessageLength(len(plaintext))) {
		return s.fail(OutputBufferTooSmall)
	}
	raw, err := s.state.Ratchet.Encrypt(plaintext, random)
	if err != nil {
		if errors.Is(err, ratchet.ErrNotEnoughRandom) {
			return s.fail(NotEnoughRandom)
		}
		return s.fail(NotInitialised)
	}
	if s.EncryptMessageType() == MessageTypePreKey {
		raw = s.preKeyEnvelope(raw).Encode()
	}
	return crypto.EncodeBase64(out, raw)
}

// innerMessage decodes msg in place and unwraps a pre-key envelope.
func (s *Session) innerMessage(msgType int, msg []byte) ([]byte, ErrorCode) {
	n, err := crypto.DecodeBase64InPlace(msg)
	if err != nil {
		return nil, InvalidBase64
	}
	raw := msg[:n]
	switch msgType {
	case MessageTypeNormal:
		return raw, Success
	case MessageTypePreKey:
		pk, err := message.DecodePreKey(raw)
		if err != nil {
			return nil, messageErrorCode(err)
		}
		return pk.Message, Success
	}
	return nil, BadMessageFormat
}

// DecryptMaxPlaintextLength returns an upper bound on the plaintext of msg.
// msg is decoded in place and must be staged again for Decrypt.
func (s *Session) DecryptMaxPlaintextLength(msgType int, msg []byte) int {
	if !s.state.Initialised {
		return s.fail(NotInitialised)
	}
	inner, code := s.innerMessage(msgType, msg)
	if code != Success {
		return s.fail(code)
	}
	n, err := ratchet.MaxPlaintextLength(inner)
	if err != nil {
		return s.fail(messageErrorCode(err))
	}
	return n
}

// Decrypt authenticates msg and writes its plaintext to out. msg is decoded in
// place. The ratchet only advances on success.
func (s *Session) Decrypt(msgType int, msg, out []byte) int {
	if !s.state.Initialised {
		return s.fail(NotInitialised)
	}
	inner, code := s.innerMessage(msgType, msg)
	if code != Success {
		return s.fail(code)
	}
	bound, err := ratchet.MaxPlaintextLength(inner)
	if err != nil {
		return s.fail(messageErrorCode(err))
	}
	if len(out) < bound {
		return s.fail(OutputBufferTooSmall)
	}
	pt, err := s.state.Ratchet.Decrypt(inner)
	if err != nil {
		return s.fail(ratchetErrorCode(err))
	}
	defer memzero.Zero(pt)
	s.state.ReceivedMessage = true
	return copy(out, pt)
}

func (s *Session) family() string { return "session" }

func (s *Session) marshalState() ([]byte, error) { return json.Marshal(&s.state) }

func (s *Session) unmarshalState(data []byte) error {
	var st sessionState
	if err := json.Unmarshal(data, &st); err != nil {
		st.wipe()
		return err
	}
	if st.Initialised && st.Ratchet == nil {
		return errCorrupted
	}
	s.state.wipe()
	s.state = st
	return nil
}

func (s *Session) PickleLength() int       { return pickleLength(&s.object, s) }
func (s *Session) PickleRandomLength() int { return PickleSaltLength }

func (s *Session) Pickle(key, random, out []byte) int {
	return pickleInto(&s.object, s, key, random, out)
}

func (s *Session) Unpickle(key, pickle []byte) int {
	return unpickleFrom(&s.object, s, key, pickle)
}

// --- helpers ---

type preKey struct {
	oneTime, base, identity domain.X25519Public
	inner                   []byte
}

func decodePreKeyMessage(msg []byte) (preKey, ErrorCode) {
	var pk preKey
	n, err := crypto.DecodeBase64InPlace(msg)
	if err != nil {
		return pk, InvalidBase64
	}
	m, err := message.DecodePreKey(msg[:n])
	if err != nil {
		return pk, messageErrorCode(err)
	}
	var ok1, ok2, ok3 bool
	pk.oneTime, ok1 = domain.X25519PublicFromBytes(m.OneTimeKey)
	pk.base, ok2 = domain.X25519PublicFromBytes(m.BaseKey)
	pk.identity, ok3 = domain.X25519PublicFromBytes(m.IdentityKey)
	if !ok1 || !ok2 || !ok3 {
		return pk, BadMessageFormat
	}
	pk.inner = m.Message
	return pk, Success
}

func decodeCurveKey(b64 []byte) (domain.X25519Public, ErrorCode) {
	raw, err := crypto.DecodeBase64(b64)
	if err != nil {
		return domain.X25519Public{}, InvalidBase64
	}
	k, ok := domain.X25519PublicFromBytes(raw)
	if !ok {
		return k, InvalidBase64
	}
	return k, Success
}

func messageErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, message.ErrBadVersion):
		return BadMessageVersion
	case errors.Is(err, crypto.ErrAuth):
		return BadMessageMAC
	}
	return BadMessageFormat
}

func ratchetErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, ratchet.ErrBadMAC):
		return BadMessageMAC
	case errors.Is(err, ratchet.ErrUnknownKey), errors.Is(err, ratchet.ErrGapTooLarge):
		return BadMessageKeyID
	}
	return messageErrorCode(err)
}
