package olm

import (
	"runtime"

	"olmkit/internal/engine"
	"olmkit/internal/util/memzero"
)

// MessageType tells a receiver how to parse a Message body.
type MessageType int

const (
	// MessageTypePreKey messages carry the handshake keys alongside the first
	// ratchet message. A session sends them until it has received a reply.
	MessageTypePreKey MessageType = engine.MessageTypePreKey
	MessageTypeNormal MessageType = engine.MessageTypeNormal
)

// Message is an encrypted pairwise message. Body is unpadded base64.
type Message struct {
	Type MessageType
	Body string
}

// Session is one side of a pairwise double ratchet.
type Session struct {
	noCopy noCopy
	e      *engine.Session
	t      translator
}

func newSession() *Session {
	e := engine.NewSession()
	s := &Session{e: e, t: translator{family: "session", lastError: e.LastError}}
	runtime.SetFinalizer(s, (*Session).Free)
	return s
}

// NewOutboundSession starts a session with the owner of theirIdentityKey,
// consuming theirOneTimeKey. Both keys are base64 Curve25519 keys.
func NewOutboundSession(acc *Account, theirIdentityKey, theirOneTimeKey string) (*Session, error) {
	if acc.e == nil {
		return nil, ErrFreed
	}
	sess := newSession()
	sc := newScope()
	defer sc.Release()

	rnd, err := random(sc, sess.e.CreateOutboundRandomLength())
	if err != nil {
		sess.Free()
		return nil, err
	}
	id := sc.Copy([]byte(theirIdentityKey))
	otk := sc.Copy([]byte(theirOneTimeKey))
	if _, err := sess.t.call("create_outbound", func() int {
		return sess.e.CreateOutbound(acc.e, id, otk, rnd)
	}); err != nil {
		sess.Free()
		return nil, err
	}
	return sess, nil
}

// NewInboundSession creates the receiving side from a pre-key message. The
// one-time key the message names must still be in acc. The message itself is
// not decrypted; pass it to Decrypt next.
func NewInboundSession(acc *Account, msg Message) (*Session, error) {
	return newInbound(acc, "", msg)
}

// NewInboundSessionFrom is NewInboundSession that also requires msg to come
// from theirIdentityKey.
func NewInboundSessionFrom(acc *Account, theirIdentityKey string, msg Message) (*Session, error) {
	return newInbound(acc, theirIdentityKey, msg)
}

func newInbound(acc *Account, theirIdentityKey string, msg Message) (*Session, error) {
	if acc.e == nil {
		return nil, ErrFreed
	}
	sess := newSession()
	sc := newScope()
	defer sc.Release()

	body := sc.Copy([]byte(msg.Body))
	var err error
	if theirIdentityKey == "" {
		_, err = sess.t.call("create_inbound", func() int { return sess.e.CreateInbound(acc.e, body) })
	} else {
		id := sc.Copy([]byte(theirIdentityKey))
		_, err = sess.t.call("create_inbound_from", func() int { return sess.e.CreateInboundFrom(acc.e, id, body) })
	}
	if err != nil {
		sess.Free()
		return nil, err
	}
	return sess, nil
}

// UnpickleSession restores a session sealed by Session.Pickle.
func UnpickleSession(key []byte, pickle string) (*Session, error) {
	sess := newSession()
	if err := unpickle(sess.t, "unpickle", key, pickle, sess.e.Unpickle); err != nil {
		sess.Free()
		return nil, err
	}
	return sess, nil
}

// Free wipes the session. It is safe to call more than once.
func (s *Session) Free() {
	if s.e == nil {
		return
	}
	s.e.Clear()
	s.e = nil
	runtime.SetFinalizer(s, nil)
}

// ID is stable for the lifetime of the session and equal on both sides.
func (s *Session) ID() (string, error) {
	if s.e == nil {
		return "", ErrFreed
	}
	sc := newScope()
	defer sc.Release()

	out := sc.Alloc(s.e.IDLength())
	n, err := s.t.call("session_id", func() int { return s.e.ID(out) })
	if err != nil {
		return "", err
	}
	return string(out[:n]), nil
}

func (s *Session) HasReceivedMessage() (bool, error) {
	if s.e == nil {
		return false, ErrFreed
	}
	return s.e.HasReceivedMessage() == 1, nil
}

// MatchesInbound reports whether msg is a pre-key message for this session.
// It does not change the session.
func (s *Session) MatchesInbound(msg Message) (bool, error) {
	return s.matches("", msg)
}

func (s *Session) MatchesInboundFrom(theirIdentityKey string, msg Message) (bool, error) {
	return s.matches(theirIdentityKey, msg)
}

func (s *Session) matches(theirIdentityKey string, msg Message) (bool, error) {
	if s.e == nil {
		return false, ErrFreed
	}
	sc := newScope()
	defer sc.Release()

	body := sc.Copy([]byte(msg.Body))
	var (
		r   int
		err error
	)
	if theirIdentityKey == "" {
		r, err = s.t.call("matches_inbound", func() int { return s.e.MatchesInbound(body) })
	} else {
		id := sc.Copy([]byte(theirIdentityKey))
		r, err = s.t.call("matches_inbound_from", func() int { return s.e.MatchesInboundFrom(id, body) })
	}
	if err != nil {
		return false, err
	}
	return r == 1, nil
}

// Encrypt seals plaintext and advances the sending chain by one step.
func (s *Session) Encrypt(plaintext Payload) (Message, error) {
	if s.e == nil {
		return Message{}, ErrFreed
	}
	sc := newScope()
	defer sc.Release()

	rnd, err := random(sc, s.e.EncryptRandomLength())
	if err != nil {
		return Message{}, err
	}
	msgType := MessageType(s.e.EncryptMessageType())
	pt := sc.CopySecret(plaintext.Bytes())
	size, err := s.t.call("encrypt_message_length", func() int { return s.e.EncryptMessageLength(len(pt)) })
	if err != nil {
		return Message{}, err
	}
	out := sc.Alloc(size)
	n, err := s.t.call("encrypt", func() int { return s.e.Encrypt(pt, rnd, out) })
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Body: string(out[:n])}, nil
}

// Decrypt authenticates msg and returns its plaintext in format f. A failure
// leaves the session as it was.
func (s *Session) Decrypt(msg Message, f Format) (Payload, error) {
	if s.e == nil {
		return Payload{}, ErrFreed
	}
	sc := newScope()
	defer sc.Release()

	// The length probe decodes its input in place, so the message is staged
	// again for the decrypt itself.
	probe := sc.Copy([]byte(msg.Body))
	bound, err := s.t.call("decrypt_max_plaintext_length", func() int {
		return s.e.DecryptMaxPlaintextLength(int(msg.Type), probe)
	})
	if err != nil {
		return Payload{}, err
	}
	body := sc.Copy([]byte(msg.Body))
	out := sc.AllocSecret(bound)
	n, err := s.t.call("decrypt", func() int { return s.e.Decrypt(int(msg.Type), body, out) })
	if err != nil {
		return Payload{}, err
	}
	pt := clone(out[:n])
	p, err := f.payload(pt)
	if err != nil {
		memzero.Zero(pt)
		return Payload{}, err
	}
	return p, nil
}

// Pickle seals the session under key.
func (s *Session) Pickle(key []byte) (string, error) {
	if s.e == nil {
		return "", ErrFreed
	}
	return pickle(s.t, key, s.e.PickleLength, s.e.PickleRandomLength, s.e.Pickle)
}
