package olm

import (
	"runtime"

	"olmkit/internal/engine"
	"olmkit/internal/util/memzero"
)

// OutboundGroupSession is the sending side of a group ratchet.
type OutboundGroupSession struct {
	noCopy noCopy
	e      *engine.OutboundGroupSession
	t      translator
}

func newOutboundGroup() *OutboundGroupSession {
	e := engine.NewOutboundGroupSession()
	g := &OutboundGroupSession{e: e, t: translator{family: "outbound_group_session", lastError: e.LastError}}
	runtime.SetFinalizer(g, (*OutboundGroupSession).Free)
	return g
}

// NewOutboundGroupSession creates a group session at message index 0.
func NewOutboundGroupSession() (*OutboundGroupSession, error) {
	g := newOutboundGroup()
	sc := newScope()
	defer sc.Release()

	rnd, err := random(sc, g.e.InitRandomLength())
	if err != nil {
		g.Free()
		return nil, err
	}
	if _, err := g.t.call("init", func() int { return g.e.Init(rnd) }); err != nil {
		g.Free()
		return nil, err
	}
	return g, nil
}

// UnpickleOutboundGroupSession restores a session sealed by Pickle.
func UnpickleOutboundGroupSession(key []byte, pickle string) (*OutboundGroupSession, error) {
	g := newOutboundGroup()
	if err := unpickle(g.t, "unpickle", key, pickle, g.e.Unpickle); err != nil {
		g.Free()
		return nil, err
	}
	return g, nil
}

func (g *OutboundGroupSession) Free() {
	if g.e == nil {
		return
	}
	g.e.Clear()
	g.e = nil
	runtime.SetFinalizer(g, nil)
}

// ID never changes for the lifetime of the session.
func (g *OutboundGroupSession) ID() (string, error) {
	if g.e == nil {
		return "", ErrFreed
	}
	sc := newScope()
	defer sc.Release()

	out := sc.Alloc(g.e.IDLength())
	n, err := g.t.call("session_id", func() int { return g.e.ID(out) })
	if err != nil {
		return "", err
	}
	return string(out[:n]), nil
}

// MessageIndex is the index the next Encrypt will use.
func (g *OutboundGroupSession) MessageIndex() (uint32, error) {
	if g.e == nil {
		return 0, ErrFreed
	}
	return g.e.MessageIndex(), nil
}

// SessionKey exports the ratchet at the current index. Receivers built from
// it can decrypt this and every later message, never earlier ones.
func (g *OutboundGroupSession) SessionKey() (string, error) {
	if g.e == nil {
		return "", ErrFreed
	}
	sc := newScope()
	defer sc.Release()

	out := sc.AllocSecret(g.e.KeyLength())
	n, err := g.t.call("session_key", func() int { return g.e.Key(out) })
	if err != nil {
		return "", err
	}
	return string(out[:n]), nil
}

// Encrypt seals plaintext at the current index and moves to the next one.
func (g *OutboundGroupSession) Encrypt(plaintext Payload) (string, error) {
	if g.e == nil {
		return "", ErrFreed
	}
	sc := newScope()
	defer sc.Release()

	pt := sc.CopySecret(plaintext.Bytes())
	out := sc.Alloc(g.e.EncryptMessageLength(len(pt)))
	n, err := g.t.call("encrypt", func() int { return g.e.Encrypt(pt, out) })
	if err != nil {
		return "", err
	}
	return string(out[:n]), nil
}

func (g *OutboundGroupSession) Pickle(key []byte) (string, error) {
	if g.e == nil {
		return "", ErrFreed
	}
	return pickle(g.t, key, g.e.PickleLength, g.e.PickleRandomLength, g.e.Pickle)
}

// GroupPlaintext is a decrypted group message and the index it was sent at.
type GroupPlaintext struct {
	Plaintext    Payload
	MessageIndex uint32
}

// InboundGroupSession is the receiving side of a group ratchet.
type InboundGroupSession struct {
	noCopy noCopy
	e      *engine.InboundGroupSession
	t      translator
}

func newInboundGroup() *InboundGroupSession {
	e := engine.NewInboundGroupSession()
	g := &InboundGroupSession{e: e, t: translator{family: "inbound_group_session", lastError: e.LastError}}
	runtime.SetFinalizer(g, (*InboundGroupSession).Free)
	return g
}

// NewInboundGroupSession builds a receiver from a signed session key as
// returned by OutboundGroupSession.SessionKey.
func NewInboundGroupSession(sessionKey string) (*InboundGroupSession, error) {
	return loadInboundGroup("init", sessionKey, (*engine.InboundGroupSession).Init)
}

// ImportInboundGroupSession builds a receiver from an unsigned export as
// returned by InboundGroupSession.Export.
func ImportInboundGroupSession(exported string) (*InboundGroupSession, error) {
	return loadInboundGroup("import", exported, (*engine.InboundGroupSession).Import)
}

func loadInboundGroup(op, key string, fn func(*engine.InboundGroupSession, []byte) int) (*InboundGroupSession, error) {
	g := newInboundGroup()
	sc := newScope()
	defer sc.Release()

	k := sc.CopySecret([]byte(key))
	if _, err := g.t.call(op, func() int { return fn(g.e, k) }); err != nil {
		g.Free()
		return nil, err
	}
	return g, nil
}

// UnpickleInboundGroupSession restores a session sealed by Pickle.
func UnpickleInboundGroupSession(key []byte, pickle string) (*InboundGroupSession, error) {
	g := newInboundGroup()
	if err := unpickle(g.t, "unpickle", key, pickle, g.e.Unpickle); err != nil {
		g.Free()
		return nil, err
	}
	return g, nil
}

func (g *InboundGroupSession) Free() {
	if g.e == nil {
		return
	}
	g.e.Clear()
	g.e = nil
	runtime.SetFinalizer(g, nil)
}

// Decrypt authenticates msg and returns its plaintext and index. Messages
// older than FirstKnownIndex fail with ErrUnknownMessageIndex.
func (g *InboundGroupSession) Decrypt(msg string, f Format) (GroupPlaintext, error) {
	if g.e == nil {
		return GroupPlaintext{}, ErrFreed
	}
	sc := newScope()
	defer sc.Release()

	probe := sc.Copy([]byte(msg))
	bound, err := g.t.call("decrypt_max_plaintext_length", func() int {
		return g.e.DecryptMaxPlaintextLength(probe)
	})
	if err != nil {
		return GroupPlaintext{}, err
	}
	body := sc.Copy([]byte(msg))
	out := sc.AllocSecret(bound)
	var index uint32
	n, err := g.t.call("decrypt", func() int { return g.e.Decrypt(body, out, &index) })
	if err != nil {
		return GroupPlaintext{}, err
	}
	pt := clone(out[:n])
	p, err := f.payload(pt)
	if err != nil {
		memzero.Zero(pt)
		return GroupPlaintext{}, err
	}
	return GroupPlaintext{Plaintext: p, MessageIndex: index}, nil
}

// ID equals the ID of the outbound session the key came from.
func (g *InboundGroupSession) ID() (string, error) {
	if g.e == nil {
		return "", ErrFreed
	}
	sc := newScope()
	defer sc.Release()

	out := sc.Alloc(g.e.IDLength())
	n, err := g.t.call("session_id", func() int { return g.e.ID(out) })
	if err != nil {
		return "", err
	}
	return string(out[:n]), nil
}

func (g *InboundGroupSession) FirstKnownIndex() (uint32, error) {
	if g.e == nil {
		return 0, ErrFreed
	}
	return g.e.FirstKnownIndex(), nil
}

// IsVerified is true when the session came from a signed key or has
// decrypted a message.
func (g *InboundGroupSession) IsVerified() (bool, error) {
	if g.e == nil {
		return false, ErrFreed
	}
	return g.e.IsVerified() == 1, nil
}

// Export returns the unsigned session key at index.
func (g *InboundGroupSession) Export(index uint32) (string, error) {
	if g.e == nil {
		return "", ErrFreed
	}
	sc := newScope()
	defer sc.Release()

	out := sc.AllocSecret(g.e.ExportLength())
	n, err := g.t.call("export", func() int { return g.e.Export(out, index) })
	if err != nil {
		return "", err
	}
	return string(out[:n]), nil
}

func (g *InboundGroupSession) Pickle(key []byte) (string, error) {
	if g.e == nil {
		return "", ErrFreed
	}
	return pickle(g.t, key, g.e.PickleLength, g.e.PickleRandomLength, g.e.Pickle)
}
