package engine

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"math"
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	UsePickleKDF(ScryptKDF(4, 1, 1))
	os.Exit(m.Run())
}

func random(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

func newAccount(t *testing.T) *Account {
	t.Helper()
	a := NewAccount()
	if a.Create(random(a.CreateRandomLength())) == Error {
		t.Fatalf("Create: %s", a.LastError())
	}
	return a
}

func identityKey(t *testing.T, a *Account) []byte {
	t.Helper()
	out := make([]byte, a.IdentityKeysLength())
	if a.IdentityKeys(out) == Error {
		t.Fatalf("IdentityKeys: %s", a.LastError())
	}
	var keys map[string]string
	if err := json.Unmarshal(out, &keys); err != nil {
		t.Fatalf("identity keys JSON: %v", err)
	}
	return []byte(keys["curve25519"])
}

func firstOneTimeKey(t *testing.T, a *Account) []byte {
	t.Helper()
	out := make([]byte, a.OneTimeKeysLength())
	a.OneTimeKeys(out)
	var keys map[string]map[string]string
	if err := json.Unmarshal(out, &keys); err != nil {
		t.Fatalf("one-time keys JSON: %v", err)
	}
	for _, k := range keys["curve25519"] {
		return []byte(k)
	}
	t.Fatalf("no one-time keys")
	return nil
}

func encrypt(t *testing.T, s *Session, pt string) (int, []byte) {
	t.Helper()
	typ := s.EncryptMessageType()
	out := make([]byte, s.EncryptMessageLength(len(pt)))
	n := s.Encrypt([]byte(pt), random(s.EncryptRandomLength()), out)
	if n == Error {
		t.Fatalf("Encrypt: %s", s.LastError())
	}
	return typ, out[:n]
}

func decrypt(t *testing.T, s *Session, typ int, msg []byte) string {
	t.Helper()
	probe := append([]byte(nil), msg...)
	bound := s.DecryptMaxPlaintextLength(typ, probe)
	if bound == Error {
		t.Fatalf("DecryptMaxPlaintextLength: %s", s.LastError())
	}
	out := make([]byte, bound)
	n := s.Decrypt(typ, append([]byte(nil), msg...), out)
	if n == Error {
		t.Fatalf("Decrypt: %s", s.LastError())
	}
	return string(out[:n])
}

func establish(t *testing.T) (alice, bob *Account, out, in *Session) {
	t.Helper()
	alice, bob = newAccount(t), newAccount(t)
	bob.GenerateOneTimeKeys(1, random(bob.GenerateOneTimeKeysRandomLength(1)))
	out = NewSession()
	if out.CreateOutbound(alice, identityKey(t, bob), firstOneTimeKey(t, bob), random(out.CreateOutboundRandomLength())) == Error {
		t.Fatalf("CreateOutbound: %s", out.LastError())
	}
	typ, msg := encrypt(t, out, "hello")
	if typ != MessageTypePreKey {
		t.Fatalf("first message type = %d", typ)
	}
	in = NewSession()
	if in.CreateInboundFrom(bob, identityKey(t, alice), append([]byte(nil), msg...)) == Error {
		t.Fatalf("CreateInboundFrom: %s", in.LastError())
	}
	if got := decrypt(t, in, typ, msg); got != "hello" {
		t.Fatalf("got %q", got)
	}
	return alice, bob, out, in
}

func TestAccountOneTimeKeyPool(t *testing.T) {
	a := newAccount(t)
	if a.Create(random(64)) != Error || a.LastError() != AlreadyInitialised {
		t.Fatalf("second Create should fail with ALREADY_INITIALISED")
	}
	if a.GenerateOneTimeKeys(3, random(95)) != Error || a.LastError() != NotEnoughRandom {
		t.Fatalf("short random should fail with NOT_ENOUGH_RANDOM")
	}
	if a.GenerateOneTimeKeys(3, random(a.GenerateOneTimeKeysRandomLength(3))) != 3 {
		t.Fatalf("GenerateOneTimeKeys: %s", a.LastError())
	}
	out := make([]byte, a.OneTimeKeysLength())
	a.OneTimeKeys(out)
	if !bytes.Contains(out, []byte(`"AAAAAQ"`)) || !bytes.Contains(out, []byte(`"AAAAAw"`)) {
		t.Fatalf("unexpected key ids: %s", out)
	}

	n := MaxOneTimeKeys - 2
	if a.GenerateOneTimeKeys(n, random(a.GenerateOneTimeKeysRandomLength(n))) != Error ||
		a.LastError() != TooManyOneTimeKeys {
		t.Fatalf("overflowing the pool should fail with TOO_MANY_ONE_TIME_KEYS")
	}
	if len(a.state.OneTimeKeys) != 3 {
		t.Fatalf("failed generation changed the pool")
	}

	if a.MarkKeysAsPublished() != 3 {
		t.Fatalf("MarkKeysAsPublished should flag 3 keys")
	}
	if a.OneTimeKeysLength() != len(`{"curve25519":{}}`) {
		t.Fatalf("published keys are still listed")
	}
}

func TestSessionConversationAndRemove(t *testing.T) {
	_, bob, out, in := establish(t)

	typ, reply := encrypt(t, in, "hi alice")
	if typ != MessageTypeNormal {
		t.Fatalf("reply type = %d", typ)
	}
	if got := decrypt(t, out, typ, reply); got != "hi alice" {
		t.Fatalf("got %q", got)
	}
	if out.EncryptMessageType() != MessageTypeNormal {
		t.Fatalf("outbound session should switch to normal messages")
	}

	ida := make([]byte, out.IDLength())
	idb := make([]byte, in.IDLength())
	out.ID(ida)
	in.ID(idb)
	if !bytes.Equal(ida, idb) {
		t.Fatalf("session ids differ")
	}

	if bob.RemoveOneTimeKeys(in) == Error {
		t.Fatalf("RemoveOneTimeKeys: %s", bob.LastError())
	}
	if bob.RemoveOneTimeKeys(in) != Error || bob.LastError() != BadMessageKeyID {
		t.Fatalf("second removal should fail with BAD_MESSAGE_KEY_ID")
	}
}

func TestDecryptDestroysInput(t *testing.T) {
	_, _, out, in := establish(t)
	typ, msg := encrypt(t, out, "again")
	staged := append([]byte(nil), msg...)
	if in.DecryptMaxPlaintextLength(typ, staged) == Error {
		t.Fatalf("probe: %s", in.LastError())
	}
	if bytes.Equal(staged, msg) {
		t.Fatalf("probe left the staged input intact")
	}
	if in.Decrypt(typ, staged, make([]byte, 64)) != Error {
		t.Fatalf("decrypting a consumed buffer should fail")
	}
	if got := decrypt(t, in, typ, msg); got != "again" {
		t.Fatalf("got %q", got)
	}
}

func TestMatchesInbound(t *testing.T) {
	alice, _, out, in := establish(t)
	_, msg := encrypt(t, out, "second")
	if in.MatchesInbound(append([]byte(nil), msg...)) != 1 {
		t.Fatalf("session should match its own pre-key message")
	}
	if in.MatchesInboundFrom(identityKey(t, alice), append([]byte(nil), msg...)) != 1 {
		t.Fatalf("session should match with the sender identity")
	}
	other := newAccount(t)
	if in.MatchesInboundFrom(identityKey(t, other), append([]byte(nil), msg...)) != 0 {
		t.Fatalf("session should not match a different identity")
	}
}

func TestSessionTamperKeepsState(t *testing.T) {
	_, _, out, in := establish(t)
	typ, msg := encrypt(t, in, "x")
	bad := append([]byte(nil), msg...)
	if bad[len(bad)-3] == 'A' {
		bad[len(bad)-3] = 'B'
	} else {
		bad[len(bad)-3] = 'A'
	}
	if out.Decrypt(typ, bad, make([]byte, 64)) != Error {
		t.Fatalf("tampered message decrypted")
	}
	if got := decrypt(t, out, typ, msg); got != "x" {
		t.Fatalf("got %q", got)
	}
}

func TestPickleRoundTripAndWrongKey(t *testing.T) {
	a := newAccount(t)
	out := make([]byte, a.PickleLength())
	n := a.Pickle([]byte("key"), random(a.PickleRandomLength()), out)
	if n == Error {
		t.Fatalf("Pickle: %s", a.LastError())
	}
	pickle := out[:n]

	b := NewAccount()
	if b.Unpickle([]byte("wrong"), append([]byte(nil), pickle...)) != Error || b.LastError() != BadAccountKey {
		t.Fatalf("wrong key should fail with BAD_ACCOUNT_KEY, got %s", b.LastError())
	}
	if b.Unpickle([]byte("key"), append([]byte(nil), pickle...)) == Error {
		t.Fatalf("Unpickle: %s", b.LastError())
	}
	if !bytes.Equal(identityKey(t, a), identityKey(t, b)) {
		t.Fatalf("identity changed across pickle")
	}

	s := NewSession()
	if s.Unpickle([]byte("key"), append([]byte(nil), pickle...)) != Error || s.LastError() != BadAccountKey {
		t.Fatalf("account pickle must not load as a session")
	}
}

func TestUnpickleRejectsMalformed(t *testing.T) {
	a := NewAccount()
	if a.Unpickle([]byte("k"), []byte("!!!")) != Error || a.LastError() != InvalidBase64 {
		t.Fatalf("expected INVALID_BASE64, got %s", a.LastError())
	}
	if a.Unpickle([]byte("k"), []byte("CQ")) != Error || a.LastError() != UnknownPickleVersion {
		t.Fatalf("expected UNKNOWN_PICKLE_VERSION, got %s", a.LastError())
	}
	if a.Unpickle([]byte("k"), []byte("AQ")) != Error || a.LastError() != CorruptedPickle {
		t.Fatalf("expected CORRUPTED_PICKLE, got %s", a.LastError())
	}
}

func TestGroupSessions(t *testing.T) {
	og := NewOutboundGroupSession()
	if og.Init(random(og.InitRandomLength())) == Error {
		t.Fatalf("Init: %s", og.LastError())
	}
	encryptGroup := func(pt string) []byte {
		out := make([]byte, og.EncryptMessageLength(len(pt)))
		n := og.Encrypt([]byte(pt), out)
		if n == Error {
			t.Fatalf("group Encrypt: %s", og.LastError())
		}
		return out[:n]
	}
	early := encryptGroup("before")

	key := make([]byte, og.KeyLength())
	og.Key(key)
	ig := NewInboundGroupSession()
	if ig.Init(key) == Error {
		t.Fatalf("inbound Init: %s", ig.LastError())
	}
	if ig.FirstKnownIndex() != 1 {
		t.Fatalf("first known index = %d", ig.FirstKnownIndex())
	}

	for i, pt := range []string{"one", "two", "three"} {
		msg := encryptGroup(pt)
		out := make([]byte, 64)
		var idx uint32
		n := ig.Decrypt(msg, out, &idx)
		if n == Error {
			t.Fatalf("group Decrypt: %s", ig.LastError())
		}
		if string(out[:n]) != pt || idx != uint32(i+1) {
			t.Fatalf("got %q at %d", out[:n], idx)
		}
	}

	if ig.Decrypt(early, make([]byte, 64), nil) != Error || ig.LastError() != UnknownMessageIndex {
		t.Fatalf("expected UNKNOWN_MESSAGE_INDEX, got %s", ig.LastError())
	}

	exp := make([]byte, ig.ExportLength())
	if ig.Export(exp, 0) != Error || ig.LastError() != UnknownMessageIndex {
		t.Fatalf("export below first known index should fail")
	}
	if ig.Export(exp, 2) == Error {
		t.Fatalf("Export: %s", ig.LastError())
	}
	imported := NewInboundGroupSession()
	if imported.Import(exp) == Error {
		t.Fatalf("Import: %s", imported.LastError())
	}
	if imported.FirstKnownIndex() != 2 {
		t.Fatalf("imported first known index = %d", imported.FirstKnownIndex())
	}
}

func TestGroupBadSignature(t *testing.T) {
	og := NewOutboundGroupSession()
	og.Init(random(og.InitRandomLength()))
	key := make([]byte, og.KeyLength())
	og.Key(key)

	other := NewOutboundGroupSession()
	other.Init(random(other.InitRandomLength()))
	out := make([]byte, other.EncryptMessageLength(3))
	n := other.Encrypt([]byte("abc"), out)

	ig := NewInboundGroupSession()
	ig.Init(key)
	if ig.Decrypt(out[:n], make([]byte, 16), nil) != Error || ig.LastError() != BadSignature {
		t.Fatalf("expected BAD_SIGNATURE, got %s", ig.LastError())
	}
}

func TestUtility(t *testing.T) {
	u := NewUtility()
	out := make([]byte, u.SHA256Length())
	u.SHA256(nil, out)
	if string(out) != "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU" {
		t.Fatalf("sha256 = %s", out)
	}

	a := newAccount(t)
	sig := make([]byte, a.SignatureLength())
	a.Sign([]byte("msg"), sig)
	var keys map[string]string
	ik := make([]byte, a.IdentityKeysLength())
	a.IdentityKeys(ik)
	json.Unmarshal(ik, &keys)
	ed := []byte(keys["ed25519"])

	if u.ED25519Verify(ed, []byte("msg"), append([]byte(nil), sig...)) == Error {
		t.Fatalf("verify: %s", u.LastError())
	}
	if u.ED25519Verify(ed, []byte("other"), append([]byte(nil), sig...)) != Error || u.LastError() != BadSignature {
		t.Fatalf("expected BAD_SIGNATURE, got %s", u.LastError())
	}
	if u.ED25519Verify([]byte("not base64!"), []byte("msg"), sig) != Error || u.LastError() != InvalidBase64 {
		t.Fatalf("expected INVALID_BASE64, got %s", u.LastError())
	}
}

func TestGenerateOneTimeKeysRandomLengthBounded(t *testing.T) {
	a := newAccount(t)
	if got := a.GenerateOneTimeKeysRandomLength(2); got != 64 {
		t.Fatalf("random length for 2 keys = %d, want 64", got)
	}
	for _, n := range []int{-1, MaxOneTimeKeys + 1, math.MaxInt / 16} {
		if got := a.GenerateOneTimeKeysRandomLength(n); got != 0 {
			t.Fatalf("random length for %d keys = %d, want 0", n, got)
		}
		if a.GenerateOneTimeKeys(n, nil) != Error || a.LastError() != TooManyOneTimeKeys {
			t.Fatalf("GenerateOneTimeKeys(%d) should fail with TOO_MANY_ONE_TIME_KEYS", n)
		}
	}
}

func TestOneTimeKeysRequiresCreate(t *testing.T) {
	a := NewAccount()
	out := make([]byte, a.OneTimeKeysLength())
	if a.OneTimeKeys(out) != Error || a.LastError() != NotInitialised {
		t.Fatalf("OneTimeKeys before Create should fail with NOT_INITIALISED")
	}
}

type brokenPickler struct{}

func (brokenPickler) family() string                { return "broken" }
func (brokenPickler) marshalState() ([]byte, error) { return nil, errCorrupted }
func (brokenPickler) unmarshalState([]byte) error   { return errCorrupted }

func TestPickleLengthSetsLastError(t *testing.T) {
	var o object
	if pickleLength(&o, brokenPickler{}) != Error {
		t.Fatalf("pickleLength should fail when the state cannot be marshalled")
	}
	if o.LastError() != CorruptedPickle {
		t.Fatalf("LastError = %s, want CORRUPTED_PICKLE", o.LastError())
	}
}
