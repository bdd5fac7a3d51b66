package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"olmkit/pkg/olm"
)

type harness struct {
	t    *testing.T
	home string
	key  string
}

func newHarness(t *testing.T) *harness {
	t.Setenv("OLMCTL_STORE", "file")
	t.Setenv("OLMCTL_LOG_LEVEL", "error")
	t.Setenv("OLMCTL_PICKLE_KDF", "scrypt")
	return &harness{t: t, home: t.TempDir(), key: "test key"}
}

// run executes olmctl with stdin and returns stdout.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--home", h.home, "--key", h.key}, args...))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) must(stdin string, args ...string) string {
	h.t.Helper()
	out, err := h.run(stdin, args...)
	if err != nil {
		h.t.Fatalf("olmctl %v: %v", args, err)
	}
	return out
}

func TestPairwiseConversation(t *testing.T) {
	h := newHarness(t)
	h.must("", "account", "create", "alice")
	h.must("", "account", "create", "bob")
	h.must("", "account", "generate-keys", "bob", "2")

	bobID := strings.TrimSpace(h.must("", "account", "identity-key", "bob"))
	bobOTK := strings.TrimSpace(h.must("", "account", "one-time-key", "bob"))
	h.must("", "session", "outbound", "alice", "ab", bobID, bobOTK)

	first := h.must("hello bob", "session", "encrypt", "ab")
	if !strings.HasPrefix(first, "PRE_KEY ") {
		t.Fatalf("first message = %q, want PRE_KEY prefix", first)
	}
	if got := h.must(first, "session", "inbound", "bob", "ba"); got != "hello bob" {
		t.Fatalf("inbound plaintext = %q", got)
	}

	reply := h.must("hi alice", "session", "encrypt", "ba")
	if !strings.HasPrefix(reply, "MESSAGE ") {
		t.Fatalf("reply = %q, want MESSAGE prefix", reply)
	}
	if got := h.must(reply, "session", "decrypt", "ab"); got != "hi alice" {
		t.Fatalf("decrypted reply = %q", got)
	}

	if a, b := h.must("", "session", "id", "ab"), h.must("", "session", "id", "ba"); a != b {
		t.Fatalf("session ids differ: %q vs %q", a, b)
	}

	var keys accountKeys
	if err := json.Unmarshal([]byte(h.must("", "account", "keys", "bob")), &keys); err != nil {
		t.Fatalf("decode keys: %v", err)
	}
	if len(keys.OneTimeKeys.Curve25519) != 1 {
		t.Fatalf("used one-time key not removed: %v", keys.OneTimeKeys.Curve25519)
	}
	if keys.AccountKeys.Curve25519 != bobID {
		t.Fatalf("identity key mismatch")
	}
}

func TestInboundRequiresPreKey(t *testing.T) {
	h := newHarness(t)
	h.must("", "account", "create", "bob")
	if _, err := h.run("MESSAGE AAAA", "session", "inbound", "bob", "ba"); err == nil {
		t.Fatal("expected error for MESSAGE input")
	}
	if _, err := h.run("garbage", "session", "inbound", "bob", "ba"); err == nil {
		t.Fatal("expected error for unprefixed input")
	}
}

func TestCreateRefusesOverwrite(t *testing.T) {
	h := newHarness(t)
	h.must("", "account", "create", "alice")
	if _, err := h.run("", "account", "create", "alice"); err == nil {
		t.Fatal("expected error creating an existing account")
	}
}

func TestWrongKeyFails(t *testing.T) {
	h := newHarness(t)
	h.must("", "account", "create", "alice")
	h.key = "another key"
	_, err := h.run("", "account", "identity-key", "alice")
	if err == nil {
		t.Fatal("expected error with the wrong key")
	}
	if !errors.Is(err, olm.ErrBadAccountKey) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestOneTimeKeyIndexBounds(t *testing.T) {
	h := newHarness(t)
	h.must("", "account", "create", "bob")
	h.must("", "account", "generate-keys", "bob", "1")
	if _, err := h.run("", "account", "one-time-key", "bob", "-n", "2"); err == nil {
		t.Fatal("expected error for key number past the end")
	}
	h.must("", "account", "publish", "bob")
	if _, err := h.run("", "account", "one-time-key", "bob"); err == nil {
		t.Fatal("published keys must not be listed")
	}
}

func TestGroupFlow(t *testing.T) {
	h := newHarness(t)
	h.must("", "group", "outbound", "room")
	creds := h.must("", "group", "credentials", "room")
	h.must(creds, "group", "inbound", "room-in")

	for _, pt := range []string{"one", "two"} {
		msg := h.must(pt, "group", "encrypt", "room")
		if got := h.must(msg, "group", "decrypt", "room-in"); got != pt {
			t.Fatalf("group decrypt = %q, want %q", got, pt)
		}
	}

	exported := h.must("", "group", "export", "room-in", "--message-index", "1")
	h.must(exported+"\n", "group", "import", "room-copy")

	var cr credentials
	if err := json.Unmarshal([]byte(h.must("", "group", "credentials", "room")), &cr); err != nil {
		t.Fatalf("decode credentials: %v", err)
	}
	if cr.MessageIndex != 2 {
		t.Fatalf("message index = %d, want 2", cr.MessageIndex)
	}

	if _, err := h.run("{}", "group", "inbound", "empty"); err == nil {
		t.Fatal("expected error for credentials without session_key")
	}
}

func TestSignVerifyAndHash(t *testing.T) {
	h := newHarness(t)
	h.must("", "account", "create", "alice")
	sig := h.must("signed text", "account", "sign", "alice")
	pub := strings.TrimSpace(h.must("", "account", "signing-key", "alice"))

	if got := h.must("signed text", "verify", pub, sig); got != "OK\n" {
		t.Fatalf("verify = %q", got)
	}
	if _, err := h.run("other text", "verify", pub, sig); err == nil {
		t.Fatal("expected verify failure")
	}

	if got := h.must("", "sha256"); got != "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU\n" {
		t.Fatalf("sha256 = %q", got)
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	major, minor, patch := olm.LibraryVersion()
	want := fmt.Sprintf("%d.%d.%d\n", major, minor, patch)
	if got := h.must("", "version"); got != want {
		t.Fatalf("version = %q, want %q", got, want)
	}
}

func TestOrderedKeys(t *testing.T) {
	m := map[string]string{
		"AAAACg": "ten",
		"AAAAAQ": "one",
		"AAAAAg": "two",
	}
	got := orderedKeys(m)
	if strings.Join(got, ",") != "one,two,ten" {
		t.Fatalf("orderedKeys = %v", got)
	}
}

func TestKeyFlagsExclusive(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run("", "--key-file", "/nonexistent", "version"); err == nil {
		t.Fatal("expected error for --key with --key-file")
	}
}
