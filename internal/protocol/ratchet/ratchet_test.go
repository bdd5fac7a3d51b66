package ratchet_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"olmkit/internal/crypto"
	"olmkit/internal/protocol/ratchet"
)

func seed(b byte) []byte { return bytes.Repeat([]byte{b}, 32) }

// newPair returns a fresh initiator/responder pair sharing a handshake secret.
func newPair(t *testing.T) (alice, bob *ratchet.State) {
	t.Helper()
	secret := bytes.Repeat([]byte{0x42}, 96)
	kp, err := crypto.X25519FromSeed(seed(7))
	if err != nil {
		t.Fatalf("X25519FromSeed: %v", err)
	}
	return ratchet.InitAsAlice(secret, kp), ratchet.InitAsBob(secret, kp.Public)
}

func encrypt(t *testing.T, st *ratchet.State, pt string, rnd byte) []byte {
	t.Helper()
	var random []byte
	if n := st.EncryptRandomLength(); n > 0 {
		random = bytes.Repeat([]byte{rnd}, n)
	}
	want := st.EncryptedLength(len(pt))
	wire, err := st.Encrypt([]byte(pt), random)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(wire) != want {
		t.Fatalf("EncryptedLength = %d, wire = %d", want, len(wire))
	}
	return wire
}

func decrypt(t *testing.T, st *ratchet.State, wire []byte, want string) {
	t.Helper()
	bound, err := ratchet.MaxPlaintextLength(wire)
	if err != nil {
		t.Fatalf("MaxPlaintextLength: %v", err)
	}
	pt, err := st.Decrypt(wire)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if len(pt) > bound {
		t.Fatalf("plaintext %d exceeds bound %d", len(pt), bound)
	}
	if string(pt) != want {
		t.Fatalf("got %q, want %q", pt, want)
	}
}

func TestRatchet_OneRoundTrip(t *testing.T) {
	alice, bob := newPair(t)
	decrypt(t, bob, encrypt(t, alice, "hi", 1), "hi")
}

func TestRatchet_Conversation(t *testing.T) {
	alice, bob := newPair(t)
	if alice.EncryptRandomLength() != 0 {
		t.Fatalf("initiator already owns a sending chain")
	}
	if bob.EncryptRandomLength() != 32 {
		t.Fatalf("responder needs a fresh ratchet key before replying")
	}
	for i := 0; i < 4; i++ {
		a := fmt.Sprintf("alice %d", i)
		decrypt(t, bob, encrypt(t, alice, a, byte(10+i)), a)
		b := fmt.Sprintf("bob %d", i)
		decrypt(t, alice, encrypt(t, bob, b, byte(20+i)), b)
	}
	if len(alice.Receivers) > ratchet.MaxReceiverChains || len(bob.Receivers) > ratchet.MaxReceiverChains {
		t.Fatalf("receiver chains not capped")
	}
}

func TestRatchet_OutOfOrderAndReplay(t *testing.T) {
	alice, bob := newPair(t)
	m0 := encrypt(t, alice, "zero", 1)
	m1 := encrypt(t, alice, "one", 1)
	m2 := encrypt(t, alice, "two", 1)

	decrypt(t, bob, m2, "two")
	if len(bob.Skipped) != 2 {
		t.Fatalf("skipped keys = %d, want 2", len(bob.Skipped))
	}
	decrypt(t, bob, m0, "zero")
	decrypt(t, bob, m1, "one")
	if len(bob.Skipped) != 0 {
		t.Fatalf("skipped keys should be consumed")
	}

	if _, err := bob.Decrypt(m1); !errors.Is(err, ratchet.ErrUnknownKey) {
		t.Fatalf("replay: expected ErrUnknownKey, got %v", err)
	}
}

func TestRatchet_TamperLeavesStateUntouched(t *testing.T) {
	alice, bob := newPair(t)
	wire := encrypt(t, alice, "secret", 1)
	bad := append([]byte(nil), wire...)
	bad[len(bad)-1] ^= 0x01

	if _, err := bob.Decrypt(bad); !errors.Is(err, ratchet.ErrBadMAC) {
		t.Fatalf("expected ErrBadMAC, got %v", err)
	}
	if bob.Receivers[0].Chain.Index != 0 {
		t.Fatalf("failed decrypt advanced the chain")
	}
	decrypt(t, bob, wire, "secret")
}

func TestRatchet_SkippedKeysCapped(t *testing.T) {
	alice, bob := newPair(t)
	var last []byte
	for i := 0; i <= ratchet.MaxSkippedKeys+5; i++ {
		last = encrypt(t, alice, "x", 1)
	}
	decrypt(t, bob, last, "x")
	if len(bob.Skipped) != ratchet.MaxSkippedKeys {
		t.Fatalf("skipped keys = %d, want %d", len(bob.Skipped), ratchet.MaxSkippedKeys)
	}
	if bob.Skipped[0].Index != 5 {
		t.Fatalf("oldest kept skipped index = %d, want 5", bob.Skipped[0].Index)
	}
}

func TestRatchet_GapTooLarge(t *testing.T) {
	alice, bob := newPair(t)
	alice.Sender.Chain.Index = ratchet.MaxMessageGap + 1
	wire := encrypt(t, alice, "far", 1)
	if _, err := bob.Decrypt(wire); !errors.Is(err, ratchet.ErrGapTooLarge) {
		t.Fatalf("expected ErrGapTooLarge, got %v", err)
	}
}

func TestRatchet_ClearWipesKeys(t *testing.T) {
	alice, _ := newPair(t)
	alice.Clear()
	if alice.Sender != nil {
		t.Fatalf("sender chain survived Clear")
	}
	for _, b := range alice.RootKey {
		if b != 0 {
			t.Fatalf("root key not wiped")
		}
	}
}
