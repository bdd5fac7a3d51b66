package scratch

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"

	"olmkit/internal/util/memzero"
)

func TestReleaseWipesOnlySecrets(t *testing.T) {
	s := New(WithRand(bytes.NewReader(bytes.Repeat([]byte{0xAB}, 64))))
	plain := s.Copy([]byte("public"))
	secret := s.CopySecret([]byte("private"))
	rnd, err := s.Random(32)
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if rnd[0] != 0xAB {
		t.Fatalf("random bytes not read from source")
	}

	s.Release()
	if string(plain) != "public" {
		t.Fatalf("non-secret buffer was modified")
	}
	if !memzero.IsZero(secret) || !memzero.IsZero(rnd) {
		t.Fatalf("secret buffers not wiped")
	}
	if !s.Released() {
		t.Fatalf("scope not marked released")
	}
	s.Release()
}

func TestReleaseRunsOnErrorPath(t *testing.T) {
	var s *Scope
	fail := func() error {
		s = New()
		defer s.Release()
		key := s.CopySecret([]byte("pickle key"))
		_ = key
		return errors.New("boom")
	}
	if err := fail(); err == nil {
		t.Fatalf("expected error")
	}
	for _, a := range s.Allocations() {
		if a.Secret() && !memzero.IsZero(a.Bytes()) {
			t.Fatalf("secret allocation survived an error return")
		}
	}
}

func TestRandomFailure(t *testing.T) {
	s := New(WithRand(iotest.ErrReader(errors.New("no entropy"))))
	defer s.Release()
	if _, err := s.Random(16); !errors.Is(err, ErrRandom) {
		t.Fatalf("expected ErrRandom, got %v", err)
	}
	if b, err := s.Random(0); err != nil || len(b) != 0 {
		t.Fatalf("zero length random should not touch the source: %v", err)
	}
}

func TestAllocAfterReleasePanics(t *testing.T) {
	s := New()
	s.Release()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	s.Alloc(1)
}
