// Package scratch provides scoped transient buffers for material crossing the
// engine boundary.
//
// A Scope hands out buffers for one operation. Buffers marked secret are wiped
// when the Scope is released, and Release is meant to be deferred so that it
// runs on every exit path, including errors and panics. Random buffers are
// always secret.
package scratch

import (
	"crypto/rand"
	"errors"
	"io"
	"sync"

	"olmkit/internal/util/memzero"
)

// ErrRandom is returned when the random source fails or runs short.
var ErrRandom = errors.New("scratch: random source failed")

// Allocation is one buffer handed out by a Scope.
type Allocation struct {
	buf    []byte
	secret bool
}

func (a *Allocation) Bytes() []byte { return a.buf }
func (a *Allocation) Secret() bool  { return a.secret }

// Scope owns every buffer allocated through it until Release.
type Scope struct {
	mu       sync.Mutex
	rand     io.Reader
	allocs   []*Allocation
	released bool
}

type Option func(*Scope)

// WithRand replaces the random source, mostly for tests.
func WithRand(r io.Reader) Option {
	return func(s *Scope) { s.rand = r }
}

func New(opts ...Option) *Scope {
	s := &Scope{rand: rand.Reader}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scope) track(buf []byte, secret bool) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		panic("scratch: allocation from released scope")
	}
	s.allocs = append(s.allocs, &Allocation{buf: buf, secret: secret})
	return buf
}

// Alloc returns n zeroed bytes that are not wiped on release.
func (s *Scope) Alloc(n int) []byte { return s.track(make([]byte, n), false) }

// AllocSecret returns n zeroed bytes that are wiped on release.
func (s *Scope) AllocSecret(n int) []byte { return s.track(make([]byte, n), true) }

// Copy stages src in a fresh non-secret buffer.
func (s *Scope) Copy(src []byte) []byte {
	b := s.Alloc(len(src))
	copy(b, src)
	return b
}

// CopySecret stages src in a fresh secret buffer.
func (s *Scope) CopySecret(src []byte) []byte {
	b := s.AllocSecret(len(src))
	copy(b, src)
	return b
}

// Random returns n bytes from the secure random source in a secret buffer.
// A zero length request returns an empty buffer without touching the source.
func (s *Scope) Random(n int) ([]byte, error) {
	b := s.AllocSecret(n)
	if n == 0 {
		return b, nil
	}
	if _, err := io.ReadFull(s.rand, b); err != nil {
		memzero.Zero(b)
		return nil, ErrRandom
	}
	return b, nil
}

// Release wipes every secret buffer. It is safe to call more than once.
func (s *Scope) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	for _, a := range s.allocs {
		if a.secret {
			memzero.Zero(a.buf)
		}
	}
	s.released = true
}

// Allocations returns the buffers handed out so far.
func (s *Scope) Allocations() []*Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Allocation(nil), s.allocs...)
}

func (s *Scope) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
