package megolm

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"

	"olmkit/internal/crypto"
	"olmkit/internal/domain"
	"olmkit/internal/util/memzero"
)

const (
	Parts      = 4
	PartLength = 32
	// RatchetLength is the random input consumed by New.
	RatchetLength = Parts * PartLength
)

var errShortRandom = errors.New("megolm: not enough random bytes")

var keysInfo = []byte("MEGOLM_KEYS")

// Ratchet is the group ratchet state at Counter.
type Ratchet struct {
	Data    [Parts]domain.SymmetricKey `json:"data"`
	Counter uint32                     `json:"counter"`
}

// New seeds a ratchet at index counter from random.
func New(random []byte, counter uint32) (*Ratchet, error) {
	if len(random) < RatchetLength {
		return nil, errShortRandom
	}
	r := &Ratchet{Counter: counter}
	for i := range r.Data {
		copy(r.Data[i][:], random[i*PartLength:])
	}
	return r, nil
}

func (r *Ratchet) rehash(from, to int) {
	h := hmac.New(sha256.New, r.Data[from][:])
	h.Write([]byte{byte(to)})
	sum := h.Sum(nil)
	copy(r.Data[to][:], sum)
	memzero.Zero(sum)
}

// Advance moves the ratchet forward by one step.
func (r *Ratchet) Advance() {
	mask := uint32(0x00FFFFFF)
	h := 0
	r.Counter++

	// the lowest part whose window rolled over decides how much to reseed
	for h < Parts {
		if r.Counter&mask == 0 {
			break
		}
		h++
		mask >>= 8
	}
	for i := Parts - 1; i >= h; i-- {
		r.rehash(h, i)
	}
}

// AdvanceTo moves the ratchet forward to index target, wrapping around the
// 32-bit counter if target is behind.
func (r *Ratchet) AdvanceTo(target uint32) {
	for j := 0; j < Parts; j++ {
		shift := uint((Parts - j - 1) * 8)
		mask := ^uint32(0) << shift

		steps := ((target >> shift) - (r.Counter >> shift)) & 0xff
		if steps == 0 {
			// Only R0 can land here with Counter ahead of target, after a
			// wrap. It then needs a full cycle.
			if target < r.Counter {
				steps = 0x100
			} else {
				continue
			}
		}
		for ; steps > 1; steps-- {
			r.rehash(j, j)
		}
		for k := Parts - 1; k >= j; k-- {
			r.rehash(j, k)
		}
		r.Counter = target & mask
	}
}

// Bytes returns the concatenated ratchet parts.
func (r *Ratchet) Bytes() []byte {
	out := make([]byte, 0, RatchetLength)
	for i := range r.Data {
		out = append(out, r.Data[i][:]...)
	}
	return out
}

// Seal encrypts plaintext under the key for the current index.
func (r *Ratchet) Seal(header, plaintext []byte) ([]byte, error) {
	mk := r.Bytes()
	defer memzero.Zero(mk)
	return crypto.Seal(mk, keysInfo, header, plaintext)
}

// Open decrypts ciphertext under the key for the current index.
func (r *Ratchet) Open(header, ciphertext []byte) ([]byte, error) {
	mk := r.Bytes()
	defer memzero.Zero(mk)
	return crypto.Open(mk, keysInfo, header, ciphertext)
}

// Clear wipes the ratchet.
func (r *Ratchet) Clear() {
	for i := range r.Data {
		memzero.Zero(r.Data[i][:])
	}
	r.Counter = 0
}
