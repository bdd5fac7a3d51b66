package engine

import (
	"crypto/cipher"
	"errors"
	"sync/atomic"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"olmkit/internal/crypto"
	"olmkit/internal/util/memzero"
)

// Pickle layout, before base64:
//
//	version | kdf | p1 p2 p3 | salt[16] | chacha20poly1305(state)
//
// The AEAD runs under a zero nonce with a key derived from the caller's key
// and the per-pickle salt. The associated data is the header followed by the
// object family, so a session pickle cannot be loaded as an account.
const (
	pickleVersion    = 1
	PickleSaltLength = 16
	pickleHeaderLen  = 1 + 1 + 3 + PickleSaltLength
)

const (
	kdfScrypt   byte = 1
	kdfArgon2id byte = 2
)

// PickleKDF selects the key derivation applied to pickle keys. Its parameters
// travel in every pickle so that older pickles stay readable after a change.
type PickleKDF struct {
	id     byte
	params [3]byte
}

// ScryptKDF uses scrypt with N = 2^logN.
func ScryptKDF(logN, r, p uint8) PickleKDF {
	return PickleKDF{id: kdfScrypt, params: [3]byte{logN, r, p}}
}

// Argon2idKDF uses argon2id with 2^logMemKiB KiB of memory.
func Argon2idKDF(time, logMemKiB, threads uint8) PickleKDF {
	return PickleKDF{id: kdfArgon2id, params: [3]byte{time, logMemKiB, threads}}
}

// Valid reports whether the parameters fall inside the accepted bounds.
func (k PickleKDF) Valid() bool {
	p := k.params
	switch k.id {
	case kdfScrypt:
		return p[0] >= 4 && p[0] <= 22 && p[1] >= 1 && p[1] <= 16 && p[2] >= 1 && p[2] <= 4
	case kdfArgon2id:
		return p[0] >= 1 && p[0] <= 10 && p[1] >= 3 && p[1] <= 21 && p[2] >= 1 && p[2] <= 16
	}
	return false
}

func (k PickleKDF) String() string {
	switch k.id {
	case kdfScrypt:
		return "scrypt"
	case kdfArgon2id:
		return "argon2id"
	}
	return "unknown"
}

func (k PickleKDF) derive(key, salt []byte) ([]byte, error) {
	p := k.params
	switch k.id {
	case kdfScrypt:
		return scrypt.Key(key, salt, 1<<p[0], int(p[1]), int(p[2]), chacha20poly1305.KeySize)
	case kdfArgon2id:
		return argon2.IDKey(key, salt, uint32(p[0]), 1<<p[1], p[2], chacha20poly1305.KeySize), nil
	}
	return nil, errUnknownKDF
}

var (
	errUnknownKDF = errors.New("engine: unknown pickle kdf")
	errCorrupted  = errors.New("engine: inconsistent pickled state")
)

var currentKDF atomic.Pointer[PickleKDF]

func init() {
	k := ScryptKDF(15, 8, 1)
	currentKDF.Store(&k)
}

// UsePickleKDF sets the derivation used for new pickles. Invalid parameters
// are ignored and reported as false.
func UsePickleKDF(k PickleKDF) bool {
	if !k.Valid() {
		return false
	}
	currentKDF.Store(&k)
	return true
}

// CurrentPickleKDF returns the derivation used for new pickles.
func CurrentPickleKDF() PickleKDF { return *currentKDF.Load() }

// pickler is implemented by every object family.
type pickler interface {
	family() string
	marshalState() ([]byte, error)
	unmarshalState([]byte) error
}

func pickleLength(o *object, p pickler) int {
	state, err := p.marshalState()
	if err != nil {
		return o.fail(CorruptedPickle)
	}
	n := len(state)
	memzero.Zero(state)
	return crypto.Base64Len(pickleHeaderLen + n + chacha20poly1305.Overhead)
}

// pickleInto seals the state of p under key into out and returns the encoded
// length.
func pickleInto(o *object, p pickler, key, random, out []byte) int {
	if len(random) < PickleSaltLength {
		return o.fail(NotEnoughRandom)
	}
	state, err := p.marshalState()
	if err != nil {
		return o.fail(CorruptedPickle)
	}
	defer memzero.Zero(state)

	rawLen := pickleHeaderLen + len(state) + chacha20poly1305.Overhead
	if len(out) < crypto.Base64Len(rawLen) {
		return o.fail(OutputBufferTooSmall)
	}

	kdf := CurrentPickleKDF()
	raw := make([]byte, 0, rawLen)
	defer memzero.Zero(raw[:cap(raw)])
	raw = append(raw, pickleVersion, kdf.id)
	raw = append(raw, kdf.params[:]...)
	raw = append(raw, random[:PickleSaltLength]...)

	aead, sealKey, err := pickleAEAD(kdf, key, random[:PickleSaltLength])
	if err != nil {
		return o.fail(CorruptedPickle)
	}
	defer memzero.Zero(sealKey)
	var nonce [chacha20poly1305.NonceSize]byte
	raw = aead.Seal(raw, nonce[:], state, pickleAD(raw[:pickleHeaderLen], p.family()))
	return crypto.EncodeBase64(out, raw)
}

// unpickleFrom opens pickle under key and loads it into p. pickle is decoded
// in place.
func unpickleFrom(o *object, p pickler, key, pickle []byte) int {
	n, err := crypto.DecodeBase64InPlace(pickle)
	if err != nil {
		return o.fail(InvalidBase64)
	}
	raw := pickle[:n]
	defer memzero.Zero(raw)
	if len(raw) < 1 {
		return o.fail(CorruptedPickle)
	}
	if raw[0] != pickleVersion {
		return o.fail(UnknownPickleVersion)
	}
	if len(raw) < pickleHeaderLen+chacha20poly1305.Overhead {
		return o.fail(CorruptedPickle)
	}
	kdf := PickleKDF{id: raw[1]}
	copy(kdf.params[:], raw[2:5])
	if !kdf.Valid() {
		return o.fail(CorruptedPickle)
	}
	salt := raw[5:pickleHeaderLen]

	aead, openKey, err := pickleAEAD(kdf, key, salt)
	if err != nil {
		return o.fail(CorruptedPickle)
	}
	defer memzero.Zero(openKey)
	var nonce [chacha20poly1305.NonceSize]byte
	state, err := aead.Open(nil, nonce[:], raw[pickleHeaderLen:], pickleAD(raw[:pickleHeaderLen], p.family()))
	if err != nil {
		return o.fail(BadAccountKey)
	}
	defer memzero.Zero(state)
	if err := p.unmarshalState(state); err != nil {
		return o.fail(CorruptedPickle)
	}
	return n
}

func pickleAEAD(kdf PickleKDF, key, salt []byte) (cipher.AEAD, []byte, error) {
	k, err := kdf.derive(key, salt)
	if err != nil {
		return nil, nil, err
	}
	aead, err := chacha20poly1305.New(k)
	if err != nil {
		memzero.Zero(k)
		return nil, nil, err
	}
	return aead, k, nil
}

func pickleAD(header []byte, family string) []byte {
	ad := make([]byte, 0, len(header)+len(family))
	ad = append(ad, header...)
	return append(ad, family...)
}
