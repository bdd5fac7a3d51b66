package engine

import (
	"crypto/hmac"
	"encoding/binary"
	"encoding/json"

	"olmkit/internal/crypto"
	"olmkit/internal/domain"
	"olmkit/internal/util/memzero"
)

const (
	// MaxOneTimeKeys is the capacity of an account's one-time key pool.
	MaxOneTimeKeys = 100

	accountRandomLength = crypto.X25519SeedSize + crypto.Ed25519SeedSize
)

type oneTimeKey struct {
	ID        uint32               `json:"id"`
	Published bool                 `json:"published"`
	Key       domain.X25519KeyPair `json:"key"`
}

type accountState struct {
	Initialised bool                  `json:"initialised"`
	Identity    domain.X25519KeyPair  `json:"identity"`
	Signing     domain.Ed25519KeyPair `json:"signing"`
	OneTimeKeys []oneTimeKey          `json:"one_time_keys"`
	NextKeyID   uint32                `json:"next_key_id"`
}

func (s *accountState) wipe() {
	memzero.Zero(s.Identity.Private[:])
	memzero.Zero(s.Signing.Private[:])
	for i := range s.OneTimeKeys {
		memzero.Zero(s.OneTimeKeys[i].Key.Private[:])
	}
	*s = accountState{}
}

// Account holds an identity key pair, a signing key pair and a pool of
// one-time keys.
type Account struct {
	object
	state accountState
}

func NewAccount() *Account { return &Account{} }

// Clear wipes all key material and returns the account to its empty state.
func (a *Account) Clear() {
	a.state.wipe()
	a.lastError = Success
}

func (a *Account) CreateRandomLength() int { return accountRandomLength }

// Create generates the identity and signing keys from random.
func (a *Account) Create(random []byte) int {
	if a.state.Initialised {
		return a.fail(AlreadyInitialised)
	}
	if len(random) < accountRandomLength {
		return a.fail(NotEnoughRandom)
	}
	id, err := crypto.X25519FromSeed(random[:crypto.X25519SeedSize])
	if err != nil {
		return a.fail(NotEnoughRandom)
	}
	sig, err := crypto.Ed25519FromSeed(random[crypto.X25519SeedSize:accountRandomLength])
	if err != nil {
		memzero.Zero(id.Private[:])
		return a.fail(NotEnoughRandom)
	}
	a.state = accountState{Initialised: true, Identity: id, Signing: sig, NextKeyID: 1}
	return 0
}

type identityKeys struct {
	Curve25519 string `json:"curve25519"`
	Ed25519    string `json:"ed25519"`
}

func (a *Account) identityKeysJSON() []byte {
	b, _ := json.Marshal(identityKeys{
		Curve25519: crypto.B64(a.state.Identity.Public[:]),
		Ed25519:    crypto.B64(a.state.Signing.Public[:]),
	})
	return b
}

func (a *Account) IdentityKeysLength() int { return len(a.identityKeysJSON()) }

// IdentityKeys writes {"curve25519": ..., "ed25519": ...} to out.
func (a *Account) IdentityKeys(out []byte) int {
	if !a.state.Initialised {
		return a.fail(NotInitialised)
	}
	b := a.identityKeysJSON()
	if len(out) < len(b) {
		return a.fail(OutputBufferTooSmall)
	}
	return copy(out, b)
}

func (a *Account) SignatureLength() int { return crypto.Base64Len(crypto.SignatureSize) }

// Sign writes the base64 Ed25519 signature of msg to out.
func (a *Account) Sign(msg, out []byte) int {
	if !a.state.Initialised {
		return a.fail(NotInitialised)
	}
	if len(out) < a.SignatureLength() {
		return a.fail(OutputBufferTooSmall)
	}
	return crypto.EncodeBase64(out, crypto.SignEd25519(a.state.Signing.Private, msg))
}

type oneTimeKeys struct {
	Curve25519 map[string]string `json:"curve25519"`
}

func keyID(id uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], id)
	return crypto.B64(b[:])
}

func (a *Account) oneTimeKeysJSON() []byte {
	keys := oneTimeKeys{Curve25519: map[string]string{}}
	for _, k := range a.state.OneTimeKeys {
		if !k.Published {
			keys.Curve25519[keyID(k.ID)] = crypto.B64(k.Key.Public[:])
		}
	}
	b, _ := json.Marshal(keys)
	return b
}

func (a *Account) OneTimeKeysLength() int { return len(a.oneTimeKeysJSON()) }

// OneTimeKeys writes {"curve25519": {id: key}} for every unpublished key.
func (a *Account) OneTimeKeys(out []byte) int {
	if !a.state.Initialised {
		return a.fail(NotInitialised)
	}
	b := a.oneTimeKeysJSON()
	if len(out) < len(b) {
		return a.fail(OutputBufferTooSmall)
	}
	return copy(out, b)
}

// MarkKeysAsPublished flags every one-time key as published and returns how
// many were newly flagged.
func (a *Account) MarkKeysAsPublished() int {
	n := 0
	for i := range a.state.OneTimeKeys {
		if !a.state.OneTimeKeys[i].Published {
			a.state.OneTimeKeys[i].Published = true
			n++
		}
	}
	return n
}

func (a *Account) MaxNumberOfOneTimeKeys() int { return MaxOneTimeKeys }

// GenerateOneTimeKeysRandomLength is 0 when n keys would not fit, so a
// caller never draws random for a call that must fail.
func (a *Account) GenerateOneTimeKeysRandomLength(n int) int {
	if n < 0 || n > MaxOneTimeKeys-len(a.state.OneTimeKeys) {
		return 0
	}
	return n * crypto.X25519SeedSize
}

// GenerateOneTimeKeys appends n keys to the pool. Nothing is generated when
// the pool would overflow.
func (a *Account) GenerateOneTimeKeys(n int, random []byte) int {
	if !a.state.Initialised {
		return a.fail(NotInitialised)
	}
	if n < 0 || len(a.state.OneTimeKeys)+n > MaxOneTimeKeys {
		return a.fail(TooManyOneTimeKeys)
	}
	if len(random) < a.GenerateOneTimeKeysRandomLength(n) {
		return a.fail(NotEnoughRandom)
	}
	fresh := make([]oneTimeKey, 0, n)
	for i := 0; i < n; i++ {
		kp, err := crypto.X25519FromSeed(random[i*crypto.X25519SeedSize:])
		if err != nil {
			for j := range fresh {
				memzero.Zero(fresh[j].Key.Private[:])
			}
			return a.fail(NotEnoughRandom)
		}
		fresh = append(fresh, oneTimeKey{ID: a.state.NextKeyID + uint32(i), Key: kp})
	}
	a.state.OneTimeKeys = append(a.state.OneTimeKeys, fresh...)
	a.state.NextKeyID += uint32(n)
	return n
}

func (a *Account) lookupOneTimeKey(pub domain.X25519Public) *oneTimeKey {
	for i := range a.state.OneTimeKeys {
		if hmac.Equal(a.state.OneTimeKeys[i].Key.Public[:], pub[:]) {
			return &a.state.OneTimeKeys[i]
		}
	}
	return nil
}

// RemoveOneTimeKeys deletes the one-time key s was established with.
func (a *Account) RemoveOneTimeKeys(s *Session) int {
	if !s.state.Initialised {
		return a.fail(BadMessageKeyID)
	}
	for i := range a.state.OneTimeKeys {
		k := &a.state.OneTimeKeys[i]
		if k.Key.Public == s.state.BobOneTimeKey {
			memzero.Zero(k.Key.Private[:])
			a.state.OneTimeKeys = append(a.state.OneTimeKeys[:i], a.state.OneTimeKeys[i+1:]...)
			return 0
		}
	}
	return a.fail(BadMessageKeyID)
}

func (a *Account) family() string { return "account" }

func (a *Account) marshalState() ([]byte, error) { return json.Marshal(&a.state) }

func (a *Account) unmarshalState(data []byte) error {
	var st accountState
	if err := json.Unmarshal(data, &st); err != nil {
		st.wipe()
		return err
	}
	if len(st.OneTimeKeys) > MaxOneTimeKeys {
		st.wipe()
		return errCorrupted
	}
	a.state.wipe()
	a.state = st
	return nil
}

func (a *Account) PickleLength() int       { return pickleLength(&a.object, a) }
func (a *Account) PickleRandomLength() int { return PickleSaltLength }

// Pickle seals the account under key into out.
func (a *Account) Pickle(key, random, out []byte) int {
	return pickleInto(&a.object, a, key, random, out)
}

// Unpickle replaces the account with the state sealed in pickle. pickle is
// decoded in place.
func (a *Account) Unpickle(key, pickle []byte) int {
	return unpickleFrom(&a.object, a, key, pickle)
}
