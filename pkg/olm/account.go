package olm

import (
	"encoding/json"
	"runtime"

	"olmkit/internal/engine"
)

// IdentityKeys are an account's public keys, base64 encoded.
type IdentityKeys struct {
	Curve25519 string `json:"curve25519"`
	Ed25519    string `json:"ed25519"`
}

// OneTimeKeys maps key ids to base64 public keys for every unpublished key.
type OneTimeKeys struct {
	Curve25519 map[string]string `json:"curve25519"`
}

// Account is a long-lived identity: identity keys, a signing key and a pool
// of one-time keys.
type Account struct {
	noCopy noCopy
	e      *engine.Account
	t      translator
}

func newAccount() *Account {
	e := engine.NewAccount()
	a := &Account{e: e, t: translator{family: "account", lastError: e.LastError}}
	runtime.SetFinalizer(a, (*Account).Free)
	return a
}

// NewAccount creates an account with fresh identity keys.
func NewAccount() (*Account, error) {
	a := newAccount()
	s := newScope()
	defer s.Release()

	rnd, err := random(s, a.e.CreateRandomLength())
	if err != nil {
		a.Free()
		return nil, err
	}
	if _, err := a.t.call("create", func() int { return a.e.Create(rnd) }); err != nil {
		a.Free()
		return nil, err
	}
	return a, nil
}

// UnpickleAccount restores an account sealed by Account.Pickle.
func UnpickleAccount(key []byte, pickle string) (*Account, error) {
	a := newAccount()
	if err := unpickle(a.t, "unpickle", key, pickle, a.e.Unpickle); err != nil {
		a.Free()
		return nil, err
	}
	return a, nil
}

// Free wipes the account. It is safe to call more than once.
func (a *Account) Free() {
	if a.e == nil {
		return
	}
	a.e.Clear()
	a.e = nil
	runtime.SetFinalizer(a, nil)
}

func (a *Account) IdentityKeys() (IdentityKeys, error) {
	var keys IdentityKeys
	if a.e == nil {
		return keys, ErrFreed
	}
	s := newScope()
	defer s.Release()

	out := s.Alloc(a.e.IdentityKeysLength())
	n, err := a.t.call("identity_keys", func() int { return a.e.IdentityKeys(out) })
	if err != nil {
		return keys, err
	}
	if err := json.Unmarshal(out[:n], &keys); err != nil {
		return keys, err
	}
	return keys, nil
}

// Sign returns the base64 Ed25519 signature of msg.
func (a *Account) Sign(msg Payload) (string, error) {
	if a.e == nil {
		return "", ErrFreed
	}
	s := newScope()
	defer s.Release()

	in := s.CopySecret(msg.Bytes())
	out := s.Alloc(a.e.SignatureLength())
	n, err := a.t.call("sign", func() int { return a.e.Sign(in, out) })
	if err != nil {
		return "", err
	}
	return string(out[:n]), nil
}

func (a *Account) OneTimeKeys() (OneTimeKeys, error) {
	var keys OneTimeKeys
	if a.e == nil {
		return keys, ErrFreed
	}
	s := newScope()
	defer s.Release()

	out := s.Alloc(a.e.OneTimeKeysLength())
	n, err := a.t.call("one_time_keys", func() int { return a.e.OneTimeKeys(out) })
	if err != nil {
		return keys, err
	}
	if err := json.Unmarshal(out[:n], &keys); err != nil {
		return keys, err
	}
	return keys, nil
}

// MarkKeysAsPublished hides every current one-time key from OneTimeKeys.
func (a *Account) MarkKeysAsPublished() error {
	if a.e == nil {
		return ErrFreed
	}
	_, err := a.t.call("mark_keys_as_published", a.e.MarkKeysAsPublished)
	return err
}

func (a *Account) MaxNumberOfOneTimeKeys() (int, error) {
	if a.e == nil {
		return 0, ErrFreed
	}
	return a.t.call("max_number_of_one_time_keys", a.e.MaxNumberOfOneTimeKeys)
}

// GenerateOneTimeKeys adds n keys to the pool. It fails with
// ErrTooManyOneTimeKeys, generating nothing, when the pool would overflow.
func (a *Account) GenerateOneTimeKeys(n int) error {
	if a.e == nil {
		return ErrFreed
	}
	s := newScope()
	defer s.Release()

	rnd, err := random(s, a.e.GenerateOneTimeKeysRandomLength(n))
	if err != nil {
		return err
	}
	_, err = a.t.call("generate_one_time_keys", func() int { return a.e.GenerateOneTimeKeys(n, rnd) })
	return err
}

// RemoveOneTimeKeys deletes the one-time key sess was established with. It
// fails with ErrBadMessageKeyID when that key is no longer in the pool.
func (a *Account) RemoveOneTimeKeys(sess *Session) error {
	if a.e == nil || sess.e == nil {
		return ErrFreed
	}
	_, err := a.t.call("remove_one_time_keys", func() int { return a.e.RemoveOneTimeKeys(sess.e) })
	return err
}

// Pickle seals the account under key.
func (a *Account) Pickle(key []byte) (string, error) {
	if a.e == nil {
		return "", ErrFreed
	}
	return pickle(a.t, key, a.e.PickleLength, a.e.PickleRandomLength, a.e.Pickle)
}
