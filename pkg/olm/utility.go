package olm

import (
	"runtime"

	"olmkit/internal/engine"
)

// Utility hosts the stateless helpers.
type Utility struct {
	noCopy noCopy
	e      *engine.Utility
	t      translator
}

func NewUtility() *Utility {
	e := engine.NewUtility()
	u := &Utility{e: e, t: translator{family: "utility", lastError: e.LastError}}
	runtime.SetFinalizer(u, (*Utility).Free)
	return u
}

func (u *Utility) Free() {
	if u.e == nil {
		return
	}
	u.e.Clear()
	u.e = nil
	runtime.SetFinalizer(u, nil)
}

// SHA256 returns the base64 SHA-256 digest of input.
func (u *Utility) SHA256(input Payload) (string, error) {
	if u.e == nil {
		return "", ErrFreed
	}
	sc := newScope()
	defer sc.Release()

	in := sc.CopySecret(input.Bytes())
	out := sc.Alloc(u.e.SHA256Length())
	n, err := u.t.call("sha256", func() int { return u.e.SHA256(in, out) })
	if err != nil {
		return "", err
	}
	return string(out[:n]), nil
}

// ED25519Verify checks signature over msg under the base64 key. A mismatch
// is an error, ErrBadSignature, never a false return.
func (u *Utility) ED25519Verify(key string, msg Payload, signature string) error {
	if u.e == nil {
		return ErrFreed
	}
	sc := newScope()
	defer sc.Release()

	k := sc.Copy([]byte(key))
	m := sc.Copy(msg.Bytes())
	sig := sc.Copy([]byte(signature))
	_, err := u.t.call("ed25519_verify", func() int { return u.e.ED25519Verify(k, m, sig) })
	return err
}

// SHA256 is Utility.SHA256 on a throwaway Utility.
func SHA256(input Payload) (string, error) {
	u := NewUtility()
	defer u.Free()
	return u.SHA256(input)
}

// ED25519Verify is Utility.ED25519Verify on a throwaway Utility.
func ED25519Verify(key string, msg Payload, signature string) error {
	u := NewUtility()
	defer u.Free()
	return u.ED25519Verify(key, msg, signature)
}
