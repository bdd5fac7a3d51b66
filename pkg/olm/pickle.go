package olm

import "olmkit/internal/engine"

// PickleKDF is a key derivation for pickle keys.
type PickleKDF = engine.PickleKDF

// ScryptKDF derives pickle keys with scrypt, N = 2^logN.
func ScryptKDF(logN, r, p uint8) PickleKDF { return engine.ScryptKDF(logN, r, p) }

// Argon2idKDF derives pickle keys with argon2id over 2^logMemKiB KiB.
func Argon2idKDF(time, logMemKiB, threads uint8) PickleKDF {
	return engine.Argon2idKDF(time, logMemKiB, threads)
}

// SetPickleKDF selects the derivation for new pickles. Existing pickles keep
// loading with the parameters they were written with.
func SetPickleKDF(k PickleKDF) error {
	if !engine.UsePickleKDF(k) {
		return ErrBadKDF
	}
	log.Debug().Str("kdf", k.String()).Msg("pickle kdf changed")
	return nil
}

func pickle(t translator, key []byte, length, randomLength func() int, fn func(key, random, out []byte) int) (string, error) {
	s := newScope()
	defer s.Release()

	k := s.CopySecret(key)
	rnd, err := random(s, randomLength())
	if err != nil {
		return "", err
	}
	size, err := t.call("pickle_length", length)
	if err != nil {
		return "", err
	}
	out := s.Alloc(size)
	n, err := t.call("pickle", func() int { return fn(k, rnd, out) })
	if err != nil {
		return "", err
	}
	return string(out[:n]), nil
}

func unpickle(t translator, op string, key []byte, pickle string, fn func(key, pickle []byte) int) error {
	s := newScope()
	defer s.Release()

	k := s.CopySecret(key)
	in := s.CopySecret([]byte(pickle))
	_, err := t.call(op, func() int { return fn(k, in) })
	return err
}
