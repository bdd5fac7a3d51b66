package ratchet

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"

	"olmkit/internal/crypto"
	"olmkit/internal/domain"
	"olmkit/internal/protocol/message"
	"olmkit/internal/util/memzero"
)

const (
	MaxReceiverChains = 5
	MaxSkippedKeys    = 40
	MaxMessageGap     = 2000
)

var (
	ErrBadMAC          = errors.New("ratchet: message authentication failed")
	ErrUnknownKey      = errors.New("ratchet: no message key for this message")
	ErrGapTooLarge     = errors.New("ratchet: message too far ahead of chain")
	ErrNotEnoughRandom = errors.New("ratchet: not enough random bytes")
	ErrNoReceiverChain = errors.New("ratchet: no receiving chain to ratchet against")
)

var (
	rootInfo    = []byte("OLM_ROOT")
	ratchetInfo = []byte("OLM_RATCHET")
	keysInfo    = []byte("OLM_KEYS")
)

// ChainKey is one link of a hash chain.
type ChainKey struct {
	Index uint32              `json:"index"`
	Key   domain.SymmetricKey `json:"key"`
}

type SenderChain struct {
	RatchetKey domain.X25519KeyPair `json:"ratchet_key"`
	Chain      ChainKey             `json:"chain"`
}

type ReceiverChain struct {
	RatchetKey domain.X25519Public `json:"ratchet_key"`
	Chain      ChainKey            `json:"chain"`
}

// SkippedKey is a message key derived ahead of time for a message that has
// not arrived yet.
type SkippedKey struct {
	RatchetKey domain.X25519Public `json:"ratchet_key"`
	Index      uint32              `json:"index"`
	Key        domain.SymmetricKey `json:"key"`
}

// State is the full ratchet state of one side of a session.
type State struct {
	RootKey   domain.SymmetricKey `json:"root_key"`
	Sender    *SenderChain        `json:"sender,omitempty"`
	Receivers []ReceiverChain     `json:"receivers,omitempty"`
	Skipped   []SkippedKey        `json:"skipped,omitempty"`
}

// InitAsAlice seeds the sending chain from the handshake secret. ratchetKey
// is the first sending ratchet key, derived by the caller from random input.
func InitAsAlice(secret []byte, ratchetKey domain.X25519KeyPair) *State {
	st := &State{}
	var chain domain.SymmetricKey
	crypto.HKDF(secret, nil, rootInfo, st.RootKey[:], chain[:])
	st.Sender = &SenderChain{RatchetKey: ratchetKey, Chain: ChainKey{Key: chain}}
	return st
}

// InitAsBob seeds a receiving chain for the peer's first ratchet key.
func InitAsBob(secret []byte, theirRatchetKey domain.X25519Public) *State {
	st := &State{}
	var chain domain.SymmetricKey
	crypto.HKDF(secret, nil, rootInfo, st.RootKey[:], chain[:])
	st.Receivers = []ReceiverChain{{RatchetKey: theirRatchetKey, Chain: ChainKey{Key: chain}}}
	return st
}

// EncryptRandomLength reports how much random input the next Encrypt needs.
func (st *State) EncryptRandomLength() int {
	if st.Sender == nil {
		return crypto.X25519SeedSize
	}
	return 0
}

// EncryptedLength returns the wire length of the next message for a
// plaintext of n bytes.
func (st *State) EncryptedLength(n int) int {
	m := message.Message{RatchetKey: make([]byte, 32)}
	if st.Sender != nil {
		m.Counter = st.Sender.Chain.Index
	}
	return m.EncodedLength(n + crypto.Overhead)
}

// Encrypt seals plaintext into a wire message and advances the sending chain.
func (st *State) Encrypt(plaintext, random []byte) ([]byte, error) {
	if st.Sender == nil {
		if len(random) < crypto.X25519SeedSize {
			return nil, ErrNotEnoughRandom
		}
		if len(st.Receivers) == 0 {
			return nil, ErrNoReceiverChain
		}
		kp, err := crypto.X25519FromSeed(random)
		if err != nil {
			return nil, err
		}
		root, chain, err := kdfRK(st.RootKey, kp.Private, st.Receivers[0].RatchetKey)
		if err != nil {
			memzero.Zero(kp.Private[:])
			return nil, err
		}
		st.RootKey = root
		st.Sender = &SenderChain{RatchetKey: kp, Chain: ChainKey{Key: chain}}
	}

	mk := messageKey(st.Sender.Chain.Key)
	defer memzero.Zero(mk[:])
	m := message.Message{
		RatchetKey: st.Sender.RatchetKey.Public.Slice(),
		Counter:    st.Sender.Chain.Index,
	}
	ct, err := crypto.Seal(mk[:], keysInfo, m.Header(), plaintext)
	if err != nil {
		return nil, err
	}
	m.Ciphertext = ct
	st.Sender.Chain = nextChain(st.Sender.Chain)
	return m.Encode(), nil
}

// MaxPlaintextLength parses wire and returns an upper bound on the plaintext.
func MaxPlaintextLength(wire []byte) (int, error) {
	m, _, err := message.Decode(wire)
	if err != nil {
		return 0, err
	}
	if len(m.Ciphertext) < crypto.Overhead {
		return 0, message.ErrBadFormat
	}
	return len(m.Ciphertext) - crypto.Overhead, nil
}

// Decrypt authenticates and opens wire. State is only changed on success.
func (st *State) Decrypt(wire []byte) ([]byte, error) {
	m, header, err := message.Decode(wire)
	if err != nil {
		return nil, err
	}
	theirKey, ok := domain.X25519PublicFromBytes(m.RatchetKey)
	if !ok {
		return nil, message.ErrBadFormat
	}

	idx := st.findReceiver(theirKey)
	if idx >= 0 && m.Counter < st.Receivers[idx].Chain.Index {
		return st.decryptSkipped(theirKey, m, header)
	}

	var (
		chain   ChainKey
		newRoot domain.SymmetricKey
	)
	if idx >= 0 {
		chain = st.Receivers[idx].Chain
	} else {
		if st.Sender == nil {
			return nil, ErrUnknownKey
		}
		root, ck, err := kdfRK(st.RootKey, st.Sender.RatchetKey.Private, theirKey)
		if err != nil {
			return nil, message.ErrBadFormat
		}
		newRoot = root
		defer memzero.Zero(newRoot[:])
		chain = ChainKey{Key: ck}
	}
	if m.Counter-chain.Index > MaxMessageGap {
		return nil, ErrGapTooLarge
	}

	var skipped []SkippedKey
	for chain.Index < m.Counter {
		skipped = append(skipped, SkippedKey{RatchetKey: theirKey, Index: chain.Index, Key: messageKey(chain.Key)})
		chain = nextChain(chain)
	}
	mk := messageKey(chain.Key)
	pt, err := crypto.Open(mk[:], keysInfo, header, m.Ciphertext)
	memzero.Zero(mk[:])
	if err != nil {
		discard(&chain, skipped)
		return nil, ErrBadMAC
	}
	chain = nextChain(chain)

	if idx >= 0 {
		st.Receivers[idx].Chain = chain
	} else {
		st.RootKey = newRoot
		st.Receivers = append([]ReceiverChain{{RatchetKey: theirKey, Chain: chain}}, st.Receivers...)
		if len(st.Receivers) > MaxReceiverChains {
			for i := MaxReceiverChains; i < len(st.Receivers); i++ {
				memzero.Zero(st.Receivers[i].Chain.Key[:])
			}
			st.Receivers = st.Receivers[:MaxReceiverChains]
		}
		memzero.Zero(st.Sender.RatchetKey.Private[:])
		memzero.Zero(st.Sender.Chain.Key[:])
		st.Sender = nil
	}
	st.addSkipped(skipped)
	return pt, nil
}

// Clear wipes every key held by the state.
func (st *State) Clear() {
	memzero.Zero(st.RootKey[:])
	if st.Sender != nil {
		memzero.Zero(st.Sender.RatchetKey.Private[:])
		memzero.Zero(st.Sender.Chain.Key[:])
		st.Sender = nil
	}
	for i := range st.Receivers {
		memzero.Zero(st.Receivers[i].Chain.Key[:])
	}
	for i := range st.Skipped {
		memzero.Zero(st.Skipped[i].Key[:])
	}
	st.Receivers, st.Skipped = nil, nil
}

// --- helpers ---

func (st *State) decryptSkipped(theirKey domain.X25519Public, m message.Message, header []byte) ([]byte, error) {
	for i := range st.Skipped {
		sk := &st.Skipped[i]
		if sk.Index != m.Counter || sk.RatchetKey != theirKey {
			continue
		}
		pt, err := crypto.Open(sk.Key[:], keysInfo, header, m.Ciphertext)
		if err != nil {
			return nil, ErrBadMAC
		}
		memzero.Zero(sk.Key[:])
		st.Skipped = append(st.Skipped[:i], st.Skipped[i+1:]...)
		return pt, nil
	}
	return nil, ErrUnknownKey
}

func (st *State) findReceiver(key domain.X25519Public) int {
	for i := range st.Receivers {
		if hmac.Equal(st.Receivers[i].RatchetKey[:], key[:]) {
			return i
		}
	}
	return -1
}

// addSkipped appends keys and drops the oldest ones beyond the cap.
func (st *State) addSkipped(keys []SkippedKey) {
	st.Skipped = append(st.Skipped, keys...)
	if extra := len(st.Skipped) - MaxSkippedKeys; extra > 0 {
		for i := 0; i < extra; i++ {
			memzero.Zero(st.Skipped[i].Key[:])
		}
		st.Skipped = append([]SkippedKey(nil), st.Skipped[extra:]...)
	}
}

// kdfRK performs a Diffie-Hellman ratchet step.
func kdfRK(root domain.SymmetricKey, ours domain.X25519Private, theirs domain.X25519Public) (newRoot, chain domain.SymmetricKey, err error) {
	shared, err := crypto.DH(ours, theirs)
	if err != nil {
		return newRoot, chain, err
	}
	crypto.HKDF(shared[:], root[:], ratchetInfo, newRoot[:], chain[:])
	memzero.Zero(shared[:])
	return newRoot, chain, nil
}

func nextChain(ck ChainKey) ChainKey {
	return ChainKey{Index: ck.Index + 1, Key: hmacStep(ck.Key, 0x02)}
}

func messageKey(ck domain.SymmetricKey) domain.SymmetricKey {
	return hmacStep(ck, 0x01)
}

func hmacStep(key domain.SymmetricKey, b byte) (out domain.SymmetricKey) {
	h := hmac.New(sha256.New, key[:])
	h.Write([]byte{b})
	copy(out[:], h.Sum(nil))
	return out
}

// discard wipes a chain and the message keys derived from it on a failed
// decrypt.
func discard(chain *ChainKey, skipped []SkippedKey) {
	memzero.Zero(chain.Key[:])
	for i := range skipped {
		memzero.Zero(skipped[i].Key[:])
	}
}
