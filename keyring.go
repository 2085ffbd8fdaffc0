package p2p

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length appended to every wire message.
	NonceSize = 12
)

// messageAAD is the fixed associated-data tag authenticated with every
// message. It is shared by every room and session of this build; per-room
// key or AAD separation is a known gap, not something to bolt on silently.
var messageAAD = []byte{0xde, 0xad, 0xbe, 0xef}

var (
	// ErrNoMatchingKey is returned by Decode when no key in the ring
	// authenticates the message. This is the normal outcome for traffic from
	// peers in an unrelated room and must not be treated as fatal.
	ErrNoMatchingKey = errors.New("p2p: no matching key")

	// ErrShortMessage is returned by Decode for a payload too short to carry
	// the trailing nonce.
	ErrShortMessage = errors.New("p2p: message shorter than nonce")
)

// KeyRing is an ordered, shared collection of AEAD keys. The newest key is
// always the sole encryption key; every key remains eligible for decryption
// so that peers still using an older key keep working across a rotation.
//
// The ring is shared between the engine's message cipher and any
// administrative caller rotating keys, so all access goes through a
// read-write mutex. Appends become visible to subsequent Encode and Decode
// calls; no stronger ordering is guaranteed.
type KeyRing struct {
	mu    sync.RWMutex
	aeads []cipher.AEAD
}

// AddKey appends a new AES-256 key to the ring. The key becomes the
// encryption key for all subsequent Encode calls; older keys stay valid for
// decryption. Safe for concurrent use.
func (kr *KeyRing) AddKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("p2p: key must be %d bytes, got %d", KeySize, len(key))
	}

	aead, err := newAEAD(key)
	if err != nil {
		return err
	}

	kr.mu.Lock()
	kr.aeads = append(kr.aeads, aead)
	kr.mu.Unlock()

	return nil
}

// Len reports the number of keys currently in the ring.
func (kr *KeyRing) Len() int {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	return len(kr.aeads)
}

// snapshot returns the current key list. The slice is append-only, so the
// returned prefix is immutable.
func (kr *KeyRing) snapshot() []cipher.AEAD {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	return kr.aeads
}

// MessageCipher is the per-message encryption transform applied to every
// gossip payload: Encode on the publish path, Decode on the receive path.
type MessageCipher struct {
	keys *KeyRing
}

// NewMessageCipher creates a cipher together with its key ring, seeded with
// one freshly generated AES-256 key. The returned KeyRing is the handle for
// administrative key rotation; the ring is never empty.
func NewMessageCipher() (*MessageCipher, *KeyRing, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, nil, fmt.Errorf("p2p: error generating initial key: %w", err)
	}

	ring := &KeyRing{}
	if err := ring.AddKey(key); err != nil {
		return nil, nil, err
	}

	return &MessageCipher{keys: ring}, ring, nil
}

// Encode encrypts and authenticates plaintext under the newest ring key with
// a fresh random nonce, and returns ciphertext followed by the nonce. Nonce
// uniqueness per key is what keeps GCM safe, hence a new random nonce on
// every call.
func (c *MessageCipher) Encode(plaintext []byte) ([]byte, error) {
	aeads := c.keys.snapshot()
	aead := aeads[len(aeads)-1]

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("p2p: error generating nonce: %w", err)
	}

	out := aead.Seal(nil, nonce, plaintext, messageAAD)

	return append(out, nonce...), nil
}

// Decode splits the trailing nonce from data and attempts authenticated
// decryption against every ring key from newest to oldest, returning the
// first success. Newest-first is the common case; older keys cover peers
// that have not yet observed a rotation.
//
// Returns ErrShortMessage for malformed input and ErrNoMatchingKey when
// every key fails.
func (c *MessageCipher) Decode(data []byte) ([]byte, error) {
	if len(data) < NonceSize {
		return nil, ErrShortMessage
	}

	split := len(data) - NonceSize
	ciphertext, nonce := data[:split], data[split:]

	aeads := c.keys.snapshot()
	for i := len(aeads) - 1; i >= 0; i-- {
		plaintext, err := aeads[i].Open(nil, nonce, ciphertext, messageAAD)
		if err == nil {
			return plaintext, nil
		}
	}

	return nil, ErrNoMatchingKey
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("p2p: error creating cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("p2p: error creating GCM: %w", err)
	}

	return aead, nil
}
