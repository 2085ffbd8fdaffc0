package p2p

import (
	"bytes"
	"crypto/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	t.Helper()

	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	return key
}

func TestMessageCipher_RoundTrip(t *testing.T) {
	cipher, ring, err := NewMessageCipher()
	require.NoError(t, err)
	require.Equal(t, 1, ring.Len())

	plaintexts := [][]byte{
		[]byte("Hello, world!"),
		{},
		[]byte{0x00},
		bytes.Repeat([]byte{0xff}, 64*1024),
	}

	for _, plaintext := range plaintexts {
		wire, err := cipher.Encode(plaintext)
		require.NoError(t, err)
		assert.Len(t, wire, len(plaintext)+16+NonceSize) // GCM tag + trailing nonce

		decoded, err := cipher.Decode(wire)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decoded)
	}
}

func TestMessageCipher_NonceUniqueness(t *testing.T) {
	cipher, _, err := NewMessageCipher()
	require.NoError(t, err)

	plaintext := []byte("same plaintext every time")

	first, err := cipher.Encode(plaintext)
	require.NoError(t, err)

	second, err := cipher.Encode(plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "two encodings of the same plaintext must differ")
}

func TestMessageCipher_KeyRotation(t *testing.T) {
	k1 := randomKey(t)
	k2 := randomKey(t)

	// A cipher frozen on k1 stands in for a peer that never saw the rotation.
	oldPeer := &MessageCipher{keys: &KeyRing{}}
	require.NoError(t, oldPeer.keys.AddKey(k1))

	rotated := &MessageCipher{keys: &KeyRing{}}
	require.NoError(t, rotated.keys.AddKey(k1))

	// Encrypted under k1 before rotation
	oldWire, err := rotated.Encode([]byte("sent before rotation"))
	require.NoError(t, err)

	require.NoError(t, rotated.keys.AddKey(k2))
	assert.Equal(t, 2, rotated.keys.Len())

	// Old traffic still decodes against the full ring
	decoded, err := rotated.Decode(oldWire)
	require.NoError(t, err)
	assert.Equal(t, []byte("sent before rotation"), decoded)

	// New traffic uses k2 exclusively: the k1-only peer cannot read it, the
	// full ring can.
	newWire, err := rotated.Encode([]byte("sent after rotation"))
	require.NoError(t, err)

	_, err = oldPeer.Decode(newWire)
	assert.ErrorIs(t, err, ErrNoMatchingKey)

	decoded, err = rotated.Decode(newWire)
	require.NoError(t, err)
	assert.Equal(t, []byte("sent after rotation"), decoded)

	// And the unrotated peer's messages still reach the rotated one.
	lateWire, err := oldPeer.Encode([]byte("laggard"))
	require.NoError(t, err)

	decoded, err = rotated.Decode(lateWire)
	require.NoError(t, err)
	assert.Equal(t, []byte("laggard"), decoded)
}

func TestMessageCipher_UnknownKeyRejected(t *testing.T) {
	sender, _, err := NewMessageCipher()
	require.NoError(t, err)

	receiver, _, err := NewMessageCipher()
	require.NoError(t, err)

	wire, err := sender.Encode([]byte("from another room"))
	require.NoError(t, err)

	_, err = receiver.Decode(wire)
	assert.ErrorIs(t, err, ErrNoMatchingKey)
}

func TestMessageCipher_MalformedInput(t *testing.T) {
	cipher, _, err := NewMessageCipher()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: []byte{}},
		{name: "one byte", data: []byte{0x42}},
		{name: "one short of nonce", data: bytes.Repeat([]byte{0x42}, NonceSize-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cipher.Decode(tt.data)
			assert.ErrorIs(t, err, ErrShortMessage)
		})
	}

	// Exactly nonce-sized input is not malformed, just undecryptable.
	_, err = cipher.Decode(bytes.Repeat([]byte{0x42}, NonceSize))
	assert.ErrorIs(t, err, ErrNoMatchingKey)
}

func TestKeyRing_RejectsBadKeySize(t *testing.T) {
	ring := &KeyRing{}

	assert.Error(t, ring.AddKey([]byte("too short")))
	assert.Error(t, ring.AddKey(bytes.Repeat([]byte{1}, KeySize+1)))
	assert.Equal(t, 0, ring.Len())
}

func TestKeyRing_ConcurrentRotationAndUse(t *testing.T) {
	cipher, ring, err := NewMessageCipher()
	require.NoError(t, err)

	var wg sync.WaitGroup

	// Rotations from an administrative goroutine while the cipher encodes
	// and decodes. Nothing here asserts ordering, only that no call fails or
	// races.
	wg.Add(1)
	go func() {
		defer wg.Done()

		for i := 0; i < 20; i++ {
			key := make([]byte, KeySize)
			_, _ = rand.Read(key)
			_ = ring.AddKey(key)
		}
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := 0; i < 50; i++ {
				wire, err := cipher.Encode([]byte("concurrent"))
				if err != nil {
					t.Errorf("encode: %v", err)
					return
				}

				if _, err := cipher.Decode(wire); err != nil {
					t.Errorf("decode: %v", err)
					return
				}
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 21, ring.Len())
}
