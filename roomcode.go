package p2p

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{3}-[A-Z0-9]{3}$`)

// GenerateRoomCode produces a human-shareable room token of two 3-character
// uppercase alphanumeric groups joined by a hyphen, e.g. "AB3-K9Q". The code
// is drawn from a cryptographic random source; hosts hand it to players out
// of band and the engine uses it verbatim in the room's provider-record key.
func GenerateRoomCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("p2p: error generating room code: %w", err)
	}

	code := make([]byte, 7)
	for i, b := range buf {
		pos := i
		if i >= 3 {
			pos++
		}
		code[pos] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	code[3] = '-'

	return string(code), nil
}

// ValidateRoomCode reports whether code is a well-formed room token.
func ValidateRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// RoomProviderKey derives the DHT provider-record key for a room code.
// Peers sharing a code find each other by providing and resolving this key.
func RoomProviderKey(roomCode string) string {
	return RoomNamespace + roomCode
}
