package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewID returns a best-effort unique identifier.
func NewID() string {
	const size = 12

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}

	// Fallback to timestamp if crypto/rand is unavailable.
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// NewRoomCode returns a short human-typable join code. The alphabet
// avoids easily confused characters (0/O, 1/I/L).
func NewRoomCode() string {
	const size = 4

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return NewID()[:size]
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}
