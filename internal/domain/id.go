package domain

import "crypto/rand"

// SessionIDLength is the length of generated session codes. Codes are
// meant to be read over the phone, so they are short, uppercase and skip
// easily-confused characters.
const SessionIDLength = 8

const sessionIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewSessionID generates a random human-shareable session code.
func NewSessionID() SessionID {
	buf := make([]byte, SessionIDLength)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = sessionIDAlphabet[int(b)%len(sessionIDAlphabet)]
	}
	return SessionID(buf)
}
