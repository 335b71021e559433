package domain

import (
	"crypto/rand"
	"regexp"
)

// DocumentIDLength is the length of every document identifier.
const DocumentIDLength = 16

const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9]{16}$`)

// RandomID generates a new opaque document identifier: 16 characters drawn
// uniformly from [a-zA-Z0-9].
func RandomID() string {
	buf := make([]byte, DocumentIDLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	out := make([]byte, DocumentIDLength)
	for i, b := range buf {
		out[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(out)
}

// IsValidID reports whether s is a well-formed document identifier.
func IsValidID(s string) bool {
	return idPattern.MatchString(s)
}
