package common

import "crypto/rand"

// GenerateRandByteArray returns size bytes from the system CSPRNG.
// crypto/rand.Read never fails on supported platforms; a failure here means
// the process cannot produce key material at all, so it panics.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used to drop key material from memory after use.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
