package crypt4gh

import "errors"

var (
	// ErrMalformedEnvelope indicates the bytes do not form a header this
	// package understands: bad magic or version, truncated packets, or
	// unsupported packet contents.
	ErrMalformedEnvelope = errors.New("crypt4gh: malformed or missing envelope")

	// ErrDecryption indicates no header packet could be opened with the
	// key pair: wrong recipient, wrong sender, or a failed authentication tag.
	ErrDecryption = errors.New("crypt4gh: envelope decryption failed")

	// ErrInvalidKey indicates a key that is not a usable X25519 key.
	ErrInvalidKey = errors.New("crypt4gh: invalid key")
)
