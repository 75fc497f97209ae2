package crypt4gh

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"
)

// KeySize is the length of X25519 keys and of the symmetric data key.
const KeySize = 32

// KeyPair is the custodian's long-term X25519 identity. The private half
// never leaves the struct: callers can only open headers addressed to it
// or seal data keys on its behalf.
type KeyPair struct {
	private [KeySize]byte
	public  [KeySize]byte
}

// NewKeyPair wraps a raw private key and derives its public key.
func NewKeyPair(private []byte) (*KeyPair, error) {
	if len(private) != KeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrInvalidKey, KeySize, len(private))
	}
	pub, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	kp := &KeyPair{}
	copy(kp.private[:], private)
	copy(kp.public[:], pub)
	return kp, nil
}

// NewKeyPairFromBase64 decodes a standard base64 private key.
func NewKeyPairFromBase64(private string) (*KeyPair, error) {
	raw, err := base64.StdEncoding.DecodeString(private)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return NewKeyPair(raw)
}

// GenerateKeys returns a fresh raw X25519 key pair. It is the only place
// raw private key bytes are handed out, for provisioning.
func GenerateKeys() (private, public []byte, err error) {
	private = make([]byte, KeySize)
	if _, err := rand.Read(private); err != nil {
		return nil, nil, err
	}
	public, err = curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return private, public, nil
}

// PublicKey returns a copy of the public key.
func (k *KeyPair) PublicKey() []byte {
	out := make([]byte, KeySize)
	copy(out, k.public[:])
	return out
}

// DecodePublicKey accepts standard or URL-safe base64 (padded or not) and
// checks the key length.
func DecodePublicKey(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding,
	} {
		raw, err := enc.DecodeString(s)
		if err != nil {
			continue
		}
		if len(raw) != KeySize {
			return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKey, KeySize, len(raw))
		}
		return raw, nil
	}
	return nil, fmt.Errorf("%w: public key is not base64", ErrInvalidKey)
}

// sessionKey derives the packet key shared between reader and writer:
// the first half of BLAKE2b-512(X25519 || reader_pk || writer_pk).
func sessionKey(private []byte, peer, readerPK, writerPK []byte) ([]byte, error) {
	dh, err := curve25519.X25519(private, peer)
	if err != nil {
		return nil, err
	}
	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, err
	}
	h.Write(dh)
	h.Write(readerPK)
	h.Write(writerPK)
	return h.Sum(nil)[:KeySize], nil
}
