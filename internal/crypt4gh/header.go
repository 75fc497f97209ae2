// Package crypt4gh reads and writes Crypt4GH header envelopes, the small
// binary preamble that carries a file's data key wrapped for one or more
// recipients.
//
// Only the X25519 + ChaCha20-IETF-Poly1305 packet scheme and ChaCha20
// data encryption parameters are supported. Edit lists are rejected.
package crypt4gh

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	magic   = "crypt4gh"
	version = 1

	// header preamble: magic, version, packet count
	preambleLen = len(magic) + 4 + 4

	methodX25519ChaCha20Poly1305 = 0

	packetTypeDataEncryption = 0
	packetTypeEditList       = 1

	dataMethodChaCha20Poly1305 = 0

	// writer public key + nonce + tag around an empty payload
	minSealedLen = KeySize + chacha20poly1305.NonceSize + chacha20poly1305.Overhead

	dataPacketPayloadLen = 4 + 4 + KeySize

	minPacketLen = 4 + 4
)

// Opened is the result of opening a header addressed to this key pair.
type Opened struct {
	// DataKey is the symmetric key the file content is encrypted with.
	DataKey []byte
	// Offset is the length of the header, i.e. where ciphertext starts.
	Offset int64
}

// Open parses the header at the start of filePart and recovers the data key.
// When senderPublicKey is non-nil, only packets written by that key count.
//
// Structural problems yield ErrMalformedEnvelope; a header that parses but
// holds no packet this key pair can authenticate yields ErrDecryption.
func (k *KeyPair) Open(filePart []byte, senderPublicKey []byte) (*Opened, error) {
	packets, offset, err := splitPackets(filePart)
	if err != nil {
		return nil, err
	}

	var dataKey []byte
	for _, p := range packets {
		plain, ok, err := k.openPacket(p, senderPublicKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		key, err := parseDataPacket(plain)
		if err != nil {
			return nil, err
		}
		if dataKey != nil && !bytes.Equal(dataKey, key) {
			return nil, fmt.Errorf("%w: more than one data key", ErrMalformedEnvelope)
		}
		dataKey = key
	}

	if dataKey == nil {
		return nil, ErrDecryption
	}
	return &Opened{DataKey: dataKey, Offset: offset}, nil
}

// Seal builds a single-packet header that wraps dataKey for recipient,
// written by this key pair. Every call uses a fresh nonce.
func (k *KeyPair) Seal(dataKey, recipient []byte) ([]byte, error) {
	if len(dataKey) != KeySize {
		return nil, fmt.Errorf("%w: data key must be %d bytes", ErrInvalidKey, KeySize)
	}
	if len(recipient) != KeySize {
		return nil, fmt.Errorf("%w: recipient key must be %d bytes", ErrInvalidKey, KeySize)
	}

	shared, err := sessionKey(k.private[:], recipient, recipient, k.public[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	aead, err := chacha20poly1305.New(shared)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, dataPacketPayloadLen)
	payload = binary.LittleEndian.AppendUint32(payload, packetTypeDataEncryption)
	payload = binary.LittleEndian.AppendUint32(payload, dataMethodChaCha20Poly1305)
	payload = append(payload, dataKey...)

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := aead.Seal(nil, nonce, payload, nil)

	packetLen := 4 + 4 + KeySize + len(nonce) + len(sealed)

	out := make([]byte, 0, preambleLen+packetLen)
	out = append(out, magic...)
	out = binary.LittleEndian.AppendUint32(out, version)
	out = binary.LittleEndian.AppendUint32(out, 1)
	out = binary.LittleEndian.AppendUint32(out, uint32(packetLen))
	out = binary.LittleEndian.AppendUint32(out, methodX25519ChaCha20Poly1305)
	out = append(out, k.public[:]...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// splitPackets validates the preamble and returns every packet body
// (without its length prefix) plus the total header length.
func splitPackets(b []byte) ([][]byte, int64, error) {
	if len(b) < preambleLen {
		return nil, 0, fmt.Errorf("%w: too short", ErrMalformedEnvelope)
	}
	if string(b[:len(magic)]) != magic {
		return nil, 0, fmt.Errorf("%w: bad magic", ErrMalformedEnvelope)
	}
	if v := binary.LittleEndian.Uint32(b[8:12]); v != version {
		return nil, 0, fmt.Errorf("%w: unsupported version %d", ErrMalformedEnvelope, v)
	}
	count := binary.LittleEndian.Uint32(b[12:16])
	if count == 0 {
		return nil, 0, fmt.Errorf("%w: no header packets", ErrMalformedEnvelope)
	}
	// every packet needs at least its length and method fields
	if uint64(count) > uint64(len(b)-preambleLen)/minPacketLen {
		return nil, 0, fmt.Errorf("%w: %d packets cannot fit in %d bytes", ErrMalformedEnvelope, count, len(b))
	}

	pos := preambleLen
	packets := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(b)-pos < 4 {
			return nil, 0, fmt.Errorf("%w: packet %d truncated", ErrMalformedEnvelope, i)
		}
		plen := int(binary.LittleEndian.Uint32(b[pos : pos+4]))
		if plen < 8 || plen > len(b)-pos {
			return nil, 0, fmt.Errorf("%w: packet %d has bad length %d", ErrMalformedEnvelope, i, plen)
		}
		packets = append(packets, b[pos+4:pos+plen])
		pos += plen
	}
	return packets, int64(pos), nil
}

// openPacket tries to decrypt one packet. ok is false when the packet is
// not addressed to this key pair or uses a scheme we cannot open.
func (k *KeyPair) openPacket(p []byte, senderPublicKey []byte) (plain []byte, ok bool, err error) {
	if binary.LittleEndian.Uint32(p[:4]) != methodX25519ChaCha20Poly1305 {
		return nil, false, nil
	}
	body := p[4:]
	if len(body) < minSealedLen {
		return nil, false, fmt.Errorf("%w: sealed packet too short", ErrMalformedEnvelope)
	}
	writer := body[:KeySize]
	nonce := body[KeySize : KeySize+chacha20poly1305.NonceSize]
	sealed := body[KeySize+chacha20poly1305.NonceSize:]

	if senderPublicKey != nil && !bytes.Equal(writer, senderPublicKey) {
		return nil, false, nil
	}

	shared, err := sessionKey(k.private[:], writer, k.public[:], writer)
	if err != nil {
		return nil, false, nil
	}
	aead, err := chacha20poly1305.New(shared)
	if err != nil {
		return nil, false, err
	}
	plain, err = aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, false, nil
	}
	return plain, true, nil
}

func parseDataPacket(plain []byte) ([]byte, error) {
	if len(plain) < 4 {
		return nil, fmt.Errorf("%w: empty packet payload", ErrMalformedEnvelope)
	}
	switch binary.LittleEndian.Uint32(plain[:4]) {
	case packetTypeDataEncryption:
	case packetTypeEditList:
		return nil, fmt.Errorf("%w: edit lists are not supported", ErrMalformedEnvelope)
	default:
		return nil, fmt.Errorf("%w: unknown packet type", ErrMalformedEnvelope)
	}
	if len(plain) != dataPacketPayloadLen {
		return nil, fmt.Errorf("%w: bad data packet length %d", ErrMalformedEnvelope, len(plain))
	}
	if m := binary.LittleEndian.Uint32(plain[4:8]); m != dataMethodChaCha20Poly1305 {
		return nil, fmt.Errorf("%w: unsupported data encryption method %d", ErrMalformedEnvelope, m)
	}
	key := make([]byte, KeySize)
	copy(key, plain[8:])
	return key, nil
}
