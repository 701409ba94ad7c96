package identity

import (
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const aeadInfo = "elimu-identity-v1"

// AEADCodec seals the identifier with ChaCha20-Poly1305.
// Tokens keep the "nonce.ciphertext" shape of XORCodec tokens but the two are not interchangeable.
type AEADCodec struct {
	aead cipher.AEAD
}

var _ Codec = (*AEADCodec)(nil) // interface compliance check

// NewAEADCodec derives a 32-byte key from passPhrase with HKDF-SHA256.
func NewAEADCodec(passPhrase string) (*AEADCodec, error) {
	if passPhrase == "" {
		return nil, ErrEmptyPassPhrase
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(passPhrase), nil, []byte(aeadInfo)), key); err != nil {
		return nil, fmt.Errorf("identity: deriving aead key: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("identity: creating aead: %w", err)
	}
	return &AEADCodec{aead: aead}, nil
}

func (c *AEADCodec) Encode(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return "", fmt.Errorf("identity: generating nonce: %w", err)
	}
	return joinToken(nonce, c.aead.Seal(nil, nonce, []byte(plaintext), []byte(aeadInfo))), nil
}

func (c *AEADCodec) Decode(token string) (string, error) {
	nonce, data, err := splitToken(token, c.aead.NonceSize())
	if err != nil {
		return "", err
	}
	plain, err := c.aead.Open(nil, nonce, data, []byte(aeadInfo))
	if err != nil {
		return "", ErrInvalidToken
	}
	if !utf8.Valid(plain) {
		return "", ErrInvalidEncoding
	}
	return string(plain), nil
}
