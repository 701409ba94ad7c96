package identity

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/trezcool/elimu/core"
)

const (
	ivSize    = 16
	separator = "."
)

var (
	randReader io.Reader = rand.Reader // mockable

	// errors
	ErrEmptyKey        = errors.New("identity: empty key")
	ErrUnknownCodec    = errors.New("identity: unknown codec")
	ErrInvalidToken    = errors.New("identity: invalid token")
	ErrMalformedToken  = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrInvalidEncoding = fmt.Errorf("%w: not utf-8", ErrInvalidToken)
)

// Codec turns an identifier into a cookie-safe token and back.
// Decode never panics: every failure is reported as an error matching ErrInvalidToken.
type Codec interface {
	Encode(plaintext string) (string, error)
	Decode(token string) (string, error)
}

// NewCodec returns the codec registered under kind (core.CodecXOR or core.CodecAEAD).
func NewCodec(kind, passPhrase string) (Codec, error) {
	var (
		codec Codec
		err   error
	)
	switch kind {
	case core.CodecXOR, "":
		codec, err = NewXORCodec(passPhrase)
	case core.CodecAEAD:
		codec, err = NewAEADCodec(passPhrase)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCodec, kind)
	}
	if err != nil {
		return nil, err
	}
	return codec, nil
}

// XORCodec masks the identifier with a cyclic XOR of the derived Key.
// Tokens look like base64(IV) + "." + base64(masked bytes); the IV is random and never read back.
type XORCodec struct {
	key Key
}

var _ Codec = (*XORCodec)(nil) // interface compliance check

func NewXORCodec(passPhrase string) (*XORCodec, error) {
	key, err := DeriveKey(passPhrase)
	if err != nil {
		return nil, err
	}
	return &XORCodec{key: key}, nil
}

func (c *XORCodec) Encode(plaintext string) (string, error) { return Encode(plaintext, c.key) }

func (c *XORCodec) Decode(token string) (string, error) { return Decode(token, c.key) }

// Encode masks plaintext with key and returns the token.
func Encode(plaintext string, key Key) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptyKey
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(randReader, iv); err != nil {
		return "", fmt.Errorf("identity: generating iv: %w", err)
	}
	return joinToken(iv, xor([]byte(plaintext), key)), nil
}

// Decode unmasks the token's payload with key.
// The IV segment is only checked for shape.
func Decode(token string, key Key) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptyKey
	}
	_, data, err := splitToken(token, ivSize)
	if err != nil {
		return "", err
	}
	plain := xor(data, key)
	if !utf8.Valid(plain) {
		return "", ErrInvalidEncoding
	}
	return string(plain), nil
}

func xor(src []byte, key Key) []byte {
	dst := make([]byte, len(src))
	for i := range src {
		dst[i] = src[i] ^ key[i%len(key)]
	}
	return dst
}

func joinToken(iv, data []byte) string {
	return base64.StdEncoding.EncodeToString(iv) + separator + base64.StdEncoding.EncodeToString(data)
}

// splitToken parses "iv.data". Both segments must be set, with one exception:
// an empty payload behind a well-formed IV is the encoding of the empty string.
func splitToken(token string, ivLen int) (iv, data []byte, err error) {
	parts := strings.Split(token, separator)
	if len(parts) != 2 || parts[0] == "" {
		return nil, nil, ErrMalformedToken
	}
	iv, err = base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(iv) != ivLen {
		return nil, nil, ErrMalformedToken
	}
	if parts[1] == "" {
		return iv, []byte{}, nil
	}
	data, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, ErrMalformedToken
	}
	return iv, data, nil
}
