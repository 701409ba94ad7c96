package identity

import "errors"

// KeySize is the maximum length of a derived Key.
const KeySize = 16

// ErrEmptyPassPhrase is returned when no pass-phrase is configured.
var ErrEmptyPassPhrase = errors.New("identity: empty pass-phrase")

// Key is the XOR keystream seed: at most KeySize bytes.
type Key []byte

// DeriveKey returns the first KeySize bytes of the UTF-8 encoded pass-phrase.
// Shorter pass-phrases give a shorter Key, which the XOR codec cycles over.
func DeriveKey(passPhrase string) (Key, error) {
	if passPhrase == "" {
		return nil, ErrEmptyPassPhrase
	}
	b := []byte(passPhrase)
	if len(b) > KeySize {
		b = b[:KeySize]
	}
	key := make(Key, len(b))
	copy(key, b)
	return key, nil
}
