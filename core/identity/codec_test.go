package identity

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T, passPhrase string) Key {
	key, err := DeriveKey(passPhrase)
	require.NoError(t, err)
	return key
}

func TestEncodeDecode_roundTrip(t *testing.T) {
	key := mustKey(t, "secret123")

	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "empty", plaintext: ""},
		{name: "ascii", plaintext: "TCH4F9A2B"},
		{name: "longer than key", plaintext: "a teacher identifier longer than sixteen bytes"},
		{name: "multi-byte", plaintext: "Élève 学生 🎓"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := Encode(tt.plaintext, key)
			require.NoError(t, err)
			assert.Equal(t, 1, strings.Count(token, separator))

			got, err := Decode(token, key)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, got)
		})
	}
}

func TestEncodeDecode_roundTripProperty(t *testing.T) {
	f := func(plaintext, passPhrase string) bool {
		if passPhrase == "" {
			return true
		}
		key, err := DeriveKey(passPhrase)
		if err != nil {
			return false
		}
		token, err := Encode(plaintext, key)
		if err != nil {
			return false
		}
		got, err := Decode(token, key)
		return err == nil && got == plaintext
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 200}); err != nil {
		t.Errorf("round-trip property failed: %v", err)
	}
}

func TestEncode_ivIndependence(t *testing.T) {
	key := mustKey(t, "secret123")

	t1, err := Encode("TCH4F9A2B", key)
	require.NoError(t, err)
	t2, err := Encode("TCH4F9A2B", key)
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)

	// same payload, different IV
	assert.Equal(t, strings.SplitN(t1, separator, 2)[1], strings.SplitN(t2, separator, 2)[1])

	for _, token := range []string{t1, t2} {
		got, err := Decode(token, key)
		require.NoError(t, err)
		assert.Equal(t, "TCH4F9A2B", got)
	}
}

func TestEncode_knownPayload(t *testing.T) {
	key := mustKey(t, "abc")

	token, err := Encode("abcd", key)
	require.NoError(t, err)

	parts := strings.Split(token, separator)
	require.Len(t, parts, 2)
	iv, err := base64.StdEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Len(t, iv, ivSize)

	data, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	// 'a'^'a', 'b'^'b', 'c'^'c', 'd'^'a'
	assert.Equal(t, []byte{0, 0, 0, 'd' ^ 'a'}, data)
}

func TestDecode_ignoresIV(t *testing.T) {
	key := mustKey(t, "secret123")
	token, err := Encode("TCH4F9A2B", key)
	require.NoError(t, err)

	otherIV := base64.StdEncoding.EncodeToString(make([]byte, ivSize))
	forged := otherIV + separator + strings.SplitN(token, separator, 2)[1]

	got, err := Decode(forged, key)
	require.NoError(t, err)
	assert.Equal(t, "TCH4F9A2B", got)
}

func TestDecode_crossKeyDoesNotPanic(t *testing.T) {
	f := func(plaintext, k1, k2 string) bool {
		if k1 == "" || k2 == "" {
			return true
		}
		token, err := Encode(plaintext, mustKey(t, k1))
		if err != nil {
			return false
		}
		assert.NotPanics(t, func() {
			got, err := Decode(token, mustKey(t, k2))
			if err != nil {
				assert.True(t, errors.Is(err, ErrInvalidToken))
				assert.Empty(t, got)
			}
		})
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 200}); err != nil {
		t.Errorf("cross-key property failed: %v", err)
	}
}

func TestDecode_malformed(t *testing.T) {
	key := mustKey(t, "secret123")
	validIV := base64.StdEncoding.EncodeToString(make([]byte, ivSize))

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "no separator", token: "not-a-valid-token", wantErr: ErrMalformedToken},
		{name: "empty", token: "", wantErr: ErrMalformedToken},
		{name: "extra separator", token: "a.b.c", wantErr: ErrMalformedToken},
		{name: "only separator", token: ".", wantErr: ErrMalformedToken},
		{name: "empty iv", token: ".AAAA", wantErr: ErrMalformedToken},
		{name: "iv not base64", token: "%%%%." + base64.StdEncoding.EncodeToString([]byte("x")), wantErr: ErrMalformedToken},
		{name: "short iv", token: "AAAA.AAAA", wantErr: ErrMalformedToken},
		{name: "payload not base64", token: validIV + ".@@@", wantErr: ErrMalformedToken},
		{name: "payload not utf-8", token: validIV + separator + base64.StdEncoding.EncodeToString(xor([]byte{0xff, 0xfe}, key)), wantErr: ErrInvalidEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			var err error
			assert.NotPanics(t, func() { got, err = Decode(tt.token, key) })
			assert.Equal(t, tt.wantErr, err)
			assert.True(t, errors.Is(err, ErrInvalidToken))
			assert.Empty(t, got)
		})
	}
}

func TestEncodeDecode_emptyKey(t *testing.T) {
	_, err := Encode("TCH4F9A2B", nil)
	assert.Equal(t, ErrEmptyKey, err)

	_, err = Decode("AAAAAAAAAAAAAAAAAAAAAA==.AAAA", Key{})
	assert.Equal(t, ErrEmptyKey, err)
}

func TestXORCodec_shortPassPhrase(t *testing.T) {
	codec, err := NewXORCodec("abc")
	require.NoError(t, err)

	token, err := codec.Encode("TCH4F9A2B")
	require.NoError(t, err)
	got, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "TCH4F9A2B", got)
}

func TestNewCodec(t *testing.T) {
	tests := []struct {
		name       string
		kind       string
		passPhrase string
		wantType   Codec
		wantErr    error
	}{
		{name: "default", kind: "", passPhrase: "secret123", wantType: &XORCodec{}},
		{name: "xor", kind: "xor", passPhrase: "secret123", wantType: &XORCodec{}},
		{name: "aead", kind: "aead", passPhrase: "secret123", wantType: &AEADCodec{}},
		{name: "xor: empty pass-phrase", kind: "xor", wantErr: ErrEmptyPassPhrase},
		{name: "aead: empty pass-phrase", kind: "aead", wantErr: ErrEmptyPassPhrase},
		{name: "unknown", kind: "rot13", passPhrase: "secret123", wantErr: ErrUnknownCodec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := NewCodec(tt.kind, tt.passPhrase)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, codec)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, codec)
		})
	}
}
