package chacha20poly1305

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func TestCounterNonce(t *testing.T) {
	require.Equal(t,
		[]byte{5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		CounterNonce(5))

	require.Equal(t,
		[]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		CounterNonce(0))

	require.Equal(t,
		[]byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		CounterNonce(1))

	// 2^63-1, little-endian in the low 8 bytes, zeroes on top
	require.Equal(t,
		[]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x7F, 0, 0, 0, 0},
		CounterNonce(1<<63-1))
}

func TestExplicitNoncePadding(t *testing.T) {
	key := make([]byte, 32)
	_, _ = rand.Read(key)

	ciphertext, err := EncryptAndSeal(key, []byte("PV-Msg02"), []byte("data"), nil)
	require.Nil(t, err)

	// the 8-byte nonce is padded with zeroes on the high side
	aead, err := chacha20poly1305.New(key)
	require.Nil(t, err)

	nonce := []byte{0, 0, 0, 0, 'P', 'V', '-', 'M', 's', 'g', '0', '2'}
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	require.Nil(t, err)
	require.Equal(t, []byte("data"), plain)
}

func TestRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, _ = rand.Read(key)

	ciphertext, err := EncryptAndSeal(key, []byte("PS-Msg05"), []byte("hello"), nil)
	require.Nil(t, err)

	plain, err := DecryptAndVerify(key, []byte("PS-Msg05"), ciphertext, nil)
	require.Nil(t, err)
	require.Equal(t, []byte("hello"), plain)

	_, err = DecryptAndVerify(key, []byte("PS-Msg06"), ciphertext, nil)
	require.NotNil(t, err)
}

func TestCounterRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, _ = rand.Read(key)

	aad := []byte{8, 0, 0, 0x15}

	ciphertext, err := SealCounter(key, 7, []byte("hello"), aad)
	require.Nil(t, err)

	plain, err := OpenCounter(key, 7, ciphertext, aad)
	require.Nil(t, err)
	require.Equal(t, []byte("hello"), plain)

	_, err = OpenCounter(key, 8, ciphertext, aad)
	require.NotNil(t, err)
}
