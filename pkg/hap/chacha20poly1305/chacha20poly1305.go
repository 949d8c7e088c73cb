package chacha20poly1305

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrInvalidParams = errors.New("chacha20poly1305: invalid params")

// EncryptAndSeal uses an explicit 8-byte nonce ("PS-Msg05", "PV-Msg02", ...)
// left-padded with zeroes to the 12-byte AEAD nonce. Returns ciphertext with
// the 16-byte tag appended.
func EncryptAndSeal(key32, nonce8, plaintext, aad []byte) ([]byte, error) {
	aead, nonce, err := newAEAD(key32, nonce8)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func DecryptAndVerify(key32, nonce8, ciphertext, aad []byte) ([]byte, error) {
	aead, nonce, err := newAEAD(key32, nonce8)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, aad)
}

// SealCounter uses a little-endian 64-bit counter in the low 8 bytes of the
// nonce (top 4 bytes zero).
func SealCounter(key32 []byte, counter uint64, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key32)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, CounterNonce(counter), plaintext, aad), nil
}

func OpenCounter(key32 []byte, counter uint64, ciphertext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key32)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, CounterNonce(counter), ciphertext, aad)
}

func CounterNonce(counter uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.LittleEndian.PutUint64(nonce, counter)
	return nonce
}

func newAEAD(key32, nonce8 []byte) (aead cipher.AEAD, nonce []byte, err error) {
	if len(key32) != chacha20poly1305.KeySize || len(nonce8) != 8 {
		return nil, nil, ErrInvalidParams
	}

	a, err := chacha20poly1305.New(key32)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, chacha20poly1305.NonceSize)
	copy(nonce[4:], nonce8)

	return a, nonce, nil
}
