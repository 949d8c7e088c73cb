package ed25519

import (
	"crypto/ed25519"
	"errors"
)

var ErrInvalidParams = errors.New("ed25519: invalid params")

// Signature signs with a 32-byte seed (the stored half of HapCredentials)
func Signature(seed, data []byte) ([]byte, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidParams
	}
	return ed25519.Sign(ed25519.NewKeyFromSeed(seed), data), nil
}

func PublicKey(seed []byte) []byte {
	return ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
}

func ValidateSignature(key, data, signature []byte) bool {
	if len(key) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(key, data, signature)
}
