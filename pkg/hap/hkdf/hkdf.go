package hkdf

import (
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"
)

func Sha512(key, salt, info []byte) ([]byte, error) {
	r := hkdf.New(sha512.New, key, salt, info)

	buf := make([]byte, 32)
	_, err := io.ReadFull(r, buf)

	return buf, err
}
