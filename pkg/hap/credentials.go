package hap

import (
	"encoding/hex"
	"errors"
	"strings"
)

var ErrCredentialsFormat = errors.New("hap: wrong credentials format")

// Credentials - the durable output of pair-setup
type Credentials struct {
	LTPK     []byte // peer Ed25519 public key, 32 bytes
	LTSK     []byte // our Ed25519 private seed, 32 bytes
	ATVID    []byte // peer identifier
	ClientID []byte // our identifier, textual UUID as bytes
}

// String renders the four parts as hex tokens joined by ':'
func (c *Credentials) String() string {
	return hex.EncodeToString(c.LTPK) + ":" +
		hex.EncodeToString(c.LTSK) + ":" +
		hex.EncodeToString(c.ATVID) + ":" +
		hex.EncodeToString(c.ClientID)
}

func ParseCredentials(s string) (*Credentials, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return nil, ErrCredentialsFormat
	}

	c := &Credentials{}
	for i, dst := range []*[]byte{&c.LTPK, &c.LTSK, &c.ATVID, &c.ClientID} {
		b, err := hex.DecodeString(parts[i])
		if err != nil {
			return nil, ErrCredentialsFormat
		}
		*dst = b
	}

	return c, nil
}
