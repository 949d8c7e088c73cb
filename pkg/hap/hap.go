// Package hap implements the client side of the HomeKit Accessory Protocol
// pairing handshakes: pair-setup (SRP) and pair-verify (X25519). The
// handshakes are carrier-independent - the same state machines run over
// AirPlay HTTP and over the framed Companion transport.
package hap

import (
	"github.com/google/uuid"
)

const (
	StateM1 = 1
	StateM2 = 2
	StateM3 = 3
	StateM4 = 4
	StateM5 = 5
	StateM6 = 6
)

const (
	MethodPair       = 0
	MethodPairMFi    = 1
	MethodVerifyPair = 2
)

// Carrier delivers one pairing TLV to the peer and returns the reply TLV.
// The AirPlay carrier POSTs to /pair-setup; the Companion carrier wraps the
// TLV in an OPACK auth frame.
type Carrier interface {
	Exchange(payload []byte) ([]byte, error)
}

// SessionKeys - the two symmetric keys derived after pair-verify. Lifetime
// equals the connection; never persisted.
type SessionKeys struct {
	Output []byte // ClientEncrypt-main
	Input  []byte // ServerEncrypt-main
}

// GenerateClientID returns a fresh controller identifier in canonical
// textual UUID form.
func GenerateClientID() string {
	return uuid.NewString()
}

// payload covers every TLV tag either handshake can see
type payload struct {
	Method        byte   `tlv8:"0"`
	Identifier    []byte `tlv8:"1"`
	Salt          []byte `tlv8:"2"`
	PublicKey     []byte `tlv8:"3"`
	Proof         []byte `tlv8:"4"`
	EncryptedData []byte `tlv8:"5"`
	State         byte   `tlv8:"6"`
	Error         byte   `tlv8:"7"`
	RetryDelay    byte   `tlv8:"8"`
	Signature     []byte `tlv8:"10"`
	Name          []byte `tlv8:"17"`
}
