package hap

import "fmt"

// TLV error codes (tag 0x07) reported by the peer
const (
	ErrCodeUnknown         = 1
	ErrCodeAuthentication  = 2
	ErrCodeBackoff         = 3
	ErrCodeUnknownPeer     = 4
	ErrCodeMaxPeers        = 5
	ErrCodeMaxAuthAttempts = 6
)

// PairingError - peer-reported pairing failure
type PairingError struct {
	Code byte
}

func (e *PairingError) Error() string {
	switch e.Code {
	case ErrCodeAuthentication:
		return "hap: authentication failed (likely wrong PIN)"
	case ErrCodeBackoff:
		return "hap: backoff requested"
	case ErrCodeUnknownPeer:
		return "hap: unknown peer"
	case ErrCodeMaxPeers:
		return "hap: max peers reached"
	case ErrCodeMaxAuthAttempts:
		return "hap: max authentication attempts reached"
	}
	return fmt.Sprintf("hap: pairing error %d", e.Code)
}
