// Package companion implements the Apple TV Companion protocol: a framed,
// optionally-encrypted TCP transport carrying OPACK messages, with HAP
// pairing, request/response dispatch, remote-control commands and the RTI
// text-input sub-protocol on top.
package companion

import "fmt"

// FrameType - first byte of every frame
type FrameType byte

const (
	FrameUnknown FrameType = 0
	FrameNoOp    FrameType = 1

	FramePSStart FrameType = 3
	FramePSNext  FrameType = 4
	FramePVStart FrameType = 5
	FramePVNext  FrameType = 6

	FrameUOpack FrameType = 7
	FrameEOpack FrameType = 8
	FramePOpack FrameType = 9

	FramePARequest  FrameType = 10
	FramePAResponse FrameType = 11

	FrameSessionStartRequest  FrameType = 16
	FrameSessionStartResponse FrameType = 17
	FrameSessionData          FrameType = 18

	FrameFamilyIdentityRequest  FrameType = 32
	FrameFamilyIdentityResponse FrameType = 33
	FrameFamilyIdentityUpdate   FrameType = 34
)

func (t FrameType) String() string {
	switch t {
	case FrameNoOp:
		return "NoOp"
	case FramePSStart:
		return "PS_Start"
	case FramePSNext:
		return "PS_Next"
	case FramePVStart:
		return "PV_Start"
	case FramePVNext:
		return "PV_Next"
	case FrameUOpack:
		return "U_OPACK"
	case FrameEOpack:
		return "E_OPACK"
	case FramePOpack:
		return "P_OPACK"
	}
	return fmt.Sprintf("FrameType(%d)", byte(t))
}

// replyType maps a request frame to the type its reply arrives on:
// *_Start and *_Next requests are both answered with *_Next.
func replyType(t FrameType) FrameType {
	switch t {
	case FramePSStart, FramePSNext:
		return FramePSNext
	case FramePVStart, FramePVNext:
		return FramePVNext
	}
	return t
}
