package companion

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/go2atv/go2atv/pkg/hap"
	"github.com/go2atv/go2atv/pkg/opack"
)

const serviceType = "com.apple.tvremoteservices"

// Connect runs pair-verify and the mandatory post-connect sequence. The
// peer rejects commands issued out of order, so the sequence is strict:
// _systemInfo, _touchStart, _sessionStart, _tiStart, then media events
// interest.
func (c *Client) Connect(creds *hap.Credentials) error {
	if err := c.PairVerify(creds); err != nil {
		return err
	}

	localID, err := uuid.Parse(string(creds.ClientID))
	if err != nil {
		return err
	}

	if _, err = c.SendCommand("_systemInfo", systemInfo(localID, c.Name), DefaultTimeout); err != nil {
		return err
	}

	// surface dimensions must stay float64 on the wire even though the
	// values are integral
	if _, err = c.SendCommand("_touchStart", touchStart(), DefaultTimeout); err != nil {
		return err
	}

	if _, err = c.SendCommand("_sessionStart", sessionStart(), DefaultTimeout); err != nil {
		return err
	}

	if _, err = c.SendCommand("_tiStart", nil, DefaultTimeout); err != nil {
		return err
	}

	return c.SubscribeEvent("_iMC")
}

func systemInfo(localID uuid.UUID, name string) opack.Dict {
	if name == "" {
		name = "go2atv"
	}
	return opack.Dict{
		{Key: "_idsID", Value: localID[:]},
		{Key: "model", Value: "go2atv"},
		{Key: "name", Value: name},
	}
}

func touchStart() opack.Dict {
	return opack.Dict{
		{Key: "_width", Value: 1000.0},
		{Key: "_height", Value: 1000.0},
		{Key: "_tFl", Value: 0},
	}
}

func sessionStart() opack.Dict {
	return opack.Dict{
		{Key: "_srvT", Value: serviceType},
		{Key: "_sid", Value: rand.Uint32()},
	}
}
