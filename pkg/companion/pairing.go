package companion

import (
	"errors"

	"github.com/go2atv/go2atv/pkg/hap"
	"github.com/go2atv/go2atv/pkg/opack"
)

// authCarrier adapts the auth-frame sub-protocol to hap.Carrier: the first
// TLV goes out on the *_Start type, every later one on *_Next, and the
// TLV rides inside an OPACK map under "_pd".
type authCarrier struct {
	client *Client
	next   FrameType

	frameType FrameType
	setup     bool
}

func (a *authCarrier) Exchange(payload []byte) ([]byte, error) {
	msg := opack.Dict{{Key: "_pd", Value: payload}}
	if a.setup {
		msg.Set("_pwTy", 1)
	}

	reply, err := a.client.ExchangeAuth(a.frameType, msg, DefaultTimeout)
	if err != nil {
		return nil, err
	}
	a.frameType = a.next

	pd := reply.GetBytes("_pd")
	if pd == nil {
		return nil, errors.New("companion: auth reply without _pd")
	}
	return pd, nil
}

// PairSetup starts the SRP handshake so the device shows its PIN; the
// returned session is finished with PairSetupSession.Finish(pin).
func (c *Client) PairSetup() (*hap.PairSetupSession, error) {
	carrier := &authCarrier{
		client:    c,
		frameType: FramePSStart,
		next:      FramePSNext,
		setup:     true,
	}

	session := hap.NewPairSetup(carrier, c.Name)
	if err := session.Start(); err != nil {
		return nil, err
	}
	return session, nil
}

// PairVerify authenticates with stored credentials and switches the
// transport to encrypted frames.
func (c *Client) PairVerify(creds *hap.Credentials) error {
	carrier := &authCarrier{
		client:    c,
		frameType: FramePVStart,
		next:      FramePVNext,
	}

	keys, err := hap.PairVerify(carrier, creds)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.creds = creds
	c.keys = keys
	c.mu.Unlock()

	c.conn.EnableEncryption(keys)
	return nil
}
