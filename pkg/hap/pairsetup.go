package hap

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/go2atv/go2atv/pkg/hap/chacha20poly1305"
	"github.com/go2atv/go2atv/pkg/hap/ed25519"
	"github.com/go2atv/go2atv/pkg/hap/hkdf"
	"github.com/go2atv/go2atv/pkg/opack"
	"github.com/go2atv/go2atv/pkg/srp"
	"github.com/go2atv/go2atv/pkg/tlv8"
)

// srpUsername is fixed by the protocol; the password is the PIN in its
// decimal ASCII form.
var srpUsername = []byte("Pair-Setup")

// PairSetupSession - the SRP handshake plus the encrypted identity
// exchange, split in two so a caller can prompt for the on-screen PIN
// between Start and Finish.
type PairSetupSession struct {
	carrier Carrier
	name    string

	seed     []byte
	clientID []byte

	salt         []byte
	serverPublic []byte
}

func NewPairSetup(carrier Carrier, name string) *PairSetupSession {
	return &PairSetupSession{carrier: carrier, name: name}
}

// PairSetup runs the whole handshake when the PIN is already known.
func PairSetup(carrier Carrier, pin, name string) (*Credentials, error) {
	session := NewPairSetup(carrier, name)
	if err := session.Start(); err != nil {
		return nil, err
	}
	return session.Finish(pin)
}

// Start sends M1 and consumes M2 (salt and server public key). The device
// shows its PIN once M1 arrives.
func (p *PairSetupSession) Start() error {
	p.seed = make([]byte, 32)
	if _, err := rand.Read(p.seed); err != nil {
		return err
	}

	p.clientID = []byte(GenerateClientID())

	reqM1 := struct {
		Method byte `tlv8:"0"`
		State  byte `tlv8:"6"`
	}{
		Method: MethodPair,
		State:  StateM1,
	}
	buf, err := tlv8.Marshal(reqM1)
	if err != nil {
		return err
	}

	resM2, err := exchange(p.carrier, buf, StateM2)
	if err != nil {
		return err
	}
	if resM2.Salt == nil || resM2.PublicKey == nil {
		return errors.New("hap: M2 without salt or public key")
	}

	p.salt = resM2.Salt
	p.serverPublic = resM2.PublicKey
	return nil
}

// Finish runs M3..M6 with the user-provided PIN. The fresh Ed25519 seed
// doubles as the SRP private exponent - the peer expects exactly that reuse.
func (p *PairSetupSession) Finish(pin string) (*Credentials, error) {
	if p.serverPublic == nil {
		return nil, errors.New("hap: pair-setup not started")
	}

	// STEP M3
	session := srp.NewClient(srpUsername, []byte(pin), p.seed)
	if err := session.SetServer(p.salt, p.serverPublic); err != nil {
		return nil, err
	}

	reqM3 := struct {
		PublicKey []byte `tlv8:"3"`
		Proof     []byte `tlv8:"4"`
		State     byte   `tlv8:"6"`
	}{
		PublicKey: session.PublicKey(),
		Proof:     session.Proof(),
		State:     StateM3,
	}
	buf, err := tlv8.Marshal(reqM3)
	if err != nil {
		return nil, err
	}

	resM4, err := exchange(p.carrier, buf, StateM4)
	if err != nil {
		return nil, err
	}
	if !session.VerifyServerProof(resM4.Proof) {
		return nil, errors.New("hap: wrong server proof")
	}

	// STEP M5
	sessionShared := session.SessionKey()

	sessionKey, err := hkdf.Sha512(
		sessionShared,
		[]byte("Pair-Setup-Encrypt-Salt"),
		[]byte("Pair-Setup-Encrypt-Info"),
	)
	if err != nil {
		return nil, err
	}

	deviceX, err := hkdf.Sha512(
		sessionShared,
		[]byte("Pair-Setup-Controller-Sign-Salt"),
		[]byte("Pair-Setup-Controller-Sign-Info"),
	)
	if err != nil {
		return nil, err
	}

	authPublic := ed25519.PublicKey(p.seed)

	var info []byte
	info = append(info, deviceX...)
	info = append(info, p.clientID...)
	info = append(info, authPublic...)

	signature, err := ed25519.Signature(p.seed, info)
	if err != nil {
		return nil, err
	}

	msgM5 := struct {
		Identifier []byte `tlv8:"1"`
		PublicKey  []byte `tlv8:"3"`
		Signature  []byte `tlv8:"10"`
		Name       []byte `tlv8:"17"`
	}{
		Identifier: p.clientID,
		PublicKey:  authPublic,
		Signature:  signature,
	}
	if p.name != "" {
		if msgM5.Name, err = opack.Marshal(opack.Dict{{Key: "name", Value: p.name}}); err != nil {
			return nil, err
		}
	}
	if buf, err = tlv8.Marshal(msgM5); err != nil {
		return nil, err
	}

	encrypted, err := chacha20poly1305.EncryptAndSeal(sessionKey, []byte("PS-Msg05"), buf, nil)
	if err != nil {
		return nil, err
	}

	reqM5 := struct {
		EncryptedData []byte `tlv8:"5"`
		State         byte   `tlv8:"6"`
	}{
		EncryptedData: encrypted,
		State:         StateM5,
	}
	if buf, err = tlv8.Marshal(reqM5); err != nil {
		return nil, err
	}

	resM6, err := exchange(p.carrier, buf, StateM6)
	if err != nil {
		return nil, err
	}

	// STEP M6
	if buf, err = chacha20poly1305.DecryptAndVerify(
		sessionKey, []byte("PS-Msg06"), resM6.EncryptedData, nil,
	); err != nil {
		return nil, err
	}

	var msgM6 struct {
		Identifier []byte `tlv8:"1"`
		PublicKey  []byte `tlv8:"3"`
		Signature  []byte `tlv8:"10"`
	}
	if err = tlv8.Unmarshal(buf, &msgM6); err != nil {
		return nil, err
	}
	if msgM6.Identifier == nil || len(msgM6.PublicKey) != 32 {
		return nil, errors.New("hap: M6 without identifier or public key")
	}

	return &Credentials{
		LTPK:     msgM6.PublicKey,
		LTSK:     p.seed,
		ATVID:    msgM6.Identifier,
		ClientID: p.clientID,
	}, nil
}

func exchange(carrier Carrier, req []byte, state byte) (*payload, error) {
	data, err := carrier.Exchange(req)
	if err != nil {
		return nil, err
	}

	res := &payload{}
	if err = tlv8.Unmarshal(data, res); err != nil {
		return nil, err
	}

	if res.Error > 0 {
		return nil, &PairingError{Code: res.Error}
	}
	if res.State != state {
		return nil, fmt.Errorf("hap: wrong state %d, waiting %d", res.State, state)
	}

	return res, nil
}
