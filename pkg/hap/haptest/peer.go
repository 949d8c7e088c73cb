// Package haptest provides a conformant mock accessory for exercising the
// pair-setup and pair-verify machines without a real device.
package haptest

import (
	"crypto/rand"
	"errors"

	"github.com/go2atv/go2atv/pkg/hap"
	"github.com/go2atv/go2atv/pkg/hap/chacha20poly1305"
	"github.com/go2atv/go2atv/pkg/hap/curve25519"
	"github.com/go2atv/go2atv/pkg/hap/ed25519"
	"github.com/go2atv/go2atv/pkg/hap/hkdf"
	"github.com/go2atv/go2atv/pkg/srp"
	"github.com/go2atv/go2atv/pkg/tlv8"
)

var srpUsername = []byte("Pair-Setup")

type Peer struct {
	PIN string
	ID  string

	seed     []byte
	pairings map[string][]byte // clientID -> ltpk

	// pair-setup state
	session    *srp.Server
	sessionKey []byte

	// pair-verify state
	clientPublic  []byte
	sessionPublic []byte
	shared        []byte
}

func NewPeer(pin, id string) *Peer {
	seed := make([]byte, 32)
	_, _ = rand.Read(seed)

	return &Peer{
		PIN:      pin,
		ID:       id,
		seed:     seed,
		pairings: map[string][]byte{},
	}
}

// Seed exposes the accessory long-term seed so tests can pre-install
// pairings.
func (p *Peer) Seed() []byte {
	return p.seed
}

func (p *Peer) AddPairing(clientID, ltpk []byte) {
	p.pairings[string(clientID)] = ltpk
}

// SessionKeys returns the post-verify transport keys from the accessory's
// perspective: its output key is the controller's input key.
func (p *Peer) SessionKeys() (output, input []byte, err error) {
	if p.shared == nil {
		return nil, nil, errors.New("haptest: verify not finished")
	}
	keys, err := hap.DeriveSessionKeys(p.shared)
	if err != nil {
		return nil, nil, err
	}
	return keys.Input, keys.Output, nil
}

type payload struct {
	Method        byte   `tlv8:"0"`
	Identifier    []byte `tlv8:"1"`
	Salt          []byte `tlv8:"2"`
	PublicKey     []byte `tlv8:"3"`
	Proof         []byte `tlv8:"4"`
	EncryptedData []byte `tlv8:"5"`
	State         byte   `tlv8:"6"`
	Signature     []byte `tlv8:"10"`
	Name          []byte `tlv8:"17"`
}

func errorResponse(state, code byte) ([]byte, error) {
	return tlv8.Marshal(struct {
		State byte `tlv8:"6"`
		Error byte `tlv8:"7"`
	}{
		State: state,
		Error: code,
	})
}

func (p *Peer) HandleSetup(data []byte) ([]byte, error) {
	req := payload{}
	if err := tlv8.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	switch req.State {
	case hap.StateM1:
		salt := make([]byte, 16)
		_, _ = rand.Read(salt)
		secret := make([]byte, 32)
		_, _ = rand.Read(secret)

		verifier := srp.ComputeVerifier(srpUsername, []byte(p.PIN), salt)
		p.session = srp.NewServer(srpUsername, salt, verifier, secret)

		return tlv8.Marshal(struct {
			Salt      []byte `tlv8:"2"`
			PublicKey []byte `tlv8:"3"`
			State     byte   `tlv8:"6"`
		}{
			Salt:      salt,
			PublicKey: p.session.PublicKey(),
			State:     hap.StateM2,
		})

	case hap.StateM3:
		if err := p.session.SetClient(req.PublicKey); err != nil {
			return nil, err
		}
		if !p.session.VerifyClientProof(req.Proof) {
			return errorResponse(hap.StateM4, hap.ErrCodeAuthentication)
		}

		return tlv8.Marshal(struct {
			Proof []byte `tlv8:"4"`
			State byte   `tlv8:"6"`
		}{
			Proof: p.session.Proof(),
			State: hap.StateM4,
		})

	case hap.StateM5:
		shared := p.session.SessionKey()

		sessionKey, err := hkdf.Sha512(
			shared,
			[]byte("Pair-Setup-Encrypt-Salt"),
			[]byte("Pair-Setup-Encrypt-Info"),
		)
		if err != nil {
			return nil, err
		}
		p.sessionKey = sessionKey

		buf, err := chacha20poly1305.DecryptAndVerify(
			sessionKey, []byte("PS-Msg05"), req.EncryptedData, nil,
		)
		if err != nil {
			return nil, err
		}

		msgM5 := payload{}
		if err = tlv8.Unmarshal(buf, &msgM5); err != nil {
			return nil, err
		}

		deviceX, err := hkdf.Sha512(
			shared,
			[]byte("Pair-Setup-Controller-Sign-Salt"),
			[]byte("Pair-Setup-Controller-Sign-Info"),
		)
		if err != nil {
			return nil, err
		}

		var info []byte
		info = append(info, deviceX...)
		info = append(info, msgM5.Identifier...)
		info = append(info, msgM5.PublicKey...)
		if !ed25519.ValidateSignature(msgM5.PublicKey, info, msgM5.Signature) {
			return errorResponse(hap.StateM6, hap.ErrCodeAuthentication)
		}

		p.pairings[string(msgM5.Identifier)] = msgM5.PublicKey

		msgM6 := struct {
			Identifier []byte `tlv8:"1"`
			PublicKey  []byte `tlv8:"3"`
		}{
			Identifier: []byte(p.ID),
			PublicKey:  ed25519.PublicKey(p.seed),
		}
		if buf, err = tlv8.Marshal(msgM6); err != nil {
			return nil, err
		}

		encrypted, err := chacha20poly1305.EncryptAndSeal(
			sessionKey, []byte("PS-Msg06"), buf, nil,
		)
		if err != nil {
			return nil, err
		}

		return tlv8.Marshal(struct {
			EncryptedData []byte `tlv8:"5"`
			State         byte   `tlv8:"6"`
		}{
			EncryptedData: encrypted,
			State:         hap.StateM6,
		})
	}

	return nil, errors.New("haptest: wrong setup state")
}

func (p *Peer) HandleVerify(data []byte) ([]byte, error) {
	req := payload{}
	if err := tlv8.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	switch req.State {
	case hap.StateM1:
		p.clientPublic = req.PublicKey

		sessionPublic, sessionPrivate := curve25519.GenerateKeyPair()
		p.sessionPublic = sessionPublic

		shared, err := curve25519.SharedSecret(sessionPrivate, p.clientPublic)
		if err != nil {
			return nil, err
		}
		p.shared = shared

		var info []byte
		info = append(info, sessionPublic...)
		info = append(info, p.ID...)
		info = append(info, p.clientPublic...)

		signature, err := ed25519.Signature(p.seed, info)
		if err != nil {
			return nil, err
		}

		msgM2 := struct {
			Identifier []byte `tlv8:"1"`
			Signature  []byte `tlv8:"10"`
		}{
			Identifier: []byte(p.ID),
			Signature:  signature,
		}
		buf, err := tlv8.Marshal(msgM2)
		if err != nil {
			return nil, err
		}

		verifyKey, err := p.verifyKey()
		if err != nil {
			return nil, err
		}

		encrypted, err := chacha20poly1305.EncryptAndSeal(
			verifyKey, []byte("PV-Msg02"), buf, nil,
		)
		if err != nil {
			return nil, err
		}

		return tlv8.Marshal(struct {
			State         byte   `tlv8:"6"`
			PublicKey     []byte `tlv8:"3"`
			EncryptedData []byte `tlv8:"5"`
		}{
			State:         hap.StateM2,
			PublicKey:     sessionPublic,
			EncryptedData: encrypted,
		})

	case hap.StateM3:
		verifyKey, err := p.verifyKey()
		if err != nil {
			return nil, err
		}

		buf, err := chacha20poly1305.DecryptAndVerify(
			verifyKey, []byte("PV-Msg03"), req.EncryptedData, nil,
		)
		if err != nil {
			return nil, err
		}

		msgM3 := payload{}
		if err = tlv8.Unmarshal(buf, &msgM3); err != nil {
			return nil, err
		}

		ltpk := p.pairings[string(msgM3.Identifier)]
		if ltpk == nil {
			return errorResponse(hap.StateM4, hap.ErrCodeUnknownPeer)
		}

		var info []byte
		info = append(info, p.clientPublic...)
		info = append(info, msgM3.Identifier...)
		info = append(info, p.sessionPublic...)
		if !ed25519.ValidateSignature(ltpk, info, msgM3.Signature) {
			return errorResponse(hap.StateM4, hap.ErrCodeAuthentication)
		}

		return tlv8.Marshal(struct {
			State byte `tlv8:"6"`
		}{
			State: hap.StateM4,
		})
	}

	return nil, errors.New("haptest: wrong verify state")
}

func (p *Peer) verifyKey() ([]byte, error) {
	return hkdf.Sha512(
		p.shared,
		[]byte("Pair-Verify-Encrypt-Salt"),
		[]byte("Pair-Verify-Encrypt-Info"),
	)
}

// Exchanger adapts a handler func to the hap.Carrier interface.
type Exchanger func(payload []byte) ([]byte, error)

func (f Exchanger) Exchange(payload []byte) ([]byte, error) {
	return f(payload)
}
