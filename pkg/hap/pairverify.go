package hap

import (
	"bytes"
	"errors"

	"github.com/go2atv/go2atv/pkg/hap/chacha20poly1305"
	"github.com/go2atv/go2atv/pkg/hap/curve25519"
	"github.com/go2atv/go2atv/pkg/hap/ed25519"
	"github.com/go2atv/go2atv/pkg/hap/hkdf"
	"github.com/go2atv/go2atv/pkg/tlv8"
)

// PairVerify authenticates both parties on a new session and derives the
// transport AEAD keys.
func PairVerify(carrier Carrier, creds *Credentials) (*SessionKeys, error) {
	verifyPublic, verifyPrivate := curve25519.GenerateKeyPair()

	// STEP M1
	reqM1 := struct {
		State     byte   `tlv8:"6"`
		PublicKey []byte `tlv8:"3"`
	}{
		State:     StateM1,
		PublicKey: verifyPublic,
	}
	buf, err := tlv8.Marshal(reqM1)
	if err != nil {
		return nil, err
	}

	resM2, err := exchange(carrier, buf, StateM2)
	if err != nil {
		return nil, err
	}
	sessionPublic := resM2.PublicKey
	if len(sessionPublic) != 32 {
		return nil, errors.New("hap: M2 without session public key")
	}

	// STEP M2
	shared, err := curve25519.SharedSecret(verifyPrivate, sessionPublic)
	if err != nil {
		return nil, err
	}

	verifyKey, err := hkdf.Sha512(
		shared,
		[]byte("Pair-Verify-Encrypt-Salt"),
		[]byte("Pair-Verify-Encrypt-Info"),
	)
	if err != nil {
		return nil, err
	}

	if buf, err = chacha20poly1305.DecryptAndVerify(
		verifyKey, []byte("PV-Msg02"), resM2.EncryptedData, nil,
	); err != nil {
		return nil, err
	}

	var msgM2 struct {
		Identifier []byte `tlv8:"1"`
		Signature  []byte `tlv8:"10"`
	}
	if err = tlv8.Unmarshal(buf, &msgM2); err != nil {
		return nil, err
	}

	if !bytes.Equal(msgM2.Identifier, creds.ATVID) {
		return nil, errors.New("hap: peer identifier mismatch")
	}

	var info []byte
	info = append(info, sessionPublic...)
	info = append(info, msgM2.Identifier...)
	info = append(info, verifyPublic...)

	if !ed25519.ValidateSignature(creds.LTPK, info, msgM2.Signature) {
		return nil, errors.New("hap: wrong peer signature")
	}

	// STEP M3
	info = nil
	info = append(info, verifyPublic...)
	info = append(info, creds.ClientID...)
	info = append(info, sessionPublic...)

	signature, err := ed25519.Signature(creds.LTSK, info)
	if err != nil {
		return nil, err
	}

	msgM3 := struct {
		Identifier []byte `tlv8:"1"`
		Signature  []byte `tlv8:"10"`
	}{
		Identifier: creds.ClientID,
		Signature:  signature,
	}
	if buf, err = tlv8.Marshal(msgM3); err != nil {
		return nil, err
	}

	encrypted, err := chacha20poly1305.EncryptAndSeal(verifyKey, []byte("PV-Msg03"), buf, nil)
	if err != nil {
		return nil, err
	}

	reqM3 := struct {
		State         byte   `tlv8:"6"`
		EncryptedData []byte `tlv8:"5"`
	}{
		State:         StateM3,
		EncryptedData: encrypted,
	}
	if buf, err = tlv8.Marshal(reqM3); err != nil {
		return nil, err
	}

	if _, err = exchange(carrier, buf, StateM4); err != nil {
		return nil, err
	}

	// STEP M4
	return DeriveSessionKeys(shared)
}

// DeriveSessionKeys expands the verify shared secret into the two
// transport keys.
func DeriveSessionKeys(shared []byte) (*SessionKeys, error) {
	output, err := hkdf.Sha512(shared, nil, []byte("ClientEncrypt-main"))
	if err != nil {
		return nil, err
	}

	input, err := hkdf.Sha512(shared, nil, []byte("ServerEncrypt-main"))
	if err != nil {
		return nil, err
	}

	return &SessionKeys{Output: output, Input: input}, nil
}
