package hap_test

import (
	"testing"

	"github.com/go2atv/go2atv/pkg/hap"
	"github.com/go2atv/go2atv/pkg/hap/haptest"
	"github.com/stretchr/testify/require"
)

func TestPairSetupVerify(t *testing.T) {
	peer := haptest.NewPeer("1234", "AA:BB:CC:DD:EE:FF")

	creds, err := hap.PairSetup(haptest.Exchanger(peer.HandleSetup), "1234", "go2atv")
	require.Nil(t, err)
	require.Len(t, creds.LTPK, 32)
	require.Len(t, creds.LTSK, 32)
	require.Equal(t, []byte("AA:BB:CC:DD:EE:FF"), creds.ATVID)
	require.Len(t, creds.ClientID, 36)

	keys, err := hap.PairVerify(haptest.Exchanger(peer.HandleVerify), creds)
	require.Nil(t, err)

	peerOut, peerIn, err := peer.SessionKeys()
	require.Nil(t, err)
	require.Equal(t, keys.Output, peerIn)
	require.Equal(t, keys.Input, peerOut)
}

func TestPairVerifyStoredCredentials(t *testing.T) {
	peer := haptest.NewPeer("1234", "AA:BB:CC:DD:EE:FF")

	creds, err := hap.PairSetup(haptest.Exchanger(peer.HandleSetup), "1234", "")
	require.Nil(t, err)

	// a fresh verify from the serialized form produces matching keys again
	restored, err := hap.ParseCredentials(creds.String())
	require.Nil(t, err)

	keys, err := hap.PairVerify(haptest.Exchanger(peer.HandleVerify), restored)
	require.Nil(t, err)

	peerOut, peerIn, err := peer.SessionKeys()
	require.Nil(t, err)
	require.Equal(t, keys.Output, peerIn)
	require.Equal(t, keys.Input, peerOut)
}

func TestPairSetupWrongPIN(t *testing.T) {
	peer := haptest.NewPeer("1234", "AA:BB:CC:DD:EE:FF")

	_, err := hap.PairSetup(haptest.Exchanger(peer.HandleSetup), "4321", "")
	require.NotNil(t, err)

	var perr *hap.PairingError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, byte(hap.ErrCodeAuthentication), perr.Code)
}

func TestPairVerifyUnknownPeer(t *testing.T) {
	peer := haptest.NewPeer("1234", "AA:BB:CC:DD:EE:FF")

	other := haptest.NewPeer("1234", "AA:BB:CC:DD:EE:FF")
	creds, err := hap.PairSetup(haptest.Exchanger(other.HandleSetup), "1234", "")
	require.Nil(t, err)

	// same identifier but the pairing is not installed on this peer
	_, err = hap.PairVerify(haptest.Exchanger(peer.HandleVerify), creds)
	require.NotNil(t, err)
}

func TestCredentials(t *testing.T) {
	src := &hap.Credentials{
		LTPK:     []byte{1, 2, 3},
		LTSK:     []byte{4, 5, 6},
		ATVID:    []byte("atv"),
		ClientID: []byte("client"),
	}

	dst, err := hap.ParseCredentials(src.String())
	require.Nil(t, err)
	require.Equal(t, src, dst)

	_, err = hap.ParseCredentials("00:11:22")
	require.ErrorIs(t, err, hap.ErrCredentialsFormat)

	_, err = hap.ParseCredentials("zz:11:22:33")
	require.ErrorIs(t, err, hap.ErrCredentialsFormat)
}
