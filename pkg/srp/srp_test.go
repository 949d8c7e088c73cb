package srp

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshake(t *testing.T) {
	username := []byte("Pair-Setup")
	password := []byte("1234")

	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.Nil(t, err)

	clientSecret := make([]byte, 32)
	_, err = rand.Read(clientSecret)
	require.Nil(t, err)

	serverSecret := make([]byte, 32)
	_, err = rand.Read(serverSecret)
	require.Nil(t, err)

	verifier := ComputeVerifier(username, password, salt)
	server := NewServer(username, salt, verifier, serverSecret)
	client := NewClient(username, password, clientSecret)

	err = client.SetServer(salt, server.PublicKey())
	require.Nil(t, err)

	err = server.SetClient(client.PublicKey())
	require.Nil(t, err)

	require.Equal(t, server.SessionKey(), client.SessionKey())
	require.True(t, server.VerifyClientProof(client.Proof()))
	require.True(t, client.VerifyServerProof(server.Proof()))
}

func TestWrongPassword(t *testing.T) {
	username := []byte("Pair-Setup")

	salt := make([]byte, 16)
	secret := make([]byte, 32)
	_, _ = rand.Read(salt)
	_, _ = rand.Read(secret)

	verifier := ComputeVerifier(username, []byte("1234"), salt)
	server := NewServer(username, salt, verifier, secret)
	client := NewClient(username, []byte("4321"), secret)

	require.Nil(t, client.SetServer(salt, server.PublicKey()))
	require.Nil(t, server.SetClient(client.PublicKey()))

	require.False(t, server.VerifyClientProof(client.Proof()))
}

func TestDeterministicExponent(t *testing.T) {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)

	c1 := NewClient([]byte("Pair-Setup"), []byte("1111"), secret)
	c2 := NewClient([]byte("Pair-Setup"), []byte("1111"), secret)
	require.Equal(t, c1.PublicKey(), c2.PublicKey())
}

func TestRejectZeroPublicKey(t *testing.T) {
	client := NewClient([]byte("u"), []byte("p"), []byte{1})
	err := client.SetServer(make([]byte, 16), groupN.Bytes())
	require.ErrorIs(t, err, ErrBadPublicKey)
}
