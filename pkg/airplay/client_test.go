package airplay

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go2atv/go2atv/pkg/hap/haptest"
	"github.com/stretchr/testify/require"
)

func TestPairSetup(t *testing.T) {
	peer := haptest.NewPeer("1234", "AA:BB:CC:DD:EE:FF")

	var pinShown bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "AirPlay/320.20", r.Header.Get("User-Agent"))
		require.Equal(t, "3", r.Header.Get("X-Apple-HKP"))

		switch r.URL.Path {
		case "/pair-pin-start":
			pinShown = true

		case "/pair-setup":
			require.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

			body, err := io.ReadAll(r.Body)
			require.Nil(t, err)

			reply, err := peer.HandleSetup(body)
			require.Nil(t, err)
			_, _ = w.Write(reply)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(strings.TrimPrefix(srv.URL, "http://"))
	client.Name = "go2atv"
	defer client.Close()

	session, err := client.PairSetup()
	require.Nil(t, err)
	require.True(t, pinShown)

	creds, err := session.Finish("1234")
	require.Nil(t, err)
	require.Len(t, creds.LTPK, 32)
	require.Len(t, creds.LTSK, 32)
	require.Equal(t, []byte("AA:BB:CC:DD:EE:FF"), creds.ATVID)
}

func TestPairSetupWrongPIN(t *testing.T) {
	peer := haptest.NewPeer("1234", "AA:BB:CC:DD:EE:FF")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pair-setup" {
			return
		}
		body, err := io.ReadAll(r.Body)
		require.Nil(t, err)

		reply, err := peer.HandleSetup(body)
		require.Nil(t, err)
		_, _ = w.Write(reply)
	}))
	defer srv.Close()

	client := NewClient(strings.TrimPrefix(srv.URL, "http://"))
	defer client.Close()

	session, err := client.PairSetup()
	require.Nil(t, err)

	_, err = session.Finish("0000")
	require.NotNil(t, err)
}
