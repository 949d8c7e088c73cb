// Package airplay carries HAP pair-setup over the AirPlay HTTP service.
// The connection is a plain keep-alive HTTP/1.1 socket on the device's
// AirPlay port.
package airplay

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go2atv/go2atv/pkg/hap"
)

const (
	userAgent = "AirPlay/320.20"

	uriPairPinStart = "/pair-pin-start"
	uriPairSetup    = "/pair-setup"
)

type Client struct {
	Name string // controller name offered during pairing

	address string
	conn    net.Conn
	rd      *bufio.Reader
}

func NewClient(address string) *Client {
	return &Client{address: address}
}

func (c *Client) dial() (err error) {
	if c.conn != nil {
		return nil
	}
	if c.conn, err = net.DialTimeout("tcp", c.address, time.Second*5); err != nil {
		return err
	}
	c.rd = bufio.NewReader(c.conn)
	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close()
}

// PairSetup asks the device to show its PIN and starts the handshake.
// Finish the returned session with the PIN the user reads off the screen.
func (c *Client) PairSetup() (*hap.PairSetupSession, error) {
	if err := c.PairPinStart(); err != nil {
		return nil, err
	}

	session := hap.NewPairSetup(c, c.Name)
	if err := session.Start(); err != nil {
		return nil, err
	}
	return session, nil
}

// PairPinStart makes the device display its pairing PIN.
func (c *Client) PairPinStart() error {
	_, err := c.Post(uriPairPinStart, nil)
	return err
}

// Exchange implements hap.Carrier over POST /pair-setup.
func (c *Client) Exchange(payload []byte) ([]byte, error) {
	return c.Post(uriPairSetup, payload)
}

func (c *Client) Post(uri string, body []byte) ([]byte, error) {
	if err := c.dial(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", "http://"+c.address+uri, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Apple-HKP", "3")
	req.Header.Set("Connection", "keep-alive")
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	if err = req.Write(c.conn); err != nil {
		_ = c.Close()
		return nil, err
	}

	res, err := http.ReadResponse(c.rd, req)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("airplay: %s on %s", res.Status, uri)
	}

	return data, nil
}
