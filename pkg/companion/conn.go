package companion

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/go2atv/go2atv/pkg/hap"
	"github.com/go2atv/go2atv/pkg/hap/chacha20poly1305"
	"github.com/rs/zerolog"
)

var (
	ErrNotConnected = errors.New("companion: not connected")
	ErrFrameTooBig  = errors.New("companion: frame too big")
)

const maxFrameSize = 1<<24 - 1

// Conn - the framed transport. Header is 4 bytes: type, then a 24-bit
// big-endian payload length. After pair-verify both directions are
// ChaCha20-Poly1305 encrypted with per-direction counter nonces and the
// header as AAD.
type Conn struct {
	Log zerolog.Logger

	// OnFrame receives every decrypted inbound frame. Must be set before
	// Handle starts.
	OnFrame func(t FrameType, payload []byte)

	conn net.Conn

	mu   sync.Mutex // serializes writers and guards keys/counters
	keys *hap.SessionKeys

	outCount uint64
	inCount  uint64
}

func Dial(address string) (*Conn, error) {
	conn, err := net.DialTimeout("tcp", address, time.Second*5)
	if err != nil {
		return nil, err
	}
	return NewConn(conn), nil
}

func NewConn(conn net.Conn) *Conn {
	return &Conn{Log: zerolog.Nop(), conn: conn}
}

// EnableEncryption installs the post-verify session keys. Counters restart
// from zero.
func (c *Conn) EnableEncryption(keys *hap.SessionKeys) {
	c.mu.Lock()
	c.keys = keys
	c.outCount = 0
	c.inCount = 0
	c.mu.Unlock()
}

func (c *Conn) WriteFrame(t FrameType, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	length := len(payload)
	if c.keys != nil && length > 0 {
		length += 16 // AEAD tag
	}
	if length > maxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooBig, length)
	}

	header := []byte{byte(t), byte(length >> 16), byte(length >> 8), byte(length)}

	if c.keys != nil && len(payload) > 0 {
		var err error
		if payload, err = chacha20poly1305.SealCounter(
			c.keys.Output, c.outCount, payload, header,
		); err != nil {
			return err
		}
		c.outCount++
	}

	_, err := c.conn.Write(append(header, payload...))
	return err
}

// Handle runs the receive loop until the connection fails or closes. Frames
// that fail to decrypt are dropped silently: the peer may emit frames sent
// before the receive keys were installed.
func (c *Conn) Handle() error {
	header := make([]byte, 4)

	for {
		conn := c.conn
		if conn == nil {
			return ErrNotConnected
		}

		if _, err := io.ReadFull(conn, header); err != nil {
			return err
		}

		length := int(header[1])<<16 | int(header[2])<<8 | int(header[3])
		payload := make([]byte, length)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return err
		}

		frameType := FrameType(header[0])

		c.mu.Lock()
		keys := c.keys
		count := c.inCount
		c.mu.Unlock()

		if keys != nil && length > 0 {
			plain, err := chacha20poly1305.OpenCounter(keys.Input, count, payload, header)
			if err != nil {
				c.Log.Debug().Err(err).Stringer("type", frameType).Msg("[companion] drop frame")
				continue
			}
			payload = plain

			c.mu.Lock()
			c.inCount++
			c.mu.Unlock()
		}

		if c.OnFrame != nil {
			c.OnFrame(frameType, payload)
		}
	}
}

func (c *Conn) Close() error {
	conn := c.conn
	if conn == nil {
		return nil
	}
	c.conn = nil
	return conn.Close()
}

func (c *Conn) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}
