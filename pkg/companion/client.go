package companion

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/go2atv/go2atv/pkg/core"
	"github.com/go2atv/go2atv/pkg/hap"
	"github.com/go2atv/go2atv/pkg/opack"
	"github.com/rs/zerolog"
)

var ErrConnectionLost = errors.New("companion: connection lost")

// DefaultTimeout bounds every send-and-wait operation
const DefaultTimeout = time.Second * 5

// message types inside OPACK frames
const (
	msgEvent    = 1
	msgRequest  = 2
	msgResponse = 3
)

// TimeoutError - deadline expired awaiting a reply
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return "companion: timeout on " + e.Op
}

// Client owns one Companion connection: it is the sole frame listener and
// demultiplexes auth replies, command responses and events.
type Client struct {
	Name string // display name sent during pairing and _systemInfo

	conn *Conn
	log  zerolog.Logger

	mu          sync.Mutex
	xid         uint32
	pendingReq  map[uint32]chan result
	pendingAuth map[FrameType]chan result
	listeners   map[string][]func(value any)
	closed      bool

	waiter core.Waiter

	creds *hap.Credentials
	keys  *hap.SessionKeys
}

type result struct {
	msg opack.Dict
	err error
}

func DialClient(address, name string, log zerolog.Logger) (*Client, error) {
	conn, err := Dial(address)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, name, log), nil
}

// NewClient wraps an existing transport and starts the receive loop. The
// starting transaction id is sampled from [0, 2^16) to reduce collision
// risk across reconnects.
func NewClient(conn *Conn, name string, log zerolog.Logger) *Client {
	c := &Client{
		Name:        name,
		conn:        conn,
		log:         log,
		xid:         uint32(rand.Intn(1 << 16)),
		pendingReq:  map[uint32]chan result{},
		pendingAuth: map[FrameType]chan result{},
		listeners:   map[string][]func(value any){},
	}

	conn.Log = log
	conn.OnFrame = c.onFrame
	c.waiter.Add(1)

	go func() {
		c.close(conn.Handle())
	}()

	return c
}

// Wait blocks until the connection is gone and returns the close reason.
func (c *Client) Wait() error {
	return c.waiter.Wait()
}

func (c *Client) Close() error {
	err := c.conn.Close()
	c.close(nil)
	return err
}

func (c *Client) close(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true

	// every pending completion resolves exactly once
	for xid, ch := range c.pendingReq {
		delete(c.pendingReq, xid)
		ch <- result{err: ErrConnectionLost}
	}
	for t, ch := range c.pendingAuth {
		delete(c.pendingAuth, t)
		ch <- result{err: ErrConnectionLost}
	}
	c.listeners = map[string][]func(value any){}
	c.mu.Unlock()

	_ = c.conn.Close()
	c.waiter.Done(err)
}

func (c *Client) onFrame(t FrameType, payload []byte) {
	switch t {
	case FramePSStart, FramePSNext, FramePVStart, FramePVNext:
		msg, err := decodeDict(payload)
		if err != nil {
			c.log.Debug().Err(err).Stringer("type", t).Msg("[companion] bad auth frame")
			return
		}

		c.mu.Lock()
		ch := c.pendingAuth[t]
		delete(c.pendingAuth, t)
		c.mu.Unlock()

		if ch != nil {
			ch <- result{msg: msg}
		}

	case FrameUOpack, FrameEOpack, FramePOpack:
		msg, err := decodeDict(payload)
		if err != nil {
			c.log.Debug().Err(err).Stringer("type", t).Msg("[companion] bad message")
			return
		}
		c.onMessage(msg)

	case FrameNoOp:

	default:
		c.log.Debug().Stringer("type", t).Msg("[companion] unhandled frame")
	}
}

func (c *Client) onMessage(msg opack.Dict) {
	msgType, _ := msg.GetInt("_t")

	switch msgType {
	case msgResponse:
		xid, ok := msg.GetInt("_x")
		if !ok {
			return
		}

		c.mu.Lock()
		ch := c.pendingReq[uint32(xid)]
		delete(c.pendingReq, uint32(xid))
		c.mu.Unlock()

		if ch != nil {
			ch <- result{msg: msg}
		}

	case msgEvent:
		identifier, _ := msg.Get("_i").(string)

		c.mu.Lock()
		handlers := append([]func(value any){}, c.listeners[identifier]...)
		c.mu.Unlock()

		for _, h := range handlers {
			h(msg.Get("_c"))
		}

	case msgRequest:
		c.log.Debug().Str("id", fmt.Sprint(msg.Get("_i"))).Msg("[companion] peer request ignored")
	}
}

// ExchangeAuth sends one pairing frame and waits for the reply frame type
// that answers it.
func (c *Client) ExchangeAuth(t FrameType, msg opack.Dict, timeout time.Duration) (opack.Dict, error) {
	payload, err := opack.Marshal(msg)
	if err != nil {
		return nil, err
	}

	reply := replyType(t)
	ch := make(chan result, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectionLost
	}
	if _, busy := c.pendingAuth[reply]; busy {
		c.mu.Unlock()
		return nil, fmt.Errorf("companion: auth exchange already pending on %s", reply)
	}
	c.pendingAuth[reply] = ch
	c.mu.Unlock()

	if err = c.conn.WriteFrame(t, payload); err != nil {
		c.mu.Lock()
		delete(c.pendingAuth, reply)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case res := <-ch:
		return res.msg, res.err
	case <-time.After(timeout):
		c.mu.Lock()
		delete(c.pendingAuth, reply)
		c.mu.Unlock()
		return nil, &TimeoutError{Op: t.String()}
	}
}

// SendCommand sends a request on E_OPACK and waits for the response with
// the same transaction id.
func (c *Client) SendCommand(identifier string, content any, timeout time.Duration) (opack.Dict, error) {
	if content == nil {
		content = opack.Dict{}
	}

	ch := make(chan result, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectionLost
	}
	c.xid++
	xid := c.xid
	c.pendingReq[xid] = ch
	c.mu.Unlock()

	msg := opack.Dict{
		{Key: "_i", Value: identifier},
		{Key: "_t", Value: msgRequest},
		{Key: "_c", Value: content},
		{Key: "_x", Value: xid},
	}
	payload, err := opack.Marshal(msg)
	if err == nil {
		err = c.conn.WriteFrame(FrameEOpack, payload)
	}
	if err != nil {
		c.mu.Lock()
		delete(c.pendingReq, xid)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case res := <-ch:
		return res.msg, res.err
	case <-time.After(timeout):
		c.mu.Lock()
		delete(c.pendingReq, xid)
		c.mu.Unlock()
		return nil, &TimeoutError{Op: identifier}
	}
}

// SendEvent is fire-and-forget.
func (c *Client) SendEvent(identifier string, content any) error {
	if content == nil {
		content = opack.Dict{}
	}

	c.mu.Lock()
	c.xid++
	xid := c.xid
	c.mu.Unlock()

	msg := opack.Dict{
		{Key: "_i", Value: identifier},
		{Key: "_t", Value: msgEvent},
		{Key: "_c", Value: content},
		{Key: "_x", Value: xid},
	}
	payload, err := opack.Marshal(msg)
	if err != nil {
		return err
	}
	return c.conn.WriteFrame(FrameEOpack, payload)
}

// SubscribeEvent registers interest in a named event with the peer.
func (c *Client) SubscribeEvent(name string) error {
	return c.SendEvent("_interest", opack.Dict{
		{Key: "_regEvents", Value: []any{name}},
	})
}

// AddEventListener fans events with the given identifier out to handler.
// Listeners are dropped on connection loss.
func (c *Client) AddEventListener(identifier string, handler func(value any)) {
	c.mu.Lock()
	c.listeners[identifier] = append(c.listeners[identifier], handler)
	c.mu.Unlock()
}

// ClearEventListeners detaches every listener - a connection released to
// the cache must not deliver stale events.
func (c *Client) ClearEventListeners() {
	c.mu.Lock()
	c.listeners = map[string][]func(value any){}
	c.mu.Unlock()
}

func decodeDict(payload []byte) (opack.Dict, error) {
	v, err := opack.Unmarshal(payload)
	if err != nil {
		return nil, err
	}
	msg, ok := v.(opack.Dict)
	if !ok {
		return nil, fmt.Errorf("companion: message is %T, not a map", v)
	}
	return msg, nil
}
