package companion

import (
	"errors"
	"time"

	"github.com/go2atv/go2atv/pkg/companion/rti"
	"github.com/go2atv/go2atv/pkg/core"
	"github.com/go2atv/go2atv/pkg/opack"
)

var ErrNotFocused = errors.New("companion: no text field is focused")

// FocusState - whether a text field currently has keyboard focus
type FocusState int

const (
	FocusUnknown FocusState = iota
	FocusFocused
	FocusUnfocused
)

func (s FocusState) String() string {
	switch s {
	case FocusFocused:
		return "focused"
	case FocusUnfocused:
		return "unfocused"
	}
	return "unknown"
}

// the peer does not reliably push focus transitions, so focus is polled
const focusPollInterval = time.Millisecond * 1000

// textSession restarts the RTI session and fetches its current state.
// Returns nil without error when no text field is focused.
func (c *Client) textSession() (*rti.Session, error) {
	if _, err := c.SendCommand("_tiStop", nil, DefaultTimeout); err != nil {
		return nil, err
	}

	res, err := c.SendCommand("_tiStart", nil, DefaultTimeout)
	if err != nil {
		return nil, err
	}

	data := res.GetDict("_c").GetBytes("_tiD")
	if len(data) == 0 {
		return nil, nil
	}

	return rti.ParseSession(data)
}

// Text returns the current text of the focused field.
func (c *Client) Text() (string, error) {
	session, err := c.textSession()
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", ErrNotFocused
	}
	return session.Text, nil
}

// TextInput optionally clears the focused field, then types text into it.
// Returns the client-predicted resulting text.
func (c *Client) TextInput(text string, clearExisting bool) (string, error) {
	session, err := c.textSession()
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", ErrNotFocused
	}

	current := session.Text

	if clearExisting {
		payload, err := rti.ClearPayload(session.UUID)
		if err != nil {
			return "", err
		}
		if err = c.sendTextCommand(payload); err != nil {
			return "", err
		}
		current = ""
	}

	if text != "" {
		payload, err := rti.InputPayload(session.UUID, text)
		if err != nil {
			return "", err
		}
		if err = c.sendTextCommand(payload); err != nil {
			return "", err
		}
	}

	return current + text, nil
}

func (c *Client) sendTextCommand(payload []byte) error {
	return c.SendEvent("_tiC", opack.Dict{
		{Key: "_tiV", Value: 1},
		{Key: "_tiD", Value: payload},
	})
}

// WatchFocus polls the text-input session and reports focus transitions.
// Stop the returned worker to cancel.
func (c *Client) WatchFocus(onChange func(state FocusState)) *core.Worker {
	state := FocusUnknown

	return core.NewWorker(focusPollInterval, func() time.Duration {
		session, err := c.textSession()
		if err != nil {
			if errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrNotConnected) {
				return 0
			}
			return focusPollInterval
		}

		next := FocusUnfocused
		if session != nil {
			next = FocusFocused
		}

		if next != state {
			state = next
			onChange(state)
		}

		return focusPollInterval
	})
}
