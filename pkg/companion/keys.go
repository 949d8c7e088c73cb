package companion

import (
	"time"

	"github.com/go2atv/go2atv/pkg/opack"
)

// HIDCommand - remote button codes of the _hidC command
type HIDCommand int

const (
	KeyUp               HIDCommand = 1
	KeyDown             HIDCommand = 2
	KeyLeft             HIDCommand = 3
	KeyRight            HIDCommand = 4
	KeyMenu             HIDCommand = 5
	KeySelect           HIDCommand = 6
	KeyHome             HIDCommand = 7
	KeyVolumeUp         HIDCommand = 8
	KeyVolumeDown       HIDCommand = 9
	KeySiri             HIDCommand = 10
	KeyScreensaver      HIDCommand = 11
	KeySleep            HIDCommand = 12
	KeyWake             HIDCommand = 13
	KeyPlayPause        HIDCommand = 14
	KeyChannelIncrement HIDCommand = 15
	KeyChannelDecrement HIDCommand = 16
	KeyGuide            HIDCommand = 17
	KeyPageUp           HIDCommand = 18
	KeyPageDown         HIDCommand = 19
)

// MediaCommand - codes of the _mcc command
type MediaCommand int

const (
	MediaPlay          MediaCommand = 1
	MediaPause         MediaCommand = 2
	MediaNextTrack     MediaCommand = 3
	MediaPreviousTrack MediaCommand = 4
	MediaGetVolume     MediaCommand = 5
	MediaSetVolume     MediaCommand = 6
	MediaSkipBy        MediaCommand = 7
)

const longPressDelay = time.Millisecond * 1000

// button states of _hBtS
const (
	buttonDown = 1
	buttonUp   = 2
)

// SendKey presses and releases a remote button.
func (c *Client) SendKey(key HIDCommand) error {
	return c.sendKey(key, 0)
}

// SendKeyLong holds the button for a second before releasing.
func (c *Client) SendKeyLong(key HIDCommand) error {
	return c.sendKey(key, longPressDelay)
}

func (c *Client) sendKey(key HIDCommand, hold time.Duration) error {
	if _, err := c.SendCommand("_hidC", opack.Dict{
		{Key: "_hBtS", Value: buttonDown},
		{Key: "_hidC", Value: int(key)},
	}, DefaultTimeout); err != nil {
		return err
	}

	if hold > 0 {
		time.Sleep(hold)
	}

	_, err := c.SendCommand("_hidC", opack.Dict{
		{Key: "_hBtS", Value: buttonUp},
		{Key: "_hidC", Value: int(key)},
	}, DefaultTimeout)
	return err
}

// SendMediaCommand issues an _mcc media-control command, with optional
// extra arguments (volume, skip interval).
func (c *Client) SendMediaCommand(cmd MediaCommand, args opack.Dict) (opack.Dict, error) {
	content := opack.Dict{{Key: "_mcc", Value: int(cmd)}}
	content = append(content, args...)
	return c.SendCommand("_mcc", content, DefaultTimeout)
}
