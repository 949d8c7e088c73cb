package remote

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go2atv/go2atv/internal/api"
	"github.com/go2atv/go2atv/pkg/airplay"
	"github.com/go2atv/go2atv/pkg/companion"
	"github.com/go2atv/go2atv/pkg/opack"
)

var keys = map[string]companion.HIDCommand{
	"up":           companion.KeyUp,
	"down":         companion.KeyDown,
	"left":         companion.KeyLeft,
	"right":        companion.KeyRight,
	"menu":         companion.KeyMenu,
	"select":       companion.KeySelect,
	"home":         companion.KeyHome,
	"volume_up":    companion.KeyVolumeUp,
	"volume_down":  companion.KeyVolumeDown,
	"siri":         companion.KeySiri,
	"screensaver":  companion.KeyScreensaver,
	"sleep":        companion.KeySleep,
	"wake":         companion.KeyWake,
	"play_pause":   companion.KeyPlayPause,
	"channel_up":   companion.KeyChannelIncrement,
	"channel_down": companion.KeyChannelDecrement,
	"guide":        companion.KeyGuide,
	"page_up":      companion.KeyPageUp,
	"page_down":    companion.KeyPageDown,
}

var mediaCommands = map[string]companion.MediaCommand{
	"play":           companion.MediaPlay,
	"pause":          companion.MediaPause,
	"next_track":     companion.MediaNextTrack,
	"previous_track": companion.MediaPreviousTrack,
	"get_volume":     companion.MediaGetVolume,
	"set_volume":     companion.MediaSetVolume,
	"skip_by":        companion.MediaSkipBy,
}

// pairHandler drives two-phase pairing:
//
//	POST /api/pair?device=tv            - device shows its PIN
//	POST /api/pair?device=tv&pin=1234   - finish, returns credentials
//
// transport=airplay pairs over the AirPlay port instead of Companion.
func pairHandler(w http.ResponseWriter, r *http.Request) {
	device, err := getDevice(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	query := r.URL.Query()

	device.mu.Lock()
	defer device.mu.Unlock()

	if pin := query.Get("pin"); pin != "" {
		pairing := device.pairing
		if pairing == nil {
			api.Error(w, errors.New("remote: pairing not started"))
			return
		}
		device.pairing = nil

		creds, err := pairing.setup.Finish(pin)

		if pairing.http != nil {
			_ = pairing.http.Close()
		}
		if pairing.client != nil {
			companion.ReleaseClient(pairing.address, pairing.client)
		}

		if err != nil {
			api.Error(w, err)
			return
		}

		device.Credentials = creds.String()
		log.Info().Str("host", device.Host).Msg("[remote] paired")

		// the credential string goes into the config by hand
		api.ResponseJSON(w, map[string]string{"credentials": creds.String()})
		return
	}

	pairing := &pairingSession{}

	if query.Get("transport") == "airplay" {
		client := airplay.NewClient(device.airplayAddress())
		client.Name = name

		if pairing.setup, err = client.PairSetup(); err != nil {
			_ = client.Close()
			api.Error(w, err)
			return
		}
		pairing.http = client
	} else {
		address := device.companionAddress()

		client, err := companion.AcquireClient(address, name, log)
		if err != nil {
			api.Error(w, err)
			return
		}

		if pairing.setup, err = client.PairSetup(); err != nil {
			companion.ReleaseClient(address, client)
			api.Error(w, err)
			return
		}
		pairing.address = address
		pairing.client = client
	}

	device.pairing = pairing

	api.ResponseJSON(w, map[string]string{"state": "enter the PIN shown on the TV"})
}

func disconnectHandler(w http.ResponseWriter, r *http.Request) {
	device, err := getDevice(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	device.disconnect()
	api.ResponseJSON(w, map[string]bool{"disconnected": true})
}

func keyHandler(w http.ResponseWriter, r *http.Request) {
	device, err := getDevice(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	query := r.URL.Query()

	key, ok := keys[query.Get("key")]
	if !ok {
		api.Error(w, errors.New("remote: unknown key "+query.Get("key")))
		return
	}

	client, err := device.connect()
	if err != nil {
		api.Error(w, err)
		return
	}

	if query.Get("long") != "" {
		err = client.SendKeyLong(key)
	} else {
		err = client.SendKey(key)
	}
	if err != nil {
		api.Error(w, err)
		return
	}

	api.ResponseJSON(w, map[string]string{"key": query.Get("key")})
}

func mediaHandler(w http.ResponseWriter, r *http.Request) {
	device, err := getDevice(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	query := r.URL.Query()

	cmd, ok := mediaCommands[query.Get("cmd")]
	if !ok {
		api.Error(w, errors.New("remote: unknown media command "+query.Get("cmd")))
		return
	}

	var args opack.Dict
	if s := query.Get("volume"); s != "" {
		volume, err := strconv.ParseFloat(s, 64)
		if err != nil {
			api.Error(w, err)
			return
		}
		args.Set("_vol", volume)
	}

	client, err := device.connect()
	if err != nil {
		api.Error(w, err)
		return
	}

	res, err := client.SendMediaCommand(cmd, args)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.ResponseJSON(w, map[string]any{"content": res.Get("_c") != nil})
}

func textHandler(w http.ResponseWriter, r *http.Request) {
	device, err := getDevice(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	client, err := device.connect()
	if err != nil {
		api.Error(w, err)
		return
	}

	switch r.Method {
	case "GET":
		text, err := client.Text()
		if err != nil {
			api.Error(w, err)
			return
		}
		api.ResponseJSON(w, map[string]string{"text": text})

	case "POST":
		query := r.URL.Query()

		text, err := client.TextInput(query.Get("text"), query.Get("clear") != "")
		if err != nil {
			api.Error(w, err)
			return
		}
		api.ResponseJSON(w, map[string]string{"text": text})

	default:
		http.Error(w, "", http.StatusMethodNotAllowed)
	}
}
