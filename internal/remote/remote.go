package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/go2atv/go2atv/internal/api"
	"github.com/go2atv/go2atv/internal/app"
	"github.com/go2atv/go2atv/pkg/airplay"
	"github.com/go2atv/go2atv/pkg/companion"
	"github.com/go2atv/go2atv/pkg/hap"
)

func Init() {
	var cfg struct {
		Mod struct {
			Name    string                   `yaml:"name"`
			Devices map[string]*DeviceConfig `yaml:"devices"`
		} `yaml:"remote"`
	}

	cfg.Mod.Name = "go2atv"

	app.LoadConfig(&cfg)

	log = app.GetLogger("remote")
	name = cfg.Mod.Name

	for id, conf := range cfg.Mod.Devices {
		devices[id] = &Device{DeviceConfig: *conf}
		log.Debug().Str("id", id).Str("host", conf.Host).Msg("[remote] device")
	}

	api.HandleFunc("api/scan", scanHandler)
	api.HandleFunc("api/devices", devicesHandler)
	api.HandleFunc("api/pair", pairHandler)
	api.HandleFunc("api/key", keyHandler)
	api.HandleFunc("api/disconnect", disconnectHandler)
	api.HandleFunc("api/media", mediaHandler)
	api.HandleFunc("api/text", textHandler)
}

var log zerolog.Logger
var name string

type DeviceConfig struct {
	Host          string `yaml:"host" json:"host"`
	CompanionPort uint16 `yaml:"companion_port" json:"companion_port"`
	AirplayPort   uint16 `yaml:"airplay_port" json:"airplay_port"`
	Identifier    string `yaml:"identifier" json:"identifier"`
	Credentials   string `yaml:"credentials" json:"-"`
}

type Device struct {
	DeviceConfig

	mu      sync.Mutex
	client  *companion.Client
	pairing *pairingSession
}

// pairingSession holds the started handshake between the start call (PIN
// appears on the TV) and the finish call (user typed the PIN)
type pairingSession struct {
	setup   *hap.PairSetupSession
	address string           // companion cache key, empty for airplay
	http    *airplay.Client  // airplay carrier, nil for companion
	client  *companion.Client
}

var (
	devicesMu sync.Mutex
	devices   = map[string]*Device{}
)

func getDevice(r *http.Request) (*Device, error) {
	id := r.URL.Query().Get("device")

	devicesMu.Lock()
	defer devicesMu.Unlock()

	device := devices[id]
	if device == nil {
		return nil, fmt.Errorf("remote: unknown device %q", id)
	}
	return device, nil
}

func (d *Device) companionAddress() string {
	port := d.CompanionPort
	if port == 0 {
		port = 49153
	}
	return d.Host + ":" + strconv.Itoa(int(port))
}

func (d *Device) airplayAddress() string {
	port := d.AirplayPort
	if port == 0 {
		port = 7000
	}
	return d.Host + ":" + strconv.Itoa(int(port))
}

// connect returns an authenticated session, dialing on first use
func (d *Device) connect() (*companion.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		return d.client, nil
	}

	if d.Credentials == "" {
		return nil, errors.New("remote: device is not paired")
	}

	creds, err := hap.ParseCredentials(d.Credentials)
	if err != nil {
		return nil, err
	}

	client, err := companion.DialClient(d.companionAddress(), name, log)
	if err != nil {
		return nil, err
	}

	if err = client.Connect(creds); err != nil {
		_ = client.Close()
		return nil, err
	}

	d.client = client

	go func() {
		err := client.Wait()
		log.Debug().Err(err).Str("host", d.Host).Msg("[remote] disconnected")

		d.mu.Lock()
		if d.client == client {
			d.client = nil
		}
		d.mu.Unlock()
	}()

	return client, nil
}

func (d *Device) disconnect() {
	d.mu.Lock()
	client := d.client
	d.client = nil
	d.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
}

func devicesHandler(w http.ResponseWriter, r *http.Request) {
	devicesMu.Lock()
	out := map[string]any{}
	for id, device := range devices {
		out[id] = map[string]any{
			"host":   device.Host,
			"paired": device.Credentials != "",
		}
	}
	devicesMu.Unlock()

	api.ResponseJSON(w, out)
}
