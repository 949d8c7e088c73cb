package remote

import (
	"net/http"

	"github.com/go2atv/go2atv/internal/api"
	"github.com/go2atv/go2atv/pkg/mdns"
)

// DeviceRecord - one discovered Apple TV, merged from its Companion and
// AirPlay announcements
type DeviceRecord struct {
	Name          string            `json:"name"`
	Address       string            `json:"address"`
	CompanionPort uint16            `json:"companion_port,omitempty"`
	AirplayPort   uint16            `json:"airplay_port,omitempty"`
	Identifier    string            `json:"identifier,omitempty"`
	Model         string            `json:"model,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

func scanHandler(w http.ResponseWriter, r *http.Request) {
	records := map[string]*DeviceRecord{}

	add := func(entry *mdns.ServiceEntry, companion bool) {
		if !entry.Complete() {
			return
		}

		host := entry.IP.String()
		record := records[host]
		if record == nil {
			record = &DeviceRecord{
				Name:       entry.Name,
				Address:    host,
				Properties: entry.Info,
			}
			records[host] = record
		}

		if companion {
			record.CompanionPort = entry.Port
			if v := entry.Info["rpMd"]; v != "" {
				record.Model = v
			}
			if v := entry.Info["rpBA"]; v != "" {
				record.Identifier = v
			}
		} else {
			record.AirplayPort = entry.Port
			if record.Model == "" {
				record.Model = entry.Info["model"]
			}
			if record.Identifier == "" {
				record.Identifier = entry.Info["deviceid"]
			}
		}
	}

	err := mdns.Discovery(mdns.ServiceCompanion, func(entry *mdns.ServiceEntry) bool {
		add(entry, true)
		return false
	})
	if err != nil {
		api.Error(w, err)
		return
	}

	err = mdns.Discovery(mdns.ServiceAirPlay, func(entry *mdns.ServiceEntry) bool {
		add(entry, false)
		return false
	})
	if err != nil {
		api.Error(w, err)
		return
	}

	out := make([]*DeviceRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record)
	}

	api.ResponseJSON(w, out)
}
