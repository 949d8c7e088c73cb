package mdns

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func TestNewServiceEntry(t *testing.T) {
	msg := &dns.Msg{
		Answer: []dns.RR{
			&dns.PTR{
				Hdr: dns.RR_Header{Name: ServiceCompanion, Rrtype: dns.TypePTR},
				Ptr: "Living Room." + ServiceCompanion,
			},
		},
		Extra: []dns.RR{
			&dns.SRV{
				Hdr:  dns.RR_Header{Rrtype: dns.TypeSRV},
				Port: 49153,
			},
			&dns.A{
				Hdr: dns.RR_Header{Rrtype: dns.TypeA},
				A:   net.IP{192, 168, 1, 10},
			},
			&dns.TXT{
				Hdr: dns.RR_Header{Rrtype: dns.TypeTXT},
				Txt: []string{"rpMd=AppleTV6,2", "rpBA=AA:BB:CC:DD:EE:FF"},
			},
		},
	}

	require.True(t, EqualService(msg, ServiceCompanion))
	require.False(t, EqualService(msg, ServiceAirPlay))

	entry := NewServiceEntry(msg)
	require.True(t, entry.Complete())
	require.Equal(t, "Living Room", entry.Name)
	require.Equal(t, "192.168.1.10:49153", entry.Addr())
	require.Equal(t, "AppleTV6,2", entry.Info["rpMd"])
}
