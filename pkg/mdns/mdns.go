// Package mdns - minimal multicast DNS browser for the services an
// Apple TV announces
package mdns

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns" // awesome library for parsing mDNS records
)

const (
	ServiceCompanion = "_companion-link._tcp.local."
	ServiceAirPlay   = "_airplay._tcp.local."
)

const requestTimeout = time.Millisecond * 505
const responseTimeout = time.Second * 3

type ServiceEntry struct {
	Name string
	IP   net.IP
	Port uint16
	Info map[string]string
}

func (e *ServiceEntry) Complete() bool {
	return e.IP != nil && e.Port > 0 && e.Info != nil
}

func (e *ServiceEntry) Addr() string {
	return fmt.Sprintf("%s:%d", e.IP, e.Port)
}

var multicastAddr = &net.UDPAddr{
	IP:   net.IP{224, 0, 0, 251},
	Port: 5353,
}

// Discovery browses for service and calls onentry with the first answer for
// service from every responding address; later answers from the same address
// are skipped. Returning true from onentry stops the browse early; otherwise
// it runs until the response timeout.
func Discovery(service string, onentry func(*ServiceEntry) bool) error {
	conn, err := net.ListenMulticastUDP("udp4", nil, multicastAddr)
	if err != nil {
		return err
	}

	defer conn.Close()

	if err = conn.SetDeadline(time.Now().Add(responseTimeout)); err != nil {
		return err
	}

	msg := &dns.Msg{
		Question: []dns.Question{
			{Name: service, Qtype: dns.TypePTR, Qclass: dns.ClassINET},
		},
	}

	b1, err := msg.Pack()
	if err != nil {
		return err
	}

	go func() {
		for {
			if _, err := conn.WriteToUDP(b1, multicastAddr); err != nil {
				return
			}
			time.Sleep(requestTimeout)
		}
	}()

	var skipIPs []net.IP

	b2 := make([]byte, 1500)
loop:
	for {
		n, addr, err := conn.ReadFromUDP(b2)
		if err != nil {
			break
		}

		for _, ip := range skipIPs {
			if ip.Equal(addr.IP) {
				continue loop
			}
		}

		if err = msg.Unpack(b2[:n]); err != nil {
			continue
		}

		if !EqualService(msg, service) {
			continue
		}

		if entry := NewServiceEntry(msg); onentry(entry) {
			break
		}

		skipIPs = append(skipIPs, addr.IP)
	}

	return nil
}

// Query asks one host directly for a service. Works even over VPN where
// multicast does not.
func Query(host, service string) (entry *ServiceEntry, err error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return
	}

	defer conn.Close()

	if err = conn.SetDeadline(time.Now().Add(responseTimeout)); err != nil {
		return
	}

	msg := &dns.Msg{
		Question: []dns.Question{
			{Name: service, Qtype: dns.TypePTR, Qclass: dns.ClassINET},
		},
	}

	b, err := msg.Pack()
	if err != nil {
		return
	}

	if _, err = conn.WriteTo(b, &net.UDPAddr{IP: net.ParseIP(host), Port: 5353}); err != nil {
		return
	}

	b = make([]byte, 1500)
	for {
		var n int
		if n, _, err = conn.ReadFrom(b); err != nil {
			return nil, err
		}

		if err = msg.Unpack(b[:n]); err != nil {
			continue
		}

		if !EqualService(msg, service) {
			continue
		}

		return NewServiceEntry(msg), nil
	}
}

func EqualService(msg *dns.Msg, service string) bool {
	for _, rr := range msg.Answer {
		if rr, ok := rr.(*dns.PTR); ok {
			return strings.HasSuffix(rr.Ptr, service)
		}
	}

	return false
}

func NewServiceEntry(msg *dns.Msg) *ServiceEntry {
	entry := &ServiceEntry{}

	records := make([]dns.RR, 0, len(msg.Answer)+len(msg.Ns)+len(msg.Extra))
	records = append(records, msg.Answer...)
	records = append(records, msg.Ns...)
	records = append(records, msg.Extra...)

	for _, record := range records {
		switch record := record.(type) {
		case *dns.PTR:
			if i := strings.IndexByte(record.Ptr, '.'); i > 0 {
				entry.Name = record.Ptr[:i]
			}
		case *dns.A:
			entry.IP = record.A
		case *dns.SRV:
			entry.Port = record.Port
		case *dns.TXT:
			entry.Info = make(map[string]string, len(record.Txt))
			for _, txt := range record.Txt {
				k, v, _ := strings.Cut(txt, "=")
				entry.Info[k] = v
			}
		}
	}

	return entry
}
