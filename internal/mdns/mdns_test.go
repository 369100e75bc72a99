package mdns

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestFromEntry(t *testing.T) {
	entry := zeroconf.NewServiceEntry("raspberrypi", ServiceType, Domain)
	entry.Port = 5000
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
	entry.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	entry.Text = []string{"version=1", "name=Living Room", "path=homectl/", "junk"}

	s := fromEntry(entry)
	if s.Host != "192.168.1.20" {
		t.Errorf("Host = %q, want IPv4 address", s.Host)
	}
	if s.Name != "Living Room" {
		t.Errorf("Name = %q, want %q", s.Name, "Living Room")
	}
	if s.Version != "1" {
		t.Errorf("Version = %q, want %q", s.Version, "1")
	}
	if got := s.URL(); got != "http://192.168.1.20:5000/homectl" {
		t.Errorf("URL() = %q", got)
	}
}

func TestFromEntry_IPv6Fallback(t *testing.T) {
	entry := zeroconf.NewServiceEntry("pi", ServiceType, Domain)
	entry.Port = 80
	entry.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}

	s := fromEntry(entry)
	if s.Name != "pi" {
		t.Errorf("Name = %q, want instance name", s.Name)
	}
	if got := s.URL(); got != "http://[fe80::1]:80" {
		t.Errorf("URL() = %q", got)
	}
}

func TestFromEntry_HostNameFallback(t *testing.T) {
	entry := zeroconf.NewServiceEntry("pi", ServiceType, Domain)
	entry.HostName = "pi.local."
	entry.Port = 5000

	if got := fromEntry(entry).URL(); got != "http://pi.local:5000" {
		t.Errorf("URL() = %q", got)
	}
}
