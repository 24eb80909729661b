package network

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalIP(t *testing.T) {
	ip := LocalIP()
	if ip == FallbackHost {
		return
	}

	parsed := net.ParseIP(ip)
	if assert.NotNil(t, parsed, "expected valid IP address, got %q", ip) {
		assert.NotNil(t, parsed.To4(), "expected IPv4 address, got %q", ip)
		assert.False(t, parsed.IsLoopback())
	}
}

func TestFirstIPv4(t *testing.T) {
	ipnet := func(s string) *net.IPNet {
		ip, n, err := net.ParseCIDR(s)
		if err != nil {
			t.Fatal(err)
		}
		n.IP = ip
		return n
	}

	tests := []struct {
		name  string
		addrs []net.Addr
		want  string
	}{
		{"empty", nil, FallbackHost},
		{"loopback only", []net.Addr{ipnet("127.0.0.1/8"), ipnet("::1/128")}, FallbackHost},
		{"ipv6 only", []net.Addr{ipnet("fe80::1/64")}, FallbackHost},
		{"first non-loopback", []net.Addr{ipnet("127.0.0.1/8"), ipnet("192.168.1.20/24"), ipnet("10.0.0.5/8")}, "192.168.1.20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstIPv4(tt.addrs))
		})
	}
}

func TestShareURL(t *testing.T) {
	assert.Equal(t, "http://192.168.1.20:8080", ShareURL("192.168.1.20", 8080))
	assert.Equal(t, "http://localhost:3000", ShareURL(FallbackHost, 3000))
}

func TestPortOf(t *testing.T) {
	assert.Equal(t, 8080, PortOf(&net.TCPAddr{IP: net.IPv4zero, Port: 8080}))
	assert.Equal(t, 0, PortOf(nil))
}
