package network

import (
	"fmt"
	"net"
	"strconv"
)

// FallbackHost is reported when the host has no usable IPv4 address.
const FallbackHost = "localhost"

// LocalIP returns the first non-loopback IPv4 address of the host.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return FallbackHost
	}
	return firstIPv4(addrs)
}

func firstIPv4(addrs []net.Addr) string {
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return FallbackHost
}

// ShareURL builds the address other devices should open.
func ShareURL(host string, port int) string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(port)))
}

// PortOf extracts the port from a listener address, or returns 0.
func PortOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	if addr == nil {
		return 0
	}
	_, p, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(p)
	return port
}
