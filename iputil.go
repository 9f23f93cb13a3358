package main

import (
	"fmt"
	"net"
)

// hostAddress returns configured when set, otherwise the first
// non-loopback IPv4 address of the host.
func hostAddress(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("no non-loopback IPv4 address found")
}
