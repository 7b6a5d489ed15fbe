package util

import (
	"fmt"
	"net"
	"strings"
)

// ParseTrustedCIDRs turns configured CIDR strings into parsed networks.
// Blank entries are skipped; a malformed entry fails the whole list.
func ParseTrustedCIDRs(entries []string) ([]*net.IPNet, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	var networks []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", entry, err)
		}
		networks = append(networks, network)
	}

	return networks, nil
}

func isIPInTrustedCIDRs(ip net.IP, trusted []*net.IPNet) bool {
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// NormaliseBaseURL strips a single trailing slash so path joins don't
// double up. A bare "/" is left alone.
func NormaliseBaseURL(baseURL string) string {
	if n := len(baseURL); n > 1 && strings.HasSuffix(baseURL, "/") {
		return baseURL[:n-1]
	}
	return baseURL
}
