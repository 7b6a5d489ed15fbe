package util

import (
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
)

func GenerateRequestID() string {
	actions := []string{
		"simmering", "stirring", "skimming", "seasoning", "serving",
		"steeping", "reducing", "whisking", "folding", "basting",
		"straining", "garnishing", "deglazing", "blanching", "braising",
	}
	vessels := []string{
		"stockpot", "dutchoven", "cauldron", "tureen", "ramekin",
		"skillet", "saucepan", "crockpot", "kettle", "casserole",
		"tagine", "wok", "griddle", "terrine", "marmite",
	}

	vessel := vessels[rand.Intn(len(vessels))]
	action := actions[rand.Intn(len(actions))]
	suffix := fmt.Sprintf("%04x", rand.Intn(65536))

	return fmt.Sprintf("%s_%s_%s", vessel, action, suffix)
}

func GetClientIP(r *http.Request, trustProxyHeaders bool, trustedCIDRs []*net.IPNet) string {
	if !trustProxyHeaders {
		return remoteIP(r)
	}

	// Forwarding headers are spoofable; honour them only when the peer
	// itself sits inside a trusted proxy range.
	source := getSourceIP(r)
	if source == nil || !isIPInTrustedCIDRs(source, trustedCIDRs) {
		return remoteIP(r)
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if v := r.Header.Get("X-Real-IP"); v != "" {
		return strings.TrimSpace(v)
	}

	return remoteIP(r)
}

// remoteIP is RemoteAddr without the port, or the raw value when it
// doesn't parse as host:port.
func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func getSourceIP(r *http.Request) net.IP {
	return net.ParseIP(remoteIP(r))
}
