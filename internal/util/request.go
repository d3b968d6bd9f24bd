package util

import (
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
)

// GenerateRequestID returns a short human-readable correlation ID for the
// forwarder's log lines.
func GenerateRequestID() string {
	actions := []string{
		"drifting", "gusting", "rising", "settling", "veering",
		"swirling", "cooling", "clearing", "shifting", "easing",
		"building", "fading", "turning", "holding", "backing",
	}
	winds := []string{
		"zephyr", "mistral", "chinook", "sirocco", "breeze",
		"squall", "gale", "trade", "monsoon", "bora",
		"foehn", "levant", "williwaw", "khamsin", "etesian",
	}

	group := winds[rand.Intn(len(winds))]
	action := actions[rand.Intn(len(actions))]
	suffix := fmt.Sprintf("%04x", rand.Intn(65536))

	return fmt.Sprintf("%s_%s_%s", group, action, suffix)
}

// GetClientIP resolves the caller's address, honouring X-Forwarded-For /
// X-Real-IP only when the request arrived from a configured trusted proxy.
func GetClientIP(r *http.Request, trustProxyHeaders bool, trustedCIDRs []*net.IPNet) string {
	if !trustProxyHeaders {
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}

	sourceIP := getSourceIP(r)
	if sourceIP == nil || !isIPInTrustedCIDRs(sourceIP, trustedCIDRs) {
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}

	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func getSourceIP(r *http.Request) net.IP {
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(ip)
	}
	return net.ParseIP(r.RemoteAddr)
}
