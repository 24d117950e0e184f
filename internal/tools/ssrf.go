package tools

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// checkSSRF rejects URLs whose hostname is, or resolves to, a private or
// link-local address (spec §4.6 web_fetch contract / §8 scenario S6).
func checkSSRF(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("missing hostname")
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("request to private/internal address denied")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("request to private/internal address denied")
		}
		return nil
	}

	// Hostname: resolve and check every address it maps to.
	ips, err := net.LookupIP(host)
	if err != nil {
		// DNS failure isn't an SSRF verdict; let the HTTP client surface it.
		return nil
	}
	for _, ip := range ips {
		if isBlockedIP(ip) {
			return fmt.Errorf("request to private/internal address denied")
		}
	}
	return nil
}

var blockedHostnames = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
}

func isBlockedHostname(host string) bool {
	return blockedHostnames[strings.ToLower(host)]
}

// isBlockedIP matches the spec's literal pattern list: 10.*, 172.16-31.*,
// 192.168.*, 127.*, 0.*, 169.254.*, ::1, fe80:*, fc*, fd*.
func isBlockedIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 10:
			return true
		case ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31:
			return true
		case ip4[0] == 192 && ip4[1] == 168:
			return true
		case ip4[0] == 127:
			return true
		case ip4[0] == 0:
			return true
		case ip4[0] == 169 && ip4[1] == 254:
			return true
		}
		return ip4.IsLoopback() || ip4.IsUnspecified() || ip4.IsLinkLocalUnicast() || ip4.IsPrivate()
	}

	if ip.Equal(net.IPv6loopback) {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true // fe80::/10
	}
	// fc00::/7 (unique local, covers both fc* and fd* prefixes)
	if ip.IsPrivate() {
		return true
	}
	return false
}
