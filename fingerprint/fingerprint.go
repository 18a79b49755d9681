package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
	"strings"

	"github.com/mssola/useragent"
)

const (
	ipv4PrefixBits = 24
	ipv6PrefixBits = 48
	unknown        = "unknown"
)

// Context is the connection metadata a fingerprint is derived from.
type Context struct {
	UserAgent string
	IP        string
}

// Derive returns the lowercase hex SHA-256 of userAgent and ip. Identical
// inputs always produce the same value.
func Derive(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + "|" + ip))
	return hex.EncodeToString(sum[:])
}

// Of is shorthand for Derive(c.UserAgent, c.IP).
func (c Context) Of() string {
	return Derive(c.UserAgent, c.IP)
}

// SignificantChange reports whether current looks like a different client
// than original: the coarse network prefix AND the browser/OS family must
// both differ. A change in only one of them is common (mobile networks,
// browser updates) and is not significant.
func SignificantChange(original, current Context) bool {
	if NetworkPrefix(original.IP) == NetworkPrefix(current.IP) {
		return false
	}
	return Family(original.UserAgent) != Family(current.UserAgent)
}

// NetworkPrefix returns the /24 (IPv4) or /48 (IPv6) network containing ip,
// or "unknown" when ip does not parse.
func NetworkPrefix(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return unknown
	}
	addr = addr.Unmap()

	bits := ipv6PrefixBits
	if addr.Is4() {
		bits = ipv4PrefixBits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return unknown
	}
	return prefix.String()
}

// Family returns "<browser>/<os>" extracted from a User-Agent header, both
// lowercased and without versions. Empty input yields "unknown".
func Family(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknown
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name

	browser = strings.ToLower(strings.TrimSpace(browser))
	os = strings.ToLower(strings.TrimSpace(os))
	if browser == "" {
		browser = unknown
	}
	if os == "" {
		os = unknown
	}
	return browser + "/" + os
}
