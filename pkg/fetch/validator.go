// Package fetch provides an SSRF-safe HTTP fetcher for URL ingestion.
package fetch

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// blockedPrefixes are address ranges never dialled: loopback, private,
// link-local (incl. cloud metadata), CGNAT and their IPv6 counterparts.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fec0::/10"),
	netip.MustParsePrefix("::/128"),
}

// blockedHostnames are denied before any DNS lookup happens.
var blockedHostnames = map[string]bool{
	"localhost":                 true,
	"localhost.localdomain":     true,
	"ip6-localhost":             true,
	"ip6-loopback":              true,
	"metadata.google.internal":  true,
	"metadata.goog":             true,
	"instance-data":             true,
	"instance-data.ec2.internal": true,
}

// Validator rejects URLs that would reach internal address space.
type Validator struct {
	allowPrivate bool
}

// NewValidator creates a validator with the default denylist
func NewValidator() *Validator {
	return &Validator{}
}

// NewPermissiveValidator creates a validator that only enforces the URL
// scheme. Intended for local development against loopback services.
func NewPermissiveValidator() *Validator {
	return &Validator{allowPrivate: true}
}

// ValidateURL checks the scheme, hostname denylist and every resolved
// address of the URL. The dialled address is re-checked at connect time
// by the fetcher's transport, so DNS rebinding between this check and
// the connection cannot bypass it.
func (v *Validator) ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	return v.validateParsed(parsed)
}

func (v *Validator) validateParsed(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not allowed", u.Scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	if v.allowPrivate {
		return nil
	}

	if blockedHostnames[strings.ToLower(hostname)] {
		return fmt.Errorf("hostname %q is not allowed", hostname)
	}

	// Literal addresses are checked directly.
	if addr, err := netip.ParseAddr(strings.Trim(hostname, "[]")); err == nil {
		return v.ValidateAddr(addr)
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", hostname, err)
	}

	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			return fmt.Errorf("hostname %q resolved to an invalid address", hostname)
		}
		if err := v.ValidateAddr(addr.Unmap()); err != nil {
			return fmt.Errorf("hostname %q resolves to blocked address: %w", hostname, err)
		}
	}

	return nil
}

// ValidateAddr checks a single address against the blocked ranges.
func (v *Validator) ValidateAddr(addr netip.Addr) error {
	if v.allowPrivate {
		return nil
	}
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return fmt.Errorf("address %s is in blocked range %s", addr, p)
		}
	}
	return nil
}

// ValidateDialAddress is the transport-level hook: it receives the
// already-resolved "host:port" the dialer is about to connect to.
func (v *Validator) ValidateDialAddress(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid dial address %q: %w", address, err)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("invalid dial host %q: %w", host, err)
	}
	return v.ValidateAddr(addr)
}
