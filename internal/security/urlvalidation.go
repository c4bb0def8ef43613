package security

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"github.com/rmitchellscott/binder/internal/config"
)

var (
	ErrInvalidURL         = errors.New("invalid URL format")
	ErrInvalidScheme      = errors.New("URL scheme must be http or https")
	ErrPrivateIP          = errors.New("URL points to private/local IP address")
	ErrBlockedDomain      = errors.New("domain is in blocklist")
	ErrEmptyURL           = errors.New("URL cannot be empty")
	ErrIPResolutionFailed = errors.New("failed to resolve domain")
)

// lookupIP is swapped in tests.
var lookupIP = net.LookupIP

// ValidateURL checks a remote document URL before the server fetches it.
// BLOCKED_DOMAINS is a comma separated suffix blocklist. Private, loopback
// and link-local targets are refused unless BLOCK_PRIVATE_IPS=false.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return ErrEmptyURL
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return ErrInvalidScheme
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}

	for _, domain := range config.GetList("BLOCKED_DOMAINS", "") {
		if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
			return fmt.Errorf("%w: %s", ErrBlockedDomain, hostname)
		}
	}

	if config.GetBool("BLOCK_PRIVATE_IPS", true) {
		return checkPrivateIP(hostname)
	}
	return nil
}

func checkPrivateIP(hostname string) error {
	if ip := net.ParseIP(hostname); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrPrivateIP, ip.String())
		}
		return nil
	}

	ips, err := lookupIP(hostname)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIPResolutionFailed, err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("%w: no IPs found for hostname", ErrIPResolutionFailed)
	}
	for _, resolved := range ips {
		if isPrivateIP(resolved) {
			return fmt.Errorf("%w: %s resolves to %s", ErrPrivateIP, hostname, resolved.String())
		}
	}
	return nil
}

// reserved ranges not covered by net.IP helpers: CGNAT, benchmarking and the
// documentation networks.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return false
	}
	addr = addr.Unmap()
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
