package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"time"
)

const (
	maxURLLength  = 2048
	lookupTimeout = 5 * time.Second
)

// ErrUnsafeURL is wrapped by every ValidateURL rejection.
var ErrUnsafeURL = errors.New("unsafe input URL")

// lookupFunc resolves a host name to addresses.
type lookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// ValidateURL checks that an input URL is safe to hand to ffmpeg: http or
// https only, no embedded credentials, at most 2048 characters, and every
// address the host resolves to is publicly routable.
func ValidateURL(rawURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	return validateURL(ctx, rawURL, lookupHost)
}

func validateURL(ctx context.Context, rawURL string, lookup lookupFunc) error {
	if len(rawURL) > maxURLLength {
		return fmt.Errorf("%w: %d chars, max %d", ErrUnsafeURL, len(rawURL), maxURLLength)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsafeURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed", ErrUnsafeURL, u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("%w: embedded credentials", ErrUnsafeURL)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: no host", ErrUnsafeURL)
	}

	var addrs []netip.Addr
	if ip, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{ip}
	} else {
		addrs, err = lookup(ctx, host)
		if err != nil {
			return fmt.Errorf("%w: resolve %q: %w", ErrUnsafeURL, host, err)
		}
		if len(addrs) == 0 {
			return fmt.Errorf("%w: %q has no addresses", ErrUnsafeURL, host)
		}
	}
	for _, ip := range addrs {
		if !isPublic(ip) {
			return fmt.Errorf("%w: %q resolves to %s", ErrUnsafeURL, host, ip)
		}
	}
	return nil
}

var reserved = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.IsValid() || ip.IsUnspecified() || ip.IsLoopback() || ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return false
	}
	for _, p := range reserved {
		if p.Contains(ip) {
			return false
		}
	}
	return true
}

func lookupHost(ctx context.Context, host string) ([]netip.Addr, error) {
	var r net.Resolver
	return r.LookupNetIP(ctx, "ip", host)
}
