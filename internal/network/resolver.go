package network

import (
	"fmt"
	"net"
	"strings"
)

// Resolver derives candidate scan prefixes from the host's network
// interfaces. A prefix is the first three octets of a local IPv4
// address with a trailing dot, e.g. "192.168.0.".
type Resolver struct {
	// interfaceAddrs is swapped out in tests.
	interfaceAddrs func() ([]net.Addr, error)
}

// NewResolver creates a Resolver backed by the host's real interfaces.
func NewResolver() *Resolver {
	return &Resolver{interfaceAddrs: net.InterfaceAddrs}
}

// Prefixes returns the distinct /24 prefixes of all non-loopback IPv4
// interface addresses, in interface order. Returns ErrNoPrefixes when
// the host has no usable IPv4 address.
func (r *Resolver) Prefixes() ([]string, error) {
	addrs, err := r.interfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("listing interface addresses: %w", err)
	}

	seen := make(map[string]struct{})
	var prefixes []string

	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		default:
			continue
		}

		v4 := ip.To4()
		if v4 == nil || v4.IsLoopback() {
			continue
		}

		prefix := fmt.Sprintf("%d.%d.%d.", v4[0], v4[1], v4[2])
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		prefixes = append(prefixes, prefix)
	}

	if len(prefixes) == 0 {
		return nil, ErrNoPrefixes
	}
	return prefixes, nil
}

// ValidatePrefix checks that prefix looks like "a.b.c." with a
// trailing dot and numeric octets in range.
func ValidatePrefix(prefix string) error {
	if !strings.HasSuffix(prefix, ".") {
		return fmt.Errorf("%w: %q missing trailing dot", ErrInvalidPrefix, prefix)
	}
	// Appending a valid host suffix must yield a parseable IPv4 address.
	if ip := net.ParseIP(prefix + "1"); ip == nil || ip.To4() == nil {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	if strings.Count(prefix, ".") != 3 {
		return fmt.Errorf("%w: %q must contain three octets", ErrInvalidPrefix, prefix)
	}
	return nil
}
