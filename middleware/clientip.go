// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies lists the reverse proxies whose forwarding headers are
// believed. Requests from any other peer are identified by the peer address.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies reads a comma-separated list of IP addresses and
// CIDR ranges. An empty string yields no trusted proxies.
func ParseTrustedProxies(s string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", part, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", part, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// String renders the list in the form ParseTrustedProxies accepts.
func (tp TrustedProxies) String() string {
	parts := make([]string, len(tp))
	for i, p := range tp {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}

// Trusts reports whether ip falls inside one of the trusted ranges.
func (tp TrustedProxies) Trusts(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range tp {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// GetClientIP returns the address rate limiting and IP hashing key on.
// That is the TCP peer, unless the peer is a trusted proxy: then the
// X-Forwarded-For chain is walked from the right and the first untrusted
// hop wins, with X-Real-IP as the fallback when no chain is present.
func GetClientIP(r *http.Request, trusted TrustedProxies) string {
	peer := remoteHost(r)
	if !trusted.Trusts(peer) {
		return peer
	}

	if chain := r.Header.Values("X-Forwarded-For"); len(chain) > 0 {
		hops := strings.Split(strings.Join(chain, ","), ",")
		leftmost := ""
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !trusted.Trusts(hop) {
				return hop
			}
			leftmost = hop
		}
		// Every hop is one of ours
		if leftmost != "" {
			return leftmost
		}
	}

	// nginx
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
