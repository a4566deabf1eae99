package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
)

var (
	proxyMu        sync.RWMutex
	trustedProxies []*net.IPNet
)

// SetTrustedProxies sets the addresses (IPs or CIDRs) whose forwarding
// headers GetClientIP believes. With none set, forwarding headers are
// ignored and the peer address is used.
func SetTrustedProxies(entries []string) error {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			_, n, err := net.ParseCIDR(entry)
			if err != nil {
				return fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			nets = append(nets, n)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return fmt.Errorf("invalid trusted proxy %q", entry)
		}
		bits := 128
		if ip.To4() != nil {
			ip, bits = ip.To4(), 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}

	proxyMu.Lock()
	trustedProxies = nets
	proxyMu.Unlock()
	return nil
}

func isTrustedProxy(ip net.IP) bool {
	if ip == nil {
		return false
	}
	proxyMu.RLock()
	defer proxyMu.RUnlock()
	for _, n := range trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// parseHostIP accepts "ip" or "ip:port".
func parseHostIP(s string) (string, net.IP) {
	s = strings.TrimSpace(s)
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	return s, net.ParseIP(s)
}

// GetClientIP extracts the real client IP from the request. Forwarding
// headers are only read when the peer is a trusted proxy, and
// X-Forwarded-For is walked from the right so a client cannot pick its own
// address by prepending entries.
func GetClientIP(r *http.Request) string {
	peer, peerIP := parseHostIP(r.RemoteAddr)
	if !isTrustedProxy(peerIP) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		leftmost := ""
		for i := len(hops) - 1; i >= 0; i-- {
			addr, ip := parseHostIP(hops[i])
			if ip == nil {
				break
			}
			if !isTrustedProxy(ip) {
				return addr
			}
			leftmost = addr
		}
		if leftmost != "" {
			return leftmost
		}
	}

	if xri, ip := parseHostIP(r.Header.Get("X-Real-IP")); ip != nil {
		return xri
	}
	return peer
}
