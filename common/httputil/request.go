package httputil

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// GetClientIP extracts the real client IP address from request headers.
// It handles proxy scenarios by checking headers in this order:
//  1. X-Forwarded-For (extracts first/client IP from comma-separated list)
//  2. X-Real-IP (single IP from reverse proxy)
//  3. RemoteAddr (direct connection, port stripped)
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// IPAllowList matches client addresses against single IPs and CIDR ranges.
// An empty list allows everything.
type IPAllowList struct {
	nets []*net.IPNet
}

// ParseIPAllowList parses entries such as "203.0.113.7" or "10.0.0.0/8".
func ParseIPAllowList(entries []string) (*IPAllowList, error) {
	list := &IPAllowList{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				return nil, fmt.Errorf("invalid IP address %q", e)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			list.nets = append(list.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", e, err)
		}
		list.nets = append(list.nets, n)
	}
	return list, nil
}

// Empty reports whether the list allows every address.
func (l *IPAllowList) Empty() bool {
	return l == nil || len(l.nets) == 0
}

// Allows reports whether ip is permitted.
func (l *IPAllowList) Allows(ip string) bool {
	if l.Empty() {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range l.nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}
