package util

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP extracts the caller's address for rate limiting. RealIP
// middleware already rewrites RemoteAddr behind trusted proxies; the
// header checks cover direct deployments.
func GetClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
