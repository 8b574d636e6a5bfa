// Package requestutil extracts caller details from portal requests.
package requestutil

import (
	"net"
	"net/http"
	"strings"
)

// APIKeyHeader carries a portal API key.
const APIKeyHeader = "Skynet-Api-Key"

// RemoteAddr extracts the remote address of the request, taking into
// account proxy headers.
func RemoteAddr(r *http.Request) string {
	if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
		remoteAddr, _, _ := strings.Cut(prior, ",")
		remoteAddr = strings.TrimSpace(remoteAddr)
		if net.ParseIP(remoteAddr) != nil {
			return remoteAddr
		}
	}
	// X-Real-Ip is less supported, but worth checking in the
	// absence of X-Forwarded-For
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" && net.ParseIP(realIP) != nil {
		return realIP
	}

	return r.RemoteAddr
}

// RemoteIP extracts the remote IP of the request, taking into
// account proxy headers.
func RemoteIP(r *http.Request) string {
	addr := RemoteAddr(r)

	// Try parsing it as "IP:port"
	if ip, _, err := net.SplitHostPort(addr); err == nil {
		return ip
	}

	return addr
}

// APIKey returns the API key the caller presented, either in the
// Skynet-Api-Key header or as the "apikey" query parameter.
func APIKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	return r.URL.Query().Get("apikey")
}
