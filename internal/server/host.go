package server

import (
	"net/http"
	"os"
	"strings"
)

// tenantHost yields the lowercased hostname the tenant registry is keyed
// on. X-Forwarded-Host is honored only when TRUST_PROXY=1; otherwise a
// spoofed header could move a request to another tenant.
func tenantHost(r *http.Request) string {
	host := r.Host
	if os.Getenv("TRUST_PROXY") == "1" {
		if fwd := forwardedHost(r); fwd != "" {
			host = fwd
		}
	}
	return canonicalHost(host)
}

// forwardedHost returns the first hop of X-Forwarded-Host, or "".
func forwardedHost(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Host"), ",")
	return strings.TrimSpace(first)
}

// canonicalHost strips the port and normalizes case and whitespace.
func canonicalHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	return strings.ToLower(host)
}
