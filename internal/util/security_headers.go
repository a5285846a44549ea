package util

import (
	"net/http"
	"strings"
)

// WithSecurityHeaders sets hardening headers for a JSON API. HSTS is sent
// only on HTTPS as judged by IsSecureRequest, so a client cannot opt in by
// forging X-Forwarded-Proto. Responses under /api/ carry donor and admin
// data and are marked uncacheable.
func WithSecurityHeaders(trusted *TrustedProxies, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if strings.HasPrefix(r.URL.Path, "/api/") {
			h.Set("Cache-Control", "no-store")
		}
		if IsSecureRequest(r, trusted) {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
