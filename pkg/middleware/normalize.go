package middleware

import (
	"net/http"
	"strings"
)

// Normalize standardizes request fields coming through proxies
// - Trims whitespace around URL.Path (e.g. "/invite/abc%20")
// - Drops a trailing slash so "/api/projects/" routes like "/api/projects"
// - Restores scheme/host from forwarding headers for logs and invite links
func Normalize() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := strings.TrimSpace(r.URL.Path)
			if len(p) > 1 && strings.HasSuffix(p, "/") {
				p = strings.TrimRight(p, "/")
				if p == "" {
					p = "/"
				}
			}
			if p != r.URL.Path {
				r.URL.Path = p
				r.URL.RawPath = ""
			}

			if xfproto := r.Header.Get("X-Forwarded-Proto"); xfproto != "" {
				r.URL.Scheme = xfproto
			}
			if xfhost := r.Header.Get("X-Forwarded-Host"); xfhost != "" {
				r.Host = xfhost
			}
			next.ServeHTTP(w, r)
		})
	}
}
