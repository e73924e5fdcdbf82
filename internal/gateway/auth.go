package gateway

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// authorized reports whether the Authorization header grants access.
// With no secret configured the gateway runs in open mode and every
// request passes. Otherwise the header must be exactly
// "Bearer <secret>" — wrong scheme, wrong token, or stray whitespace
// all reject. The comparison is constant-time; observable behavior is
// exact string equality.
func authorized(header, secret string) bool {
	if secret == "" {
		return true
	}
	want := "Bearer " + secret
	return subtle.ConstantTimeCompare([]byte(header), []byte(want)) == 1
}

// requireAuth guards a handler with the shared bearer token. Rejected
// requests get 401 and are otherwise fully discarded: no store
// mutation, no dispatch.
func (gw *Gateway) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r.Header.Get("Authorization"), gw.cfg.Server.AuthToken) {
			slog.Warn("Unauthorized request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}
