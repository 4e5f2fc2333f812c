package middlewarex

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// APIKeyAuth authenticates callers by comparing the SHA-256 of the presented
// key against the provisioned hash list. Raw keys are never stored or logged.
func APIKeyAuth(keyHashes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			key := strings.TrimPrefix(auth, "Bearer ")
			h := sha256.Sum256([]byte(key))
			hx := hex.EncodeToString(h[:])

			for _, known := range keyHashes {
				if subtle.ConstantTimeCompare([]byte(hx), []byte(known)) == 1 {
					// First 8 hex chars identify the caller in logs without
					// exposing the key.
					next.ServeHTTP(w, r.WithContext(WithCallerID(r.Context(), hx[:8])))
					return
				}
			}
			http.Error(w, "invalid key", http.StatusUnauthorized)
		})
	}
}

// AdminAuth guards operator endpoints with a single static token.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "admin endpoints disabled", http.StatusForbidden)
				return
			}
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
