package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sutaaa0/cashier-app-sub000/internal/api/response"
)

// AdminToken returns a middleware that requires "Authorization: Bearer
// <token>". An empty token disables the check.
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			given, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || given == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing admin token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				response.WriteError(w, http.StatusUnauthorized, "invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
