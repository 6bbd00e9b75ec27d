package middleware

import (
	"net/http"
)

// LoginGate reports whether an operator is logged in.
type LoginGate interface {
	LoggedIn() bool
}

// RequireLogin is middleware that rejects requests while no operator is logged in.
func RequireLogin(gate LoginGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !gate.LoggedIn() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
