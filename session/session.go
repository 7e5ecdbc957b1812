package session

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var ErrNoBearer = errors.New("no bearer token found in request")

// ExtractBearer returns the token of an "Authorization: Bearer <token>" header
func ExtractBearer(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrNoBearer
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", ErrNoBearer
	}
	return parts[1], nil
}

// WithAPIAuth only lets a request through when its bearer token is the shared API password
func WithAPIAuth(handler http.HandlerFunc, password string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := ExtractBearer(r)
		if err != nil || password == "" || subtle.ConstantTimeCompare([]byte(token), []byte(password)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "Unauthorized"}`))
			return
		}

		handler(w, r)
	}
}
