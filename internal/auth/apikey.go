// Package auth guards the API with static API keys.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
)

// APIKeyMiddleware accepts a request when its key (from the configured header or an
// Authorization bearer token) matches one of the configured keys. With no keys
// configured every request passes.
type APIKeyMiddleware struct {
	headerName string
	hashes     [][]byte
}

func NewAPIKeyMiddleware(keys []string, headerName string) *APIKeyMiddleware {
	if headerName == "" {
		headerName = "X-API-Key"
	}
	m := &APIKeyMiddleware{headerName: headerName}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			h := sha256.Sum256([]byte(k))
			m.hashes = append(m.hashes, h[:])
		}
	}
	return m
}

func (m *APIKeyMiddleware) HeaderName() string {
	return m.headerName
}

func (m *APIKeyMiddleware) Enabled() bool {
	return len(m.hashes) > 0
}

func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(m.headerName)
		if key == "" {
			key = extractBearerToken(r)
		}
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}
		if !m.valid(key) {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// valid compares against every configured key so timing does not reveal which one matched.
func (m *APIKeyMiddleware) valid(key string) bool {
	sum := sha256.Sum256([]byte(key))
	match := 0
	for _, h := range m.hashes {
		match |= subtle.ConstantTimeCompare(h, sum[:])
	}
	return match == 1
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
