package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKeyMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	m := NewAPIKeyMiddleware([]string{"alpha", " beta ", ""}, "X-API-Key")

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong key", header: "X-API-Key", value: "gamma", want: http.StatusUnauthorized},
		{name: "first key", header: "X-API-Key", value: "alpha", want: http.StatusNoContent},
		{name: "trimmed key", header: "X-API-Key", value: "beta", want: http.StatusNoContent},
		{name: "bearer", header: "Authorization", value: "Bearer alpha", want: http.StatusNoContent},
		{name: "basic is not accepted", header: "Authorization", value: "Basic alpha", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/x", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			m.Authenticate(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAPIKeyMiddleware_DisabledWithoutKeys(t *testing.T) {
	m := NewAPIKeyMiddleware(nil, "")
	assert.False(t, m.Enabled())

	rec := httptest.NewRecorder()
	m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHashAPIKey(t *testing.T) {
	assert.Equal(t, "2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae", HashAPIKey("foo"))
}
