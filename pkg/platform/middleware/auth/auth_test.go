package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator map[string]*JWTClaims

func (v stubValidator) ValidateToken(token string) (*JWTClaims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

var (
	discard   = slog.New(slog.NewTextHandler(io.Discard, nil))
	validator = stubValidator{"good": {UserID: "u1", DisplayName: "Ada", OnboardingComplete: true}}
)

func echoUser(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		if claims == nil {
			_, _ = io.WriteString(w, "anonymous")
			return
		}
		assert.Equal(t, claims.UserID, GetUserID(r.Context()))
		_, _ = io.WriteString(w, claims.UserID)
	})
}

func TestRequireAuth(t *testing.T) {
	h := RequireAuth(validator, discard)(echoUser(t))

	t.Run("bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Body.String())
	})

	t.Run("session cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "good"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	for name, setup := range map[string]func(*http.Request){
		"missing":        func(*http.Request) {},
		"invalid":        func(r *http.Request) { r.Header.Set("Authorization", "Bearer bad") },
		"wrong scheme":   func(r *http.Request) { r.Header.Set("Authorization", "Basic good") },
		"invalid cookie": func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "bad"}) },
	} {
		t.Run(name+" is unauthorized", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "unauthorized", body["error"])
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	h := OptionalAuth(validator, discard)(echoUser(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "u1", rec.Body.String())

	for _, token := range []string{"", "bad"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	}
}
