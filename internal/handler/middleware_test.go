package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/config"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signKey(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAPIKeyMiddleware(t *testing.T) {
	const secret = "test-secret"
	s := newTestServer(t, func(cfg *config.BridgeConfig) { cfg.APISecretKey = secret })

	tests := []struct {
		name     string
		header   string
		value    string
		wantCode int
	}{
		{name: "missing key", wantCode: http.StatusUnauthorized},
		{name: "garbage key", header: APIKeyHeader, value: "not-a-jwt", wantCode: http.StatusUnauthorized},
		{
			name:     "wrong secret",
			header:   APIKeyHeader,
			value:    signKey(t, "other", jwt.RegisteredClaims{Subject: "ops"}),
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "no subject",
			header:   APIKeyHeader,
			value:    signKey(t, secret, jwt.RegisteredClaims{}),
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "expired",
			header:   APIKeyHeader,
			value:    signKey(t, secret, jwt.RegisteredClaims{Subject: "ops", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}),
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "valid key",
			header:   APIKeyHeader,
			value:    signKey(t, secret, jwt.RegisteredClaims{Subject: "ops"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "valid bearer",
			header:   "Authorization",
			value:    "Bearer " + signKey(t, secret, jwt.RegisteredClaims{Subject: "ops"}),
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/personas", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			assert.Equal(t, tt.wantCode, s.do(req).Code)
		})
	}
}

func TestWebhooksBypassAPIKey(t *testing.T) {
	s := newTestServer(t, func(cfg *config.BridgeConfig) { cfg.APISecretKey = "test-secret" })

	rec := s.do(httptest.NewRequest(http.MethodPost, "/twilio/answer/assistant_1_abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/calls", nil)
	rec := s.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
