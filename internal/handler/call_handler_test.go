package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ClareAI/astra-outbound-bridge/internal/config"
	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
	"github.com/ClareAI/astra-outbound-bridge/internal/services/call"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postCall(s *testServer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/calls", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func TestInitiateCallEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := postCall(s, `{"destinationNumber":"+15551234567","destinationName":"Jane Doe","personaId":"support","purpose":"order #42"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result call.InitiateCallResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.True(t, strings.HasPrefix(result.CallID, "support_"))
	assert.Equal(t, "CA900", result.ProviderCallID)
	assert.Equal(t, "Sam", result.PersonaName)
}

func TestInitiateCallEndpointErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		fail     bool
		wantCode int
	}{
		{name: "malformed body", body: `{`, wantCode: http.StatusBadRequest},
		{name: "missing destination", body: `{"purpose":"hi"}`, wantCode: http.StatusBadRequest},
		{name: "score out of range", body: `{"destinationNumber":"+1555","relationshipFacts":{"engagementScore":140}}`, wantCode: http.StatusBadRequest},
		{name: "origination failure", body: `{"destinationNumber":"+1555"}`, fail: true, wantCode: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.placer.fail = tt.fail

			rec := postCall(s, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)

			var result call.InitiateCallResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestGetCallEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec := postCall(s, `{"destinationNumber":"+15551234567"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var result call.InitiateCallResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/calls/"+result.CallID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var summary domain.CallSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, result.CallID, summary.CallID)
	assert.Equal(t, domain.CallStatusCalling, summary.Status)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/calls/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/calls", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestEndCallEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec := postCall(s, `{"destinationNumber":"+15551234567"}`)
	var result call.InitiateCallResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/calls/"+result.CallID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	summary, err := s.service.GetCall(context.Background(), result.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusCompleted, summary.Status)

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/calls/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPersonasEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/personas", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Personas []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"personas"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Personas)
	assert.NotContains(t, rec.Body.String(), "BaseInstructions")
}

func TestInitiateCallIsRateLimited(t *testing.T) {
	s := newTestServer(t, func(cfg *config.BridgeConfig) {
		cfg.RateLimitRPS = 0.001
		cfg.RateLimitBurst = 1
	})

	assert.Equal(t, http.StatusOK, postCall(s, `{"destinationNumber":"+15551234567"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, postCall(s, `{"destinationNumber":"+15551234567"}`).Code)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/calls", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"instanceId":"pod-test"`)
}
