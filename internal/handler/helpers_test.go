package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/config"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/bridge"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/session"
	"github.com/ClareAI/astra-outbound-bridge/internal/persona"
	"github.com/ClareAI/astra-outbound-bridge/internal/services/call"
	"github.com/gorilla/mux"
)

const testBaseURL = "https://bridge.example.com"

type stubPlacer struct {
	mu   sync.Mutex
	fail bool
}

func (p *stubPlacer) PlaceCall(to, answerURL, statusURL string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return "", errors.New("carrier rejected number")
	}
	return "CA900", nil
}

func (p *stubPlacer) EndCall(sid string) error { return nil }

func (p *stubPlacer) SendMessage(to, body string) (string, error) { return "SM1", nil }

type stubBridge struct {
	mu     sync.Mutex
	callID string
	params map[string]string
	served chan struct{}
}

func newStubBridge() *stubBridge {
	return &stubBridge{served: make(chan struct{}, 1)}
}

func (b *stubBridge) Serve(_ context.Context, callID string, media bridge.MediaConn, params map[string]string) error {
	b.mu.Lock()
	b.callID = callID
	b.params = params
	b.mu.Unlock()
	b.served <- struct{}{}
	return nil
}

type testServer struct {
	router  *mux.Router
	service *call.Service
	placer  *stubPlacer
	bridge  *stubBridge
}

func newTestServer(t *testing.T, mutate func(cfg *config.BridgeConfig)) *testServer {
	t.Helper()
	cfg := config.DefaultBridgeConfig()
	cfg.PublicBaseURL = testBaseURL
	cfg.InstanceID = "pod-test"
	cfg.RateLimitRPS = 0
	if mutate != nil {
		mutate(cfg)
	}

	store := session.NewStore(time.Minute)
	placer := &stubPlacer{}
	service := call.NewService(call.Config{PublicBaseURL: cfg.PublicBaseURL, InstanceID: cfg.InstanceID},
		store, persona.NewResolver(), placer)
	t.Cleanup(func() {
		_ = service.Close()
		store.Close()
	})

	b := newStubBridge()
	router := mux.NewRouter()
	NewHandlerManagerWith(cfg, service, b).SetupAllRoutes(router)
	return &testServer{router: router, service: service, placer: placer, bridge: b}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}
