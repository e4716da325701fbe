package handler

import (
	"context"
	"net/http"

	"github.com/ClareAI/astra-outbound-bridge/internal/core/bridge"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StreamBridge bridges one accepted media-stream connection.
type StreamBridge interface {
	Serve(ctx context.Context, callID string, media bridge.MediaConn, params map[string]string) error
}

// MediaStreamHandler accepts Twilio media-stream websockets
type MediaStreamHandler struct {
	bridge   StreamBridge
	upgrader websocket.Upgrader
}

func NewMediaStreamHandler(b StreamBridge) *MediaStreamHandler {
	return &MediaStreamHandler{
		bridge: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Twilio does not send an Origin header
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetupMediaStreamRoutes registers the websocket endpoint
func (h *MediaStreamHandler) SetupMediaStreamRoutes(router *mux.Router) {
	router.HandleFunc("/media-stream/{callId}", h.handleMediaStream).Methods(http.MethodGet)
}

func (h *MediaStreamHandler) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["callId"]
	log := logger.ForCall(callID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade media stream", zap.Error(err))
		return
	}
	defer conn.Close()

	params := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	if err := h.bridge.Serve(r.Context(), callID, conn, params); err != nil {
		log.Warn("Media stream rejected", zap.Error(err))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "call not active"))
	}
}
