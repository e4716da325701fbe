package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ClareAI/astra-outbound-bridge/internal/services/call"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxRequestBodyBytes = 1 << 20

// CallHandler serves the call management API
type CallHandler struct {
	service *call.Service
	limit   func(http.Handler) http.Handler
}

// NewCallHandler creates a call handler. limit guards call initiation.
func NewCallHandler(service *call.Service, limit func(http.Handler) http.Handler) *CallHandler {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &CallHandler{service: service, limit: limit}
}

// SetupCallRoutes registers the call routes on the API subrouter
func (h *CallHandler) SetupCallRoutes(router *mux.Router) {
	router.Handle("/calls", h.limit(http.HandlerFunc(h.initiateCall))).Methods(http.MethodPost)
	router.HandleFunc("/calls", h.listCalls).Methods(http.MethodGet)
	router.HandleFunc("/calls/{callId}", h.getCall).Methods(http.MethodGet)
	router.HandleFunc("/calls/{callId}", h.endCall).Methods(http.MethodDelete)
	router.HandleFunc("/personas", h.listPersonas).Methods(http.MethodGet)
}

func (h *CallHandler) initiateCall(w http.ResponseWriter, r *http.Request) {
	var req call.InitiateCallRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, call.InitiateCallResult{Error: "invalid request body"})
		return
	}

	result, err := h.service.InitiateCall(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, call.ErrDestinationRequired), errors.Is(err, call.ErrInvalidRequest):
			status = http.StatusBadRequest
		case errors.Is(err, call.ErrOriginationFailed):
			status = http.StatusBadGateway
		default:
			logger.Base().Error("Failed to initiate call", zap.Error(err))
		}
		writeJSON(w, status, call.InitiateCallResult{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *CallHandler) getCall(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["callId"]
	summary, err := h.service.GetCall(r.Context(), callID)
	if err != nil {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *CallHandler) listCalls(w http.ResponseWriter, r *http.Request) {
	calls := h.service.ListActive()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"calls": calls,
		"count": len(calls),
	})
}

func (h *CallHandler) endCall(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["callId"]
	if err := h.service.EndCall(r.Context(), callID); err != nil {
		if errors.Is(err, call.ErrCallNotFound) {
			writeError(w, http.StatusNotFound, "call not found")
			return
		}
		logger.ForCall(callID).Error("Failed to end call", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to end call")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "callId": callID})
}

func (h *CallHandler) listPersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"personas": h.service.Personas()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Base().Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
