package handler

import (
	"errors"
	"net/http"

	"github.com/ClareAI/astra-outbound-bridge/internal/core/session"
	"github.com/ClareAI/astra-outbound-bridge/internal/services/call"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/ClareAI/astra-outbound-bridge/pkg/twilio"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TwilioWebhookHandler answers Twilio voice webhooks
type TwilioWebhookHandler struct {
	service       *call.Service
	publicBaseURL string
	validator     *twilio.SignatureValidator
}

// NewTwilioWebhookHandler creates the webhook handler. A nil validator
// disables signature checks.
func NewTwilioWebhookHandler(service *call.Service, publicBaseURL string, validator *twilio.SignatureValidator) *TwilioWebhookHandler {
	return &TwilioWebhookHandler{
		service:       service,
		publicBaseURL: publicBaseURL,
		validator:     validator,
	}
}

// SetupTwilioRoutes registers the answer and status webhooks
func (h *TwilioWebhookHandler) SetupTwilioRoutes(router *mux.Router) {
	twilioRouter := router.PathPrefix("/twilio").Subrouter()
	if h.validator != nil {
		twilioRouter.Use(TwilioSignatureMiddleware(h.validator, h.publicBaseURL))
	}
	twilioRouter.HandleFunc("/answer/{callId}", h.handleAnswer).Methods(http.MethodPost, http.MethodGet)
	twilioRouter.HandleFunc("/status/{callId}", h.handleStatus).Methods(http.MethodPost)
}

// handleAnswer returns TwiML connecting the call to the media stream. It
// does not touch call state, so Twilio retries are harmless.
func (h *TwilioWebhookHandler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["callId"]
	log := logger.ForCall(callID)

	body, err := twilio.StreamInstructions(h.publicBaseURL, callID)
	if err != nil {
		log.Error("Failed to render stream instructions", zap.Error(err))
		body, err = twilio.HangupInstructions()
		if err != nil {
			http.Error(w, "failed to render twiml", http.StatusInternalServerError)
			return
		}
	}

	log.Info("Call answered, connecting media stream")
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleStatus applies a form-encoded status callback.
func (h *TwilioWebhookHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["callId"]
	log := logger.ForCall(callID)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	status := r.PostForm.Get("CallStatus")
	providerCallID := r.PostForm.Get("CallSid")
	if status == "" {
		http.Error(w, "CallStatus is required", http.StatusBadRequest)
		return
	}

	log.Info("Provider status callback",
		zap.String("provider_status", status),
		zap.String("provider_call_id", providerCallID))

	if err := h.service.HandleStatusUpdate(r.Context(), callID, status, providerCallID); err != nil {
		if errors.Is(err, session.ErrCallNotFound) {
			log.Warn("Status callback for unknown call")
		} else {
			log.Error("Failed to apply status callback", zap.Error(err))
		}
	}

	// Twilio retries on non-2xx; the callback is always acknowledged.
	w.WriteHeader(http.StatusNoContent)
}
