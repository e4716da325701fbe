package twilio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// StatusCallbackEvents are the lifecycle events Twilio reports to the status webhook.
var StatusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

var ErrDisabled = errors.New("twilio credentials not configured")

// CallPlacer places and controls outbound calls on the telephony provider.
type CallPlacer interface {
	PlaceCall(to, answerURL, statusURL string) (string, error)
	EndCall(providerCallID string) error
	SendMessage(to, body string) (string, error)
}

// CallService wraps the Twilio REST client for the outbound bridge.
type CallService struct {
	client     *twilio.RestClient
	fromNumber string
	enabled    bool
}

// NewCallService creates a call service. Missing credentials yield a disabled
// service whose operations return ErrDisabled.
func NewCallService(accountSID, authToken, fromNumber string) *CallService {
	if accountSID == "" || authToken == "" {
		logger.Base().Warn("Twilio credentials not provided, outbound calling disabled")
		return &CallService{enabled: false}
	}
	return &CallService{
		client:     twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken}),
		fromNumber: fromNumber,
		enabled:    true,
	}
}

func (s *CallService) IsEnabled() bool {
	return s.enabled
}

// PlaceCall originates an outbound call and returns the provider call sid.
func (s *CallService) PlaceCall(to, answerURL, statusURL string) (string, error) {
	if !s.enabled {
		return "", ErrDisabled
	}

	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(s.fromNumber)
	params.SetUrl(answerURL)
	params.SetMethod("POST")
	params.SetStatusCallback(statusURL)
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent(StatusCallbackEvents)

	resp, err := s.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("twilio create call failed: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", fmt.Errorf("twilio create call returned no sid")
	}

	logger.Base().Info("Twilio call created",
		zap.String("sid", *resp.Sid),
		zap.String("to", maskNumber(to)))
	return *resp.Sid, nil
}

// EndCall forces the provider leg to hang up.
func (s *CallService) EndCall(providerCallID string) error {
	if !s.enabled {
		return ErrDisabled
	}
	if providerCallID == "" {
		return fmt.Errorf("provider call id is required")
	}

	params := &api.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := s.client.Api.UpdateCall(providerCallID, params); err != nil {
		return fmt.Errorf("twilio hang up failed: %w", err)
	}
	logger.Base().Info("Twilio call hung up", zap.String("sid", providerCallID))
	return nil
}

// SendMessage sends an SMS from the bridge number and returns its sid.
func (s *CallService) SendMessage(to, body string) (string, error) {
	if !s.enabled {
		return "", ErrDisabled
	}

	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.fromNumber)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio send message failed: %w", err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	return sid, nil
}

// maskNumber keeps the last four digits for logging.
func maskNumber(number string) string {
	n := strings.TrimSpace(number)
	if len(n) <= 4 {
		return n
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}
