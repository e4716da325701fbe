package call

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
)

var (
	ErrDestinationRequired = errors.New("destination number is required")
	ErrInvalidRequest      = errors.New("invalid call request")
	ErrOriginationFailed   = errors.New("call origination failed")
)

// InitiateCallRequest is the body of a call-initiation request.
type InitiateCallRequest struct {
	DestinationNumber string                    `json:"destinationNumber"`
	DestinationName   string                    `json:"destinationName,omitempty"`
	Purpose           string                    `json:"purpose,omitempty"`
	PersonaID         string                    `json:"personaId,omitempty"`
	OwnerContext      domain.OwnerContext       `json:"ownerContext"`
	RelationshipFacts *domain.RelationshipFacts `json:"relationshipFacts,omitempty"`
	VoiceSettings     domain.VoiceSettings      `json:"voiceSettings,omitempty"`
}

// Validate checks the request before any provider call is made.
func (r *InitiateCallRequest) Validate() error {
	if strings.TrimSpace(r.DestinationNumber) == "" {
		return ErrDestinationRequired
	}
	if err := r.RelationshipFacts.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.VoiceSettings.SpeakingRate < 0 {
		return fmt.Errorf("%w: speaking rate must not be negative", ErrInvalidRequest)
	}
	return nil
}

// InitiateCallResult is returned for both successful and failed initiations.
type InitiateCallResult struct {
	Success        bool   `json:"success"`
	CallID         string `json:"callId,omitempty"`
	ProviderCallID string `json:"providerCallId,omitempty"`
	PersonaName    string `json:"personaName,omitempty"`
	VoiceID        string `json:"voiceId,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Stream connection parameters understood when synthesizing a session for
// a call placed elsewhere.
const (
	ParamDestinationNumber = "destinationNumber"
	ParamDestinationName   = "destinationName"
	ParamPurpose           = "purpose"
	ParamOwnerName         = "ownerName"
	ParamOwnerCompany      = "ownerCompany"
)

// PersonaIDFromCallID extracts the persona prefix of a
// "<personaId>_<unixMillis>_<random>" call id.
func PersonaIDFromCallID(callID string) string {
	if i := strings.Index(callID, "_"); i > 0 {
		return callID[:i]
	}
	return ""
}
