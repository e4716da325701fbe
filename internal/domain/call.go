package domain

import (
	"strings"
	"time"
)

// CallStatus is the lifecycle status of one outbound call session.
type CallStatus string

const (
	CallStatusInitiating CallStatus = "initiating"
	CallStatusCalling    CallStatus = "calling"
	CallStatusConnecting CallStatus = "connecting"
	CallStatusConnected  CallStatus = "connected"
	CallStatusCompleted  CallStatus = "completed"
)

var callStatusRank = map[CallStatus]int{
	CallStatusInitiating: 0,
	CallStatusCalling:    1,
	CallStatusConnecting: 2,
	CallStatusConnected:  3,
	CallStatusCompleted:  4,
}

// Rank orders statuses along the lifecycle; unknown statuses rank -1.
func (s CallStatus) Rank() int {
	if r, ok := callStatusRank[s]; ok {
		return r
	}
	return -1
}

// IsTerminal reports whether no further transition is possible.
func (s CallStatus) IsTerminal() bool {
	return s == CallStatusCompleted
}

// ProviderStatus is the call status vocabulary reported by the telephony provider.
type ProviderStatus string

const (
	ProviderStatusQueued     ProviderStatus = "queued"
	ProviderStatusInitiated  ProviderStatus = "initiated"
	ProviderStatusRinging    ProviderStatus = "ringing"
	ProviderStatusAnswered   ProviderStatus = "answered"
	ProviderStatusInProgress ProviderStatus = "in-progress"
	ProviderStatusCompleted  ProviderStatus = "completed"
	ProviderStatusFailed     ProviderStatus = "failed"
	ProviderStatusBusy       ProviderStatus = "busy"
	ProviderStatusNoAnswer   ProviderStatus = "no-answer"
	ProviderStatusCanceled   ProviderStatus = "canceled"
)

// NormalizeProviderStatus lowercases and trims a raw provider status string.
func NormalizeProviderStatus(raw string) ProviderStatus {
	return ProviderStatus(strings.ToLower(strings.TrimSpace(raw)))
}

// MapProviderStatus maps a provider status onto a call status. The second
// return value is false for statuses this service does not recognize, which
// callers must treat as non-terminal.
func MapProviderStatus(status ProviderStatus) (CallStatus, bool) {
	switch status {
	case ProviderStatusQueued, ProviderStatusInitiated, ProviderStatusRinging:
		return CallStatusCalling, true
	case ProviderStatusAnswered, ProviderStatusInProgress:
		return CallStatusConnecting, true
	case ProviderStatusCompleted, ProviderStatusFailed, ProviderStatusBusy,
		ProviderStatusNoAnswer, ProviderStatusCanceled:
		return CallStatusCompleted, true
	default:
		return "", false
	}
}

// Speaker roles recorded in a transcript
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// TranscriptEntry is one append-only fragment of the conversation.
type TranscriptEntry struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// VoiceSettings are opaque voice tuning values passed through to the AI engine.
type VoiceSettings struct {
	SpeakingRate float64 `json:"speakingRate,omitempty"`
	Pitch        float64 `json:"pitch,omitempty"`
}

// CallSummary is the read model returned by status queries and listings.
type CallSummary struct {
	CallID              string             `json:"callId"`
	Status              CallStatus         `json:"status"`
	PersonaID           string             `json:"personaId"`
	PersonaName         string             `json:"personaName"`
	VoiceID             string             `json:"voiceId"`
	DestinationNumber   string             `json:"destinationNumber"`
	DestinationName     string             `json:"destinationName,omitempty"`
	Purpose             string             `json:"purpose,omitempty"`
	ProviderCallID      string             `json:"providerCallId,omitempty"`
	StartedAt           time.Time          `json:"startedAt"`
	EndedAt             *time.Time         `json:"endedAt,omitempty"`
	DurationSeconds     float64            `json:"durationSeconds"`
	TranscriptLength    int                `json:"transcriptLength"`
	HasRelationshipData bool               `json:"hasRelationshipData"`
	EndReason           string             `json:"endReason,omitempty"`
	RelationshipFacts   *RelationshipFacts `json:"relationshipFacts,omitempty"`
}
