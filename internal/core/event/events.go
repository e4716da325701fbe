package event

import (
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
)

// EventType represents the type of event
type EventType string

// Call lifecycle events
const (
	CallInitiated     EventType = "call.initiated"
	CallStatusChanged EventType = "call.status_changed"
	CallCompleted     EventType = "call.completed"

	// Media and AI readiness
	StreamStarted EventType = "media.stream_started"
	AIReady       EventType = "ai.session_ready"
	GreetingSent  EventType = "ai.greeting_sent"

	// Mid-call tool invocations
	ToolExecuted EventType = "ai.tool_executed"
)

// CallEvent is one lifecycle notification for a call.
type CallEvent struct {
	Type      EventType   `json:"type"`
	CallID    string      `json:"call_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     error       `json:"-"`
}

// StatusEventData accompanies CallInitiated, CallStatusChanged and CallCompleted.
type StatusEventData struct {
	Summary        domain.CallSummary `json:"summary"`
	ProviderStatus string             `json:"provider_status,omitempty"`
}

// ToolEventData accompanies ToolExecuted.
type ToolEventData struct {
	ToolName string `json:"tool_name"`
	Success  bool   `json:"success"`
}

// CompletionEventData accompanies CallCompleted with the final transcript.
type CompletionEventData struct {
	Summary    domain.CallSummary       `json:"summary"`
	Transcript []domain.TranscriptEntry `json:"transcript"`
	Notes      []string                 `json:"notes,omitempty"`
}

// NewCallEvent creates a new call event
func NewCallEvent(eventType EventType, callID string) *CallEvent {
	return &CallEvent{
		Type:      eventType,
		CallID:    callID,
		Timestamp: time.Now(),
	}
}

// WithData adds data to the event
func (e *CallEvent) WithData(data interface{}) *CallEvent {
	e.Data = data
	return e
}

// WithError adds error to the event
func (e *CallEvent) WithError(err error) *CallEvent {
	e.Error = err
	return e
}

func (e *CallEvent) IsError() bool {
	return e.Error != nil
}

// GetStatusData returns status event data if available
func (e *CallEvent) GetStatusData() (*StatusEventData, bool) {
	data, ok := e.Data.(*StatusEventData)
	return data, ok
}

// GetCompletionData returns completion event data if available
func (e *CallEvent) GetCompletionData() (*CompletionEventData, bool) {
	data, ok := e.Data.(*CompletionEventData)
	return data, ok
}
