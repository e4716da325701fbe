package session

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// CallSession is the full state of one in-flight call. Identity fields are
// set at creation and never change; everything else is guarded by mu.
type CallSession struct {
	ID                string
	PersonaID         string
	PersonaName       string
	VoiceID           string
	Voice             domain.VoiceSettings
	DestinationNumber string
	DestinationName   string
	Purpose           string
	Owner             domain.OwnerContext
	Relationship      *domain.RelationshipFacts
	Instructions      string
	Greeting          string
	StartedAt         time.Time

	mu             sync.Mutex
	status         domain.CallStatus
	providerCallID string
	streamSID      string
	transcript     []domain.TranscriptEntry
	notes          []string
	mediaConn      io.Closer
	aiConn         io.Closer
	streamStarted  bool
	aiReady        bool
	greetingSent   bool
	endedAt        time.Time
	duration       time.Duration
	endReason      string
}

// NewCallSession creates a session in the initiating state.
func NewCallSession(id string, startedAt time.Time) *CallSession {
	return &CallSession{
		ID:        id,
		StartedAt: startedAt,
		status:    domain.CallStatusInitiating,
	}
}

func (s *CallSession) Status() domain.CallStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// AdvanceStatus moves the session forward along the lifecycle. Regressions,
// repeats and any move out of completed are ignored and return false.
func (s *CallSession) AdvanceStatus(to domain.CallStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked(to)
}

func (s *CallSession) advanceLocked(to domain.CallStatus) bool {
	if s.status.IsTerminal() || to.Rank() <= s.status.Rank() {
		return false
	}
	if to == domain.CallStatusConnected && (s.mediaConn == nil || s.aiConn == nil) {
		return false
	}
	s.status = to
	return true
}

func (s *CallSession) SetProviderCallID(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.providerCallID = id
	s.mu.Unlock()
}

func (s *CallSession) ProviderCallID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providerCallID
}

func (s *CallSession) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

// AttachMedia records the telephony media socket and enters connecting.
func (s *CallSession) AttachMedia(conn io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return false
	}
	s.mediaConn = conn
	s.advanceLocked(domain.CallStatusConnecting)
	return true
}

// AttachAI records the AI socket. If the stream already started, the call
// becomes connected now that both sockets are present.
func (s *CallSession) AttachAI(conn io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return false
	}
	s.aiConn = conn
	if s.streamStarted {
		s.advanceLocked(domain.CallStatusConnected)
	}
	return true
}

// MarkStreamStarted records the telephony stream id.
func (s *CallSession) MarkStreamStarted(streamSID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return false
	}
	s.streamSID = streamSID
	s.streamStarted = true
	s.advanceLocked(domain.CallStatusConnected)
	return true
}

// MarkAIReady records that the AI engine acknowledged the session configuration.
func (s *CallSession) MarkAIReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return false
	}
	s.aiReady = true
	return true
}

func (s *CallSession) AIReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aiReady
}

// TryClaimGreeting is the single check-and-set guarding the greeting. It
// returns true for exactly one caller, and only once both the stream has
// started and the AI session is configured.
func (s *CallSession) TryClaimGreeting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() || s.greetingSent || !s.streamStarted || !s.aiReady {
		return false
	}
	s.greetingSent = true
	return true
}

func (s *CallSession) GreetingSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.greetingSent
}

// ReadyForAudio reports whether frames may be relayed in either direction.
func (s *CallSession) ReadyForAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamStarted && s.aiReady && !s.status.IsTerminal()
}

// AppendTranscript adds one entry. Nothing is recorded after completion.
func (s *CallSession) AppendTranscript(role, text string, at time.Time) bool {
	if text == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return false
	}
	s.transcript = append(s.transcript, domain.TranscriptEntry{Role: role, Text: text, Timestamp: at})
	return true
}

func (s *CallSession) Transcript() []domain.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *CallSession) AddNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	s.mu.Lock()
	s.notes = append(s.notes, note)
	s.mu.Unlock()
}

func (s *CallSession) Notes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notes...)
}

// Completion is the outcome of the first Complete call.
type Completion struct {
	EndedAt  time.Time
	Duration time.Duration
	// AIConn is detached from the session and must be closed by the caller.
	AIConn io.Closer
}

// Complete moves the session to completed. Only the first call computes the
// duration and returns ok; later calls are no-ops.
func (s *CallSession) Complete(reason string, now time.Time) (Completion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return Completion{}, false
	}
	s.status = domain.CallStatusCompleted
	s.endedAt = now
	s.duration = now.Sub(s.StartedAt)
	s.endReason = reason

	ai := s.aiConn
	s.aiConn = nil
	s.mediaConn = nil

	return Completion{EndedAt: s.endedAt, Duration: s.duration, AIConn: ai}, true
}

func (s *CallSession) EndReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endReason
}

// Summary returns a point-in-time copy of the session for status queries.
func (s *CallSession) Summary() domain.CallSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := domain.CallSummary{
		CallID:              s.ID,
		Status:              s.status,
		PersonaID:           s.PersonaID,
		PersonaName:         s.PersonaName,
		VoiceID:             s.VoiceID,
		DestinationNumber:   s.DestinationNumber,
		DestinationName:     s.DestinationName,
		Purpose:             s.Purpose,
		ProviderCallID:      s.providerCallID,
		StartedAt:           s.StartedAt,
		TranscriptLength:    len(s.transcript),
		HasRelationshipData: s.Relationship.HasAny(),
		EndReason:           s.endReason,
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		summary.EndedAt = &ended
		summary.DurationSeconds = s.duration.Seconds()
	}
	if s.Relationship != nil {
		var facts domain.RelationshipFacts
		if err := copier.CopyWithOption(&facts, s.Relationship, copier.Option{DeepCopy: true}); err != nil {
			logger.ForCall(s.ID).Warn("failed to copy relationship facts", zap.Error(err))
		} else {
			summary.RelationshipFacts = &facts
		}
	}
	return summary
}
