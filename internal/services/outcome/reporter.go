package outcome

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/core/event"
	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/ClareAI/astra-outbound-bridge/pkg/pubsub"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reportTimeout = 15 * time.Second

// Publisher sends finished-call outcomes downstream.
type Publisher interface {
	PublishCallOutcome(ctx context.Context, outcome pubsub.CallOutcomeEvent) error
}

// Uploader stores transcript documents and returns their location.
type Uploader interface {
	Upload(ctx context.Context, objectPath string, content io.Reader, contentType string) (string, error)
}

// TranscriptDocument is the archived JSON form of a finished call.
type TranscriptDocument struct {
	Summary    domain.CallSummary       `json:"summary"`
	Notes      []string                 `json:"notes,omitempty"`
	Transcript []domain.TranscriptEntry `json:"transcript"`
}

// Reporter archives transcripts and publishes outcomes for completed calls.
// Either sink may be nil.
type Reporter struct {
	publisher  Publisher
	uploader   Uploader
	instanceID string
	now        func() time.Time
}

func NewReporter(publisher Publisher, uploader Uploader, instanceID string) *Reporter {
	return &Reporter{
		publisher:  publisher,
		uploader:   uploader,
		instanceID: instanceID,
		now:        time.Now,
	}
}

// Enabled reports whether any sink is configured.
func (r *Reporter) Enabled() bool {
	return r.publisher != nil || r.uploader != nil
}

// Subscribe attaches the reporter to CallCompleted on bus.
func (r *Reporter) Subscribe(bus event.EventBus) error {
	return bus.SubscribeWithTimeout(event.CallCompleted, func(e *event.CallEvent) {
		data, ok := e.GetCompletionData()
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		if err := r.Report(ctx, data); err != nil {
			logger.ForCall(e.CallID).Error("Failed to report call outcome", zap.Error(err))
		}
	}, reportTimeout+time.Second)
}

// Report archives the transcript, then publishes the outcome with the
// archive location. A failed upload still publishes.
func (r *Reporter) Report(ctx context.Context, data *event.CompletionEventData) error {
	log := logger.ForCall(data.Summary.CallID)

	var transcriptURL string
	if r.uploader != nil {
		url, err := r.archive(ctx, data)
		if err != nil {
			log.Warn("Failed to archive transcript", zap.Error(err))
		} else {
			transcriptURL = url
			log.Info("Transcript archived", zap.String("url", url))
		}
	}

	if r.publisher == nil {
		return nil
	}
	return r.publisher.PublishCallOutcome(ctx, BuildOutcomeEvent(data, transcriptURL, r.instanceID, r.now()))
}

func (r *Reporter) archive(ctx context.Context, data *event.CompletionEventData) (string, error) {
	doc := TranscriptDocument{
		Summary:    data.Summary,
		Notes:      data.Notes,
		Transcript: data.Transcript,
	}
	if doc.Transcript == nil {
		doc.Transcript = []domain.TranscriptEntry{}
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return r.uploader.Upload(ctx, TranscriptObjectPath(data.Summary), bytes.NewReader(body), "application/json")
}

// TranscriptObjectPath partitions archived transcripts by call start date.
func TranscriptObjectPath(summary domain.CallSummary) string {
	return fmt.Sprintf("transcripts/%s/%s.json", summary.StartedAt.UTC().Format("2006/01/02"), summary.CallID)
}

// BuildOutcomeEvent flattens a completed call into its published form.
func BuildOutcomeEvent(data *event.CompletionEventData, transcriptURL, instanceID string, now time.Time) pubsub.CallOutcomeEvent {
	s := data.Summary
	return pubsub.CallOutcomeEvent{
		ID:                  uuid.New().String(),
		CallID:              s.CallID,
		ProviderCallID:      s.ProviderCallID,
		PersonaID:           s.PersonaID,
		Purpose:             s.Purpose,
		Status:              string(s.Status),
		EndReason:           s.EndReason,
		StartAt:             s.StartedAt,
		EndAt:               s.EndedAt,
		Duration:            int(s.DurationSeconds),
		TurnCount:           len(data.Transcript),
		Notes:               data.Notes,
		HasRelationshipData: s.HasRelationshipData,
		TranscriptURL:       transcriptURL,
		InstanceID:          instanceID,
		CreatedAt:           now,
	}
}
