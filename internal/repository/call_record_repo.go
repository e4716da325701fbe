package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CallRecordRepository persists finished calls.
type CallRecordRepository interface {
	SaveCall(ctx context.Context, record *domain.CallRecord, transcript []*domain.CallTranscriptMessage) error
	GetByCallID(ctx context.Context, callID string) (*domain.CallRecord, error)
}

// GormCallRecordRepository is the postgres implementation of CallRecordRepository.
type GormCallRecordRepository struct {
	db *gorm.DB
}

func NewCallRecordRepository(db *gorm.DB) *GormCallRecordRepository {
	return &GormCallRecordRepository{db: db}
}

// SaveCall upserts the record by call id and replaces its transcript in one transaction.
func (r *GormCallRecordRepository) SaveCall(ctx context.Context, record *domain.CallRecord, transcript []*domain.CallTranscriptMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "call_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"provider_call_id", "end_reason", "notes", "ended_at", "duration_seconds", "updated_at"}),
		}).Create(record).Error; err != nil {
			return fmt.Errorf("failed to save call record: %w", err)
		}

		var stored domain.CallRecord
		if err := tx.Where("call_id = ?", record.CallID).First(&stored).Error; err != nil {
			return fmt.Errorf("failed to reload call record: %w", err)
		}

		if err := tx.Where("call_record_id = ?", stored.ID).Delete(&domain.CallTranscriptMessage{}).Error; err != nil {
			return fmt.Errorf("failed to clear transcript: %w", err)
		}
		if len(transcript) == 0 {
			return nil
		}
		for _, msg := range transcript {
			msg.CallRecordID = stored.ID
		}
		if err := tx.CreateInBatches(transcript, 100).Error; err != nil {
			return fmt.Errorf("failed to save transcript: %w", err)
		}
		return nil
	})
}

// GetByCallID returns nil, nil when the call was never persisted.
func (r *GormCallRecordRepository) GetByCallID(ctx context.Context, callID string) (*domain.CallRecord, error) {
	var record domain.CallRecord
	if err := r.db.WithContext(ctx).Where("call_id = ?", callID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}
	return &record, nil
}

// BuildCallRecord maps a finished call onto its persisted form.
func BuildCallRecord(summary domain.CallSummary, owner domain.OwnerContext, notes []string, instanceID string, now time.Time) (*domain.CallRecord, error) {
	ownerJSON, err := domain.ToJSONB(owner)
	if err != nil {
		return nil, fmt.Errorf("failed to encode owner context: %w", err)
	}
	factsJSON, err := domain.ToJSONB(summary.RelationshipFacts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode relationship facts: %w", err)
	}

	record := &domain.CallRecord{
		ID:                uuid.New().String(),
		CallID:            summary.CallID,
		ProviderCallID:    summary.ProviderCallID,
		PersonaID:         summary.PersonaID,
		DestinationNumber: summary.DestinationNumber,
		DestinationName:   summary.DestinationName,
		Purpose:           summary.Purpose,
		OwnerContext:      ownerJSON,
		RelationshipFacts: factsJSON,
		EndReason:         summary.EndReason,
		Notes:             strings.Join(notes, "\n"),
		StartedAt:         summary.StartedAt,
		DurationSeconds:   summary.DurationSeconds,
		InstanceID:        instanceID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if summary.EndedAt != nil {
		record.EndedAt = *summary.EndedAt
	}
	return record, nil
}

// BuildTranscript maps transcript entries to rows in spoken order.
func BuildTranscript(entries []domain.TranscriptEntry, now time.Time) []*domain.CallTranscriptMessage {
	out := make([]*domain.CallTranscriptMessage, 0, len(entries))
	for i, e := range entries {
		out = append(out, &domain.CallTranscriptMessage{
			ID:        uuid.New().String(),
			Sequence:  i,
			Role:      e.Role,
			Content:   e.Text,
			SpokenAt:  e.Timestamp,
			CreatedAt: now,
		})
	}
	return out
}
