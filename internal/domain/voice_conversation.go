package domain

import (
	"time"
)

// CallRecord is the persisted snapshot of one finished outbound call
type CallRecord struct {
	ID                string    `json:"id" gorm:"column:id;primaryKey"`
	CallID            string    `json:"call_id" gorm:"column:call_id;uniqueIndex"`
	ProviderCallID    string    `json:"provider_call_id" gorm:"column:provider_call_id;index"`
	PersonaID         string    `json:"persona_id" gorm:"column:persona_id;index"`
	DestinationNumber string    `json:"destination_number" gorm:"column:destination_number"`
	DestinationName   string    `json:"destination_name" gorm:"column:destination_name"`
	Purpose           string    `json:"purpose" gorm:"column:purpose"`
	OwnerContext      JSONB     `json:"owner_context" gorm:"column:owner_context;type:jsonb"`
	RelationshipFacts JSONB     `json:"relationship_facts" gorm:"column:relationship_facts;type:jsonb"`
	EndReason         string    `json:"end_reason" gorm:"column:end_reason"`
	Notes             string    `json:"notes" gorm:"column:notes"`
	StartedAt         time.Time `json:"started_at" gorm:"column:started_at"`
	EndedAt           time.Time `json:"ended_at" gorm:"column:ended_at"`
	DurationSeconds   float64   `json:"duration_seconds" gorm:"column:duration_seconds"`
	InstanceID        string    `json:"instance_id" gorm:"column:instance_id"`
	CreatedAt         time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (CallRecord) TableName() string {
	return "outbound_call_records"
}

// CallTranscriptMessage is one transcript entry of a persisted call
type CallTranscriptMessage struct {
	ID           string    `json:"id" gorm:"column:id;primaryKey"`
	CallRecordID string    `json:"call_record_id" gorm:"column:call_record_id;index"`
	Sequence     int       `json:"sequence" gorm:"column:sequence"`
	Role         string    `json:"role" gorm:"column:role"` // user, assistant
	Content      string    `json:"content" gorm:"column:content"`
	SpokenAt     time.Time `json:"spoken_at" gorm:"column:spoken_at"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
}

func (CallTranscriptMessage) TableName() string {
	return "outbound_call_transcript_messages"
}
