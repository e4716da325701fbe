package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PubSubConfig struct {
	ProjectID string
	TopicName string
	// NamePrefix namespaces the "name" attribute so subscription filters can
	// separate environments (e.g. "", "beta", "stage").
	NamePrefix string
}

type PubSubService struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	config *PubSubConfig
}

// CallOutcomeEvent is the JSON payload published when a call ends
type CallOutcomeEvent struct {
	ID                  string     `json:"id"`
	CallID              string     `json:"call_id"`
	ProviderCallID      string     `json:"provider_call_id,omitempty"`
	PersonaID           string     `json:"persona_id"`
	Purpose             string     `json:"purpose,omitempty"`
	Status              string     `json:"status"`
	EndReason           string     `json:"end_reason,omitempty"`
	StartAt             time.Time  `json:"start_at"`
	EndAt               *time.Time `json:"end_at,omitempty"`
	Duration            int        `json:"duration"`
	TurnCount           int        `json:"turn_count"`
	Notes               []string   `json:"notes,omitempty"`
	HasRelationshipData bool       `json:"has_relationship_data"`
	TranscriptURL       string     `json:"transcript_url,omitempty"`
	InstanceID          string     `json:"instance_id"`
	CreatedAt           time.Time  `json:"created_at"`
}

func NewPubSubService(ctx context.Context, cfg *PubSubConfig) (*PubSubService, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PubSub project ID is required")
	}
	if cfg.TopicName == "" {
		return nil, fmt.Errorf("PubSub topic name is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create PubSub client: %w", err)
	}

	topic := client.Topic(cfg.TopicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check if topic exists: %w", err)
	}

	if !exists {
		logger.Base().Info("Topic does not exist, creating", zap.String("topic_name", cfg.TopicName))
		topic, err = client.CreateTopic(ctx, cfg.TopicName)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create topic %s: %w", cfg.TopicName, err)
		}
	}

	return &PubSubService{
		client: client,
		topic:  topic,
		config: cfg,
	}, nil
}

// MessageName builds the "name" attribute for a published message.
func MessageName(prefix, taskID string) string {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		return "call:outcome:" + taskID
	}
	return prefix + ":call:outcome:" + taskID
}

// PublishCallOutcome publishes one call outcome and waits for the server ack
func (p *PubSubService) PublishCallOutcome(ctx context.Context, outcome CallOutcomeEvent) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal call outcome event: %w", err)
	}

	taskID := uuid.New().String()
	message := &pubsub.Message{
		Attributes: map[string]string{
			"name":    MessageName(p.config.NamePrefix, taskID),
			"call_id": outcome.CallID,
		},
		Data: data,
	}

	result := p.topic.Publish(ctx, message)
	if _, err := result.Get(ctx); err != nil {
		logger.ForCall(outcome.CallID).Error("Failed to publish call outcome", zap.String("task_id", taskID), zap.Error(err))
		return fmt.Errorf("failed to publish call outcome message: %w", err)
	}

	logger.ForCall(outcome.CallID).Info("Published call outcome",
		zap.String("status", outcome.Status),
		zap.Int("duration", outcome.Duration),
		zap.String("task_id", taskID))
	return nil
}

func (p *PubSubService) Close() error {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
