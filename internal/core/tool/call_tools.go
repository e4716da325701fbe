package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/core/session"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/task"
)

const maxTextMessageLength = 480

var (
	ErrMessagingUnavailable = errors.New("text messaging is not available")
	ErrFollowUpUnavailable  = errors.New("follow-up scheduling is not available")
)

// FollowUpPublisher queues follow-up tasks.
type FollowUpPublisher interface {
	Publish(ctx context.Context, t task.Task) error
}

// ExecuteSendTextMessage texts the callee at the number being called.
func (m *ToolManager) ExecuteSendTextMessage(_ context.Context, cs *session.CallSession, argumentsJSON string) (string, error) {
	var args struct {
		Message string `json:"message"`
	}
	if err := parseArgs(argumentsJSON, &args); err != nil {
		return "", err
	}
	body := strings.TrimSpace(args.Message)
	if body == "" {
		return "", fmt.Errorf("message is required")
	}
	if r := []rune(body); len(r) > maxTextMessageLength {
		body = string(r[:maxTextMessageLength])
	}
	if m.messenger == nil {
		return "", ErrMessagingUnavailable
	}

	sid, err := m.messenger.SendMessage(cs.DestinationNumber, body)
	if err != nil {
		return "", fmt.Errorf("failed to send text message: %w", err)
	}
	cs.AddNote("Sent text message: " + body)
	return success(map[string]interface{}{"message_id": sid, "status": "sent"}), nil
}

// ExecuteScheduleFollowUp queues a callback request.
func (m *ToolManager) ExecuteScheduleFollowUp(ctx context.Context, cs *session.CallSession, argumentsJSON string) (string, error) {
	var args struct {
		When  string `json:"when"`
		Topic string `json:"topic"`
	}
	if err := parseArgs(argumentsJSON, &args); err != nil {
		return "", err
	}
	when := strings.TrimSpace(args.When)
	topic := strings.TrimSpace(args.Topic)
	if when == "" {
		return "", fmt.Errorf("when is required")
	}
	if topic == "" {
		topic = cs.Purpose
	}
	if m.followUps == nil {
		return "", ErrFollowUpUnavailable
	}

	payload, err := json.Marshal(task.FollowUp{
		CallID:            cs.ID,
		PersonaID:         cs.PersonaID,
		DestinationNumber: cs.DestinationNumber,
		DestinationName:   cs.DestinationName,
		When:              when,
		Topic:             topic,
		RequestedAt:       time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode follow-up: %w", err)
	}
	if err := m.followUps.Publish(ctx, task.Task{Type: task.TaskTypeFollowUp, CallID: cs.ID, Payload: payload}); err != nil {
		return "", fmt.Errorf("failed to schedule follow-up: %w", err)
	}

	cs.AddNote(fmt.Sprintf("Follow-up requested %s: %s", when, topic))
	return success(map[string]interface{}{"when": when, "topic": topic, "status": "scheduled"}), nil
}

// ExecuteRecordNote appends a note to the call.
func (m *ToolManager) ExecuteRecordNote(_ context.Context, cs *session.CallSession, argumentsJSON string) (string, error) {
	var args struct {
		Note string `json:"note"`
	}
	if err := parseArgs(argumentsJSON, &args); err != nil {
		return "", err
	}
	note := strings.TrimSpace(args.Note)
	if note == "" {
		return "", fmt.Errorf("note is required")
	}
	cs.AddNote(note)
	return success(map[string]interface{}{"status": "recorded"}), nil
}

// ExecuteLookupRelationshipData returns the stored facts, optionally narrowed to one field.
func (m *ToolManager) ExecuteLookupRelationshipData(_ context.Context, cs *session.CallSession, argumentsJSON string) (string, error) {
	var args struct {
		Field string `json:"field"`
	}
	if err := parseArgs(argumentsJSON, &args); err != nil {
		return "", err
	}

	facts := cs.Relationship.Facts()
	if len(facts) == 0 {
		return success(map[string]interface{}{"found": false, "message": "No stored information about this person."}), nil
	}

	wanted := normalizeField(args.Field)
	data := make(map[string]string)
	for _, f := range facts {
		if wanted == "" || strings.HasPrefix(normalizeField(f.Label), wanted) {
			data[f.Label] = f.Value
		}
	}
	if len(data) == 0 {
		return success(map[string]interface{}{"found": false, "message": fmt.Sprintf("Nothing stored for %q.", args.Field)}), nil
	}
	return success(map[string]interface{}{"found": true, "data": data}), nil
}

func normalizeField(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}), " ")
}
