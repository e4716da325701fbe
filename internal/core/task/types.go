package task

import (
	"context"
	"time"
)

// TaskType defines the type of asynchronous task
type TaskType string

const (
	TaskTypeFollowUp TaskType = "follow_up" // Callback requested by the callee mid-call
)

// Task is an asynchronous unit of work raised during a call.
type Task struct {
	ID        string    `json:"id"`
	Type      TaskType  `json:"type"`
	CallID    string    `json:"call_id"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	// Origin is the instance that raised the task.
	Origin string `json:"origin,omitempty"`
}

// FollowUp is the payload of a TaskTypeFollowUp task.
type FollowUp struct {
	CallID            string    `json:"call_id"`
	PersonaID         string    `json:"persona_id"`
	DestinationNumber string    `json:"destination_number"`
	DestinationName   string    `json:"destination_name,omitempty"`
	When              string    `json:"when"`
	Topic             string    `json:"topic"`
	RequestedAt       time.Time `json:"requested_at"`
}

// Bus defines the interface for the task bus
type Bus interface {
	Publish(ctx context.Context, task Task) error
	Subscribe(ctx context.Context, handler func(Task)) error
}
