package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/ClareAI/astra-outbound-bridge/pkg/redis"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TaskChannel = "astra:outbound:tasks"

// stamp fills the id and creation time of a task about to be published.
func stamp(task *Task, origin string) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.Origin == "" {
		task.Origin = origin
	}
}

func validate(task Task) error {
	if task.Type == "" {
		return fmt.Errorf("task type is required")
	}
	if task.CallID == "" {
		return fmt.Errorf("task call id is required")
	}
	return nil
}

// RedisBus fans call tasks out to every pod through Redis Pub/Sub.
type RedisBus struct {
	redisSvc redis.RedisServiceInterface
	channel  string
	origin   string
}

// NewRedisBus creates a task bus on TaskChannel; origin tags published tasks.
func NewRedisBus(redisSvc redis.RedisServiceInterface, origin string) *RedisBus {
	return &RedisBus{redisSvc: redisSvc, channel: TaskChannel, origin: origin}
}

func (b *RedisBus) Publish(ctx context.Context, task Task) error {
	if err := validate(task); err != nil {
		return err
	}
	stamp(&task, b.origin)
	logger.ForCall(task.CallID).Debug("Publishing task",
		zap.String("type", string(task.Type)),
		zap.String("task_id", task.ID))
	if err := b.redisSvc.Publish(ctx, b.channel, task); err != nil {
		return fmt.Errorf("failed to publish task %s: %w", task.ID, err)
	}
	return nil
}

// Subscribe delivers decoded tasks to handler until ctx is done. Malformed
// payloads are logged and dropped.
func (b *RedisBus) Subscribe(ctx context.Context, handler func(Task)) error {
	logger.Base().Info("Subscribing to call tasks", zap.String("channel", b.channel))
	return b.redisSvc.Subscribe(ctx, b.channel, func(payload string) {
		var task Task
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			logger.Base().Error("Failed to unmarshal task payload", zap.Error(err))
			return
		}
		if err := validate(task); err != nil {
			logger.Base().Warn("Dropping invalid task", zap.String("task_id", task.ID), zap.Error(err))
			return
		}
		handler(task)
	})
}

// LocalBus delivers tasks in-process when Redis is not configured.
type LocalBus struct {
	mu       sync.RWMutex
	handlers []func(Task)
	origin   string
}

func NewLocalBus(origin string) *LocalBus {
	return &LocalBus{origin: origin}
}

func (b *LocalBus) Publish(_ context.Context, task Task) error {
	if err := validate(task); err != nil {
		return err
	}
	stamp(&task, b.origin)

	b.mu.RLock()
	handlers := append([]func(Task){}, b.handlers...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(task)
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, handler func(Task)) error {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
	return nil
}
