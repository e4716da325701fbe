package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/ClareAI/astra-outbound-bridge/pkg/redis"
	"go.uber.org/zap"
)

const (
	CleanupChannel = "astra:outbound:call:cleanup"
	SessionTTL     = 1 * time.Hour
)

// SessionInfo is the cross-instance view of one call.
type SessionInfo struct {
	PodID   string             `json:"podId"`
	Summary domain.CallSummary `json:"summary"`
}

// CleanupMessage is the payload for cleanup broadcast
type CleanupMessage struct {
	CallID string `json:"callId"`
	PodID  string `json:"podId"`
}

// Manager mirrors local call sessions into redis so any instance can answer
// status queries and request teardown of calls owned by another instance.
type Manager struct {
	redisSvc redis.RedisServiceInterface
	podID    string
}

func NewManager(redisSvc redis.RedisServiceInterface, podID string) *Manager {
	return &Manager{
		redisSvc: redisSvc,
		podID:    podID,
	}
}

func (m *Manager) PodID() string {
	return m.podID
}

func (m *Manager) key(callID string) string {
	return m.redisSvc.GenerateKey(redis.CALL_SESSION, callID)
}

// Register writes or refreshes the call summary.
func (m *Manager) Register(ctx context.Context, summary domain.CallSummary) error {
	data, err := json.Marshal(SessionInfo{PodID: m.podID, Summary: summary})
	if err != nil {
		return fmt.Errorf("failed to marshal session info: %w", err)
	}
	if err := m.redisSvc.SetValue(ctx, m.key(summary.CallID), string(data), SessionTTL); err != nil {
		return fmt.Errorf("failed to register call %s: %w", summary.CallID, err)
	}
	logger.ForCall(summary.CallID).Debug("call registered in redis",
		zap.String("pod_id", m.podID),
		zap.String("status", string(summary.Status)))
	return nil
}

// Lookup returns the registered info; ErrCallNotFound when absent.
func (m *Manager) Lookup(ctx context.Context, callID string) (*SessionInfo, error) {
	raw, err := m.redisSvc.GetValue(ctx, m.key(callID))
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotExist) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("failed to look up call %s: %w", callID, err)
	}
	var info SessionInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, fmt.Errorf("failed to decode session info: %w", err)
	}
	return &info, nil
}

func (m *Manager) Unregister(ctx context.Context, callID string) error {
	return m.redisSvc.DelValue(ctx, m.key(callID))
}

// NotifyCleanup broadcasts a teardown request to all pods
func (m *Manager) NotifyCleanup(ctx context.Context, callID string) error {
	logger.ForCall(callID).Info("broadcasting cleanup request")
	return m.redisSvc.Publish(ctx, CleanupChannel, CleanupMessage{CallID: callID, PodID: m.podID})
}

// SubscribeToCleanup listens for cleanup broadcasts from other pods.
func (m *Manager) SubscribeToCleanup(ctx context.Context, handler func(callID string)) error {
	return m.redisSvc.Subscribe(ctx, CleanupChannel, func(payload string) {
		var msg CleanupMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			logger.Base().Error("failed to unmarshal cleanup message", zap.Error(err))
			return
		}
		if msg.PodID == m.podID {
			return
		}
		handler(msg.CallID)
	})
}
