package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
	"github.com/ClareAI/astra-outbound-bridge/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRedis is an in-process stand-in for redis.RedisServiceInterface.
type memoryRedis struct {
	mu       sync.Mutex
	values   map[string]string
	ttls     map[string]time.Duration
	handlers map[string][]func(string)
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{
		values:   make(map[string]string),
		ttls:     make(map[string]time.Duration),
		handlers: make(map[string][]func(string)),
	}
}

func (m *memoryRedis) GenerateKey(keyType redis.KeyType, identifier string) string {
	return string(keyType) + ":" + identifier
}

func (m *memoryRedis) GetValue(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", redis.ErrKeyNotExist
	}
	return v, nil
}

func (m *memoryRedis) SetValue(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryRedis) DelValue(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memoryRedis) Publish(_ context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	m.mu.Lock()
	handlers := append([]func(string){}, m.handlers[channel]...)
	m.mu.Unlock()
	for _, h := range handlers {
		h(string(data))
	}
	return nil
}

func (m *memoryRedis) Subscribe(_ context.Context, channel string, handler func(string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[channel] = append(m.handlers[channel], handler)
	return nil
}

func TestManagerRegisterLookupUnregister(t *testing.T) {
	ctx := context.Background()
	rdb := newMemoryRedis()
	m := NewManager(rdb, "pod-a")

	summary := domain.CallSummary{CallID: "support_1_x", Status: domain.CallStatusCalling, PersonaID: "support"}
	require.NoError(t, m.Register(ctx, summary))
	assert.Equal(t, SessionTTL, rdb.ttls[rdb.GenerateKey(redis.CALL_SESSION, "support_1_x")])

	info, err := m.Lookup(ctx, "support_1_x")
	require.NoError(t, err)
	assert.Equal(t, "pod-a", info.PodID)
	assert.Equal(t, domain.CallStatusCalling, info.Summary.Status)

	require.NoError(t, m.Unregister(ctx, "support_1_x"))
	_, err = m.Lookup(ctx, "support_1_x")
	assert.ErrorIs(t, err, ErrCallNotFound)
}

func TestManagerCleanupBroadcastSkipsOwnPod(t *testing.T) {
	ctx := context.Background()
	rdb := newMemoryRedis()
	podA := NewManager(rdb, "pod-a")
	podB := NewManager(rdb, "pod-b")

	var gotA, gotB []string
	require.NoError(t, podA.SubscribeToCleanup(ctx, func(id string) { gotA = append(gotA, id) }))
	require.NoError(t, podB.SubscribeToCleanup(ctx, func(id string) { gotB = append(gotB, id) }))

	require.NoError(t, podA.NotifyCleanup(ctx, "call-1"))

	assert.Empty(t, gotA)
	assert.Equal(t, []string{"call-1"}, gotB)
}
