package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"go.uber.org/zap"
)

// EventHandler represents a function that handles events
type EventHandler func(event *CallEvent)

// EventMiddleware wraps event handlers
type EventMiddleware func(next EventHandler) EventHandler

// EventBus fans call lifecycle events out to in-process subscribers.
type EventBus interface {
	Publish(eventType EventType, callID string, data interface{}) error
	PublishEvent(event *CallEvent) error
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeWithTimeout(eventType EventType, handler EventHandler, timeout time.Duration) error
	Use(middleware EventMiddleware)
	Close() error
	GetStats() BusStats
}

// BusStats contains statistics about the event bus
type BusStats struct {
	TotalEvents     int64            `json:"total_events"`
	EventsByType    map[string]int64 `json:"events_by_type"`
	SubscriberCount map[string]int   `json:"subscriber_count"`
}

// DefaultEventBus dispatches every handler on its own goroutine.
type DefaultEventBus struct {
	subscribers map[EventType][]EventHandler
	middleware  []EventMiddleware
	mutex       sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	stats       BusStats
	statsMutex  sync.RWMutex
	wg          sync.WaitGroup
}

// NewEventBus creates a new event bus instance
func NewEventBus() *DefaultEventBus {
	ctx, cancel := context.WithCancel(context.Background())

	return &DefaultEventBus{
		subscribers: make(map[EventType][]EventHandler),
		ctx:         ctx,
		cancel:      cancel,
		stats: BusStats{
			EventsByType:    make(map[string]int64),
			SubscriberCount: make(map[string]int),
		},
	}
}

// Publish publishes an event with the given type and data
func (b *DefaultEventBus) Publish(eventType EventType, callID string, data interface{}) error {
	return b.PublishEvent(NewCallEvent(eventType, callID).WithData(data))
}

// PublishEvent publishes a complete event
func (b *DefaultEventBus) PublishEvent(event *CallEvent) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is closed")
	default:
	}

	b.mutex.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	middleware := append([]EventMiddleware(nil), b.middleware...)
	b.mutex.RUnlock()

	b.updateStats(event.Type)

	if len(handlers) == 0 {
		logger.Base().Debug("No subscribers for event type", zap.String("type", string(event.Type)))
		return nil
	}

	for _, handler := range handlers {
		finalHandler := handler
		for i := len(middleware) - 1; i >= 0; i-- {
			finalHandler = middleware[i](finalHandler)
		}

		b.wg.Add(1)
		go func(h EventHandler) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Base().Error("Event handler panic", zap.String("type", string(event.Type)), zap.Any("panic", r))
				}
			}()
			h(event)
		}(finalHandler)
	}

	return nil
}

// Subscribe subscribes to events of a specific type
func (b *DefaultEventBus) Subscribe(eventType EventType, handler EventHandler) error {
	return b.SubscribeWithTimeout(eventType, handler, 0)
}

// SubscribeWithTimeout subscribes to events; the publisher stops waiting on a
// handler after timeout, though the handler itself keeps running.
func (b *DefaultEventBus) SubscribeWithTimeout(eventType EventType, handler EventHandler, timeout time.Duration) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is closed")
	default:
	}

	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	finalHandler := handler
	if timeout > 0 {
		finalHandler = b.withTimeout(handler, timeout)
	}

	b.mutex.Lock()
	b.subscribers[eventType] = append(b.subscribers[eventType], finalHandler)
	b.mutex.Unlock()

	b.statsMutex.Lock()
	b.stats.SubscriberCount[string(eventType)]++
	b.statsMutex.Unlock()

	logger.Base().Debug("Subscribed to event type", zap.String("event_type", string(eventType)))
	return nil
}

// Use adds middleware to the event bus
func (b *DefaultEventBus) Use(middleware EventMiddleware) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.middleware = append(b.middleware, middleware)
}

// Wait blocks until every dispatched handler has returned.
func (b *DefaultEventBus) Wait() {
	b.wg.Wait()
}

// Close stops accepting events and waits for in-flight handlers.
func (b *DefaultEventBus) Close() error {
	b.cancel()

	b.mutex.Lock()
	b.subscribers = make(map[EventType][]EventHandler)
	b.middleware = nil
	b.mutex.Unlock()

	b.wg.Wait()
	logger.Base().Info("Event bus closed")
	return nil
}

// GetStats returns current bus statistics
func (b *DefaultEventBus) GetStats() BusStats {
	b.statsMutex.RLock()
	defer b.statsMutex.RUnlock()

	stats := BusStats{
		TotalEvents:     b.stats.TotalEvents,
		EventsByType:    make(map[string]int64, len(b.stats.EventsByType)),
		SubscriberCount: make(map[string]int, len(b.stats.SubscriberCount)),
	}
	for k, v := range b.stats.EventsByType {
		stats.EventsByType[k] = v
	}
	for k, v := range b.stats.SubscriberCount {
		stats.SubscriberCount[k] = v
	}
	return stats
}

func (b *DefaultEventBus) withTimeout(handler EventHandler, timeout time.Duration) EventHandler {
	return func(event *CallEvent) {
		done := make(chan struct{})

		go func() {
			defer close(done)
			handler(event)
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			logger.Base().Warn("Event handler timeout", zap.String("type", string(event.Type)), zap.Duration("timeout", timeout))
		case <-b.ctx.Done():
		}
	}
}

func (b *DefaultEventBus) updateStats(eventType EventType) {
	b.statsMutex.Lock()
	defer b.statsMutex.Unlock()
	b.stats.TotalEvents++
	b.stats.EventsByType[string(eventType)]++
}
