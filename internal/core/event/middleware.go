package event

import (
	"fmt"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"go.uber.org/zap"
)

// LoggingMiddleware logs handler start, failure and duration.
func LoggingMiddleware(next EventHandler) EventHandler {
	return func(event *CallEvent) {
		start := time.Now()
		log := logger.ForCall(event.CallID)

		log.Debug("Processing event", zap.String("type", string(event.Type)))
		defer func() {
			if event.IsError() {
				log.Error("Event handler failed", zap.String("type", string(event.Type)), zap.Error(event.Error))
				return
			}
			log.Debug("Event handler completed", zap.String("type", string(event.Type)), zap.Duration("duration", time.Since(start)))
		}()

		next(event)
	}
}

// RecoveryMiddleware keeps a panicking handler from taking the bus down.
func RecoveryMiddleware(next EventHandler) EventHandler {
	return func(event *CallEvent) {
		defer func() {
			if r := recover(); r != nil {
				logger.ForCall(event.CallID).Error("Panic in event handler",
					zap.String("type", string(event.Type)),
					zap.Error(fmt.Errorf("handler panic: %v", r)))
			}
		}()

		next(event)
	}
}

// ValidationMiddleware drops events that carry no call id.
func ValidationMiddleware(next EventHandler) EventHandler {
	return func(event *CallEvent) {
		if event == nil {
			logger.Base().Error("Received nil event")
			return
		}
		if event.Type == "" {
			logger.Base().Error("Event type is empty", zap.String("call_id", event.CallID))
			return
		}
		if event.CallID == "" {
			logger.Base().Error("Call ID is empty", zap.String("type", string(event.Type)))
			return
		}
		next(event)
	}
}

// DefaultMiddlewareChain is the chain installed by the server, outermost first.
func DefaultMiddlewareChain() []EventMiddleware {
	return []EventMiddleware{
		RecoveryMiddleware,
		ValidationMiddleware,
		LoggingMiddleware,
	}
}
