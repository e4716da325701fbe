package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/core/event"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/session"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/task"
	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
	"github.com/ClareAI/astra-outbound-bridge/internal/repository"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/ClareAI/astra-outbound-bridge/pkg/redis"
	"go.uber.org/zap"
)

// ErrCallNotFound is returned for ids unknown locally and in the registry.
var ErrCallNotFound = session.ErrCallNotFound

const (
	followUpTTL        = 7 * 24 * time.Hour
	registryOpTimeout  = 5 * time.Second
	persistenceTimeout = 10 * time.Second
)

// HandleStatusUpdate applies a provider status callback. Unknown statuses are
// logged and ignored; terminal statuses tear the call down.
func (s *Service) HandleStatusUpdate(ctx context.Context, callID, rawStatus, providerCallID string) error {
	cs, err := s.store.Get(callID)
	if err != nil {
		return err
	}
	log := logger.ForCall(callID)

	providerStatus := domain.NormalizeProviderStatus(rawStatus)
	status, ok := domain.MapProviderStatus(providerStatus)
	if !ok {
		log.Warn("Ignoring unknown provider status", zap.String("provider_status", rawStatus))
		return nil
	}
	cs.SetProviderCallID(providerCallID)

	if status.IsTerminal() {
		log.Info("Provider reported call end", zap.String("provider_status", string(providerStatus)))
		s.Teardown(callID, "provider status "+string(providerStatus))
		return nil
	}

	if cs.AdvanceStatus(status) {
		log.Info("Call status advanced",
			zap.String("status", string(status)),
			zap.String("provider_status", string(providerStatus)))
		s.publishStatus(event.CallStatusChanged, cs, string(providerStatus))
	}
	return nil
}

// Teardown completes the call. Only the first invocation has effects: the
// AI socket is closed, the grace period starts and CallCompleted fires.
func (s *Service) Teardown(callID, reason string) {
	cs, err := s.store.Get(callID)
	if err != nil {
		return
	}
	completion, ok := cs.Complete(reason, s.now())
	if !ok {
		return
	}

	log := logger.ForCall(callID)
	if completion.AIConn != nil {
		if err := completion.AIConn.Close(); err != nil {
			log.Debug("Error closing AI connection", zap.Error(err))
		}
	}
	s.store.ScheduleRemoval(callID)

	log.Info("Call completed",
		zap.String("reason", reason),
		zap.Duration("duration", completion.Duration))

	data := &event.CompletionEventData{
		Summary:    cs.Summary(),
		Transcript: cs.Transcript(),
		Notes:      cs.Notes(),
	}
	if err := s.eventBus.Publish(event.CallCompleted, callID, data); err != nil {
		log.Debug("Failed to publish completion", zap.Error(err))
	}
}

// Abort tears the call down and hangs up the provider leg.
func (s *Service) Abort(callID, reason string) {
	cs, err := s.store.Get(callID)
	if err != nil {
		return
	}
	wasLive := !cs.Status().IsTerminal()
	s.Teardown(callID, reason)
	if !wasLive {
		return
	}

	if sid := cs.ProviderCallID(); sid != "" {
		if err := s.placer.EndCall(sid); err != nil {
			logger.ForCall(callID).Warn("Failed to hang up provider call", zap.Error(err))
		}
	}
}

// EndCall ends a call owned by this instance, or asks the owning instance to.
func (s *Service) EndCall(ctx context.Context, callID string) error {
	if cs, err := s.store.Get(callID); err == nil {
		if !cs.Status().IsTerminal() {
			s.Abort(callID, "ended by request")
		}
		return nil
	}

	if s.sessionManager == nil {
		return ErrCallNotFound
	}
	info, err := s.sessionManager.Lookup(ctx, callID)
	if err != nil {
		return err
	}
	if info.Summary.Status.IsTerminal() {
		return nil
	}
	if err := s.sessionManager.NotifyCleanup(ctx, callID); err != nil {
		return fmt.Errorf("failed to broadcast cleanup: %w", err)
	}
	return nil
}

// GetCall returns the current summary of a call, consulting the registry
// for calls owned by another instance.
func (s *Service) GetCall(ctx context.Context, callID string) (*domain.CallSummary, error) {
	if cs, err := s.store.Get(callID); err == nil {
		summary := cs.Summary()
		return &summary, nil
	}
	if s.sessionManager == nil {
		return nil, ErrCallNotFound
	}

	info, err := s.sessionManager.Lookup(ctx, callID)
	if err != nil {
		if !errors.Is(err, session.ErrCallNotFound) {
			logger.ForCall(callID).Warn("Registry lookup failed", zap.Error(err))
		}
		return nil, ErrCallNotFound
	}
	return &info.Summary, nil
}

// ListActive returns every call still tracked by this instance.
func (s *Service) ListActive() []domain.CallSummary {
	sessions := s.store.List()
	out := make([]domain.CallSummary, 0, len(sessions))
	for _, cs := range sessions {
		out = append(out, cs.Summary())
	}
	return out
}

// SweepStaleCalls aborts calls that never reached the media stage within
// the stale timeout. It returns the number of calls aborted.
func (s *Service) SweepStaleCalls() int {
	now := s.now()
	var swept int
	for _, cs := range s.store.List() {
		status := cs.Status()
		if status.IsTerminal() || status.Rank() >= domain.CallStatusConnecting.Rank() {
			continue
		}
		if now.Sub(cs.StartedAt) < s.cfg.StaleCallTimeout {
			continue
		}
		logger.ForCall(cs.ID).Warn("Aborting stale call",
			zap.String("status", string(status)),
			zap.Duration("age", now.Sub(cs.StartedAt)))
		s.Abort(cs.ID, "stale call")
		swept++
	}
	return swept
}

// StartCleanupRoutine sweeps stale calls until ctx is done.
func (s *Service) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.SweepStaleCalls(); n > 0 {
					logger.Base().Info("Stale call sweep finished", zap.Int("aborted", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// HandleSessionRemoved drops the registry entry once the grace period ends.
func (s *Service) HandleSessionRemoved(callID string) {
	if s.sessionManager == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), registryOpTimeout)
	defer cancel()
	if err := s.sessionManager.Unregister(ctx, callID); err != nil {
		logger.ForCall(callID).Warn("Failed to unregister call", zap.Error(err))
	}
}

// HandleTask consumes follow-up tasks from the task bus.
func (s *Service) HandleTask(t task.Task) {
	log := logger.ForCall(t.CallID)
	switch t.Type {
	case task.TaskTypeFollowUp:
		var fu task.FollowUp
		if err := json.Unmarshal(t.Payload, &fu); err != nil {
			log.Error("Invalid follow-up payload", zap.Error(err))
			return
		}
		log.Info("Follow-up queued",
			zap.String("when", fu.When),
			zap.String("topic", fu.Topic))
		if s.redisSvc == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), registryOpTimeout)
		defer cancel()
		key := s.redisSvc.GenerateKey(redis.FOLLOW_UP_TASK, fu.CallID)
		if err := s.redisSvc.SetValue(ctx, key, string(t.Payload), followUpTTL); err != nil {
			log.Error("Failed to store follow-up", zap.Error(err))
		}
	default:
		log.Warn("Unknown task type", zap.String("type", string(t.Type)))
	}
}

func (s *Service) subscribeLifecycleEvents() {
	// Handlers run concurrently, so the registry always receives the live
	// summary rather than the one carried by the event.
	register := func(e *event.CallEvent) {
		if s.sessionManager == nil {
			return
		}
		if cs, err := s.store.Get(e.CallID); err == nil {
			s.registerSummary(cs.Summary())
			return
		}
		if data, ok := e.GetStatusData(); ok {
			s.registerSummary(data.Summary)
		}
	}
	_ = s.eventBus.Subscribe(event.CallInitiated, register)
	_ = s.eventBus.Subscribe(event.CallStatusChanged, register)
	_ = s.eventBus.Subscribe(event.StreamStarted, register)

	_ = s.eventBus.Subscribe(event.CallCompleted, func(e *event.CallEvent) {
		data, ok := e.GetCompletionData()
		if !ok {
			return
		}
		if s.sessionManager != nil {
			s.registerSummary(data.Summary)
		}
		s.persist(e.CallID, data)
	})
}

func (s *Service) registerSummary(summary domain.CallSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), registryOpTimeout)
	defer cancel()
	if err := s.sessionManager.Register(ctx, summary); err != nil {
		logger.ForCall(summary.CallID).Warn("Failed to register call", zap.Error(err))
	}
}

func (s *Service) persist(callID string, data *event.CompletionEventData) {
	if s.repo == nil {
		return
	}
	log := logger.ForCall(callID)

	var owner domain.OwnerContext
	if cs, err := s.store.Get(callID); err == nil {
		owner = cs.Owner
	}
	now := s.now()
	record, err := repository.BuildCallRecord(data.Summary, owner, data.Notes, s.cfg.InstanceID, now)
	if err != nil {
		log.Error("Failed to build call record", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistenceTimeout)
	defer cancel()
	if err := s.repo.SaveCall(ctx, record, repository.BuildTranscript(data.Transcript, now)); err != nil {
		log.Error("Failed to persist call", zap.Error(err))
		return
	}
	log.Info("Call persisted", zap.Int("transcript_entries", len(data.Transcript)))
}
