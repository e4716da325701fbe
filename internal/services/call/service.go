package call

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/core/event"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/session"
	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
	"github.com/ClareAI/astra-outbound-bridge/internal/persona"
	"github.com/ClareAI/astra-outbound-bridge/internal/prompts"
	"github.com/ClareAI/astra-outbound-bridge/internal/repository"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/ClareAI/astra-outbound-bridge/pkg/redis"
	"github.com/ClareAI/astra-outbound-bridge/pkg/twilio"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config is the orchestrator's slice of the bridge configuration.
type Config struct {
	PublicBaseURL    string
	InstanceID       string
	StaleCallTimeout time.Duration
}

// Service places outbound calls and owns their lifecycle.
type Service struct {
	cfg      Config
	store    *session.Store
	resolver *persona.Resolver
	placer   twilio.CallPlacer

	// Optional collaborators
	sessionManager *session.Manager
	repo           repository.CallRecordRepository
	redisSvc       redis.RedisServiceInterface

	eventBus *event.DefaultEventBus
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithSessionManager enables the cross-pod call registry.
func WithSessionManager(m *session.Manager) Option {
	return func(s *Service) { s.sessionManager = m }
}

// WithRepository persists finished calls.
func WithRepository(repo repository.CallRecordRepository) Option {
	return func(s *Service) { s.repo = repo }
}

// WithRedis stores queued follow-ups.
func WithRedis(svc redis.RedisServiceInterface) Option {
	return func(s *Service) { s.redisSvc = svc }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the call orchestrator.
func NewService(cfg Config, store *session.Store, resolver *persona.Resolver, placer twilio.CallPlacer, opts ...Option) *Service {
	if cfg.StaleCallTimeout <= 0 {
		cfg.StaleCallTimeout = 2 * time.Minute
	}

	eventBus := event.NewEventBus()
	for _, mw := range event.DefaultMiddlewareChain() {
		eventBus.Use(mw)
	}

	s := &Service{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		placer:   placer,
		eventBus: eventBus,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.subscribeLifecycleEvents()

	if s.sessionManager != nil {
		logger.Base().Info("Subscribing to call cleanup broadcasts")
		if err := s.sessionManager.SubscribeToCleanup(context.Background(), func(callID string) {
			if _, err := s.store.Get(callID); err == nil {
				logger.ForCall(callID).Info("Received cleanup broadcast for local call")
				s.Abort(callID, "remote cleanup request")
			}
		}); err != nil {
			logger.Base().Error("Failed to subscribe to cleanup broadcasts", zap.Error(err))
		}
	}

	return s
}

// EventBus exposes the lifecycle bus to the bridge.
func (s *Service) EventBus() event.EventBus {
	return s.eventBus
}

// Close stops the lifecycle bus after in-flight handlers finish.
func (s *Service) Close() error {
	return s.eventBus.Close()
}

// Personas lists the persona catalog.
func (s *Service) Personas() []persona.Persona {
	return s.resolver.List()
}

// SessionGetter resolves live sessions for tools.
func (s *Service) SessionGetter(callID string) (*session.CallSession, error) {
	return s.store.Get(callID)
}

func (s *Service) newCallID(personaID string) string {
	return fmt.Sprintf("%s_%d_%s", personaID, s.now().UnixMilli(), uuid.New().String()[:8])
}

// buildSession resolves the persona and composes everything a session needs.
func (s *Service) buildSession(callID string, p persona.Persona, req InitiateCallRequest) *session.CallSession {
	cs := session.NewCallSession(callID, s.now())
	cs.PersonaID = p.ID
	cs.PersonaName = p.Name
	cs.VoiceID = p.VoiceID
	cs.Voice = req.VoiceSettings
	cs.DestinationNumber = strings.TrimSpace(req.DestinationNumber)
	cs.DestinationName = strings.TrimSpace(req.DestinationName)
	cs.Purpose = strings.TrimSpace(req.Purpose)
	cs.Owner = req.OwnerContext
	cs.Relationship = req.RelationshipFacts
	cs.Instructions = prompts.Compose(p, prompts.CallFacts{
		DestinationNumber: cs.DestinationNumber,
		DestinationName:   cs.DestinationName,
		Purpose:           cs.Purpose,
		Owner:             cs.Owner,
		Relationship:      cs.Relationship,
	})
	cs.Greeting = prompts.GreetingText(p, cs.DestinationName, cs.Owner)
	return cs
}

// InitiateCall places an outbound call. Origination failures are returned
// synchronously wrapped in ErrOriginationFailed.
func (s *Service) InitiateCall(ctx context.Context, req InitiateCallRequest) (*InitiateCallResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.PersonaID != "" && !s.resolver.Known(req.PersonaID) {
		logger.Base().Warn("Unknown persona requested, using default",
			zap.String("persona_id", req.PersonaID),
			zap.String("default", persona.DefaultPersonaID))
	}

	p := s.resolver.Resolve(req.PersonaID)
	callID := s.newCallID(p.ID)
	cs := s.buildSession(callID, p, req)
	if err := s.store.Create(cs); err != nil {
		return nil, fmt.Errorf("failed to register call: %w", err)
	}

	log := logger.ForCall(callID)
	log.Info("Initiating outbound call",
		zap.String("persona_id", p.ID),
		zap.Bool("has_relationship_data", req.RelationshipFacts.HasAny()))
	s.publishStatus(event.CallInitiated, cs, "")

	providerCallID, err := s.placer.PlaceCall(cs.DestinationNumber,
		twilio.AnswerURL(s.cfg.PublicBaseURL, callID),
		twilio.StatusURL(s.cfg.PublicBaseURL, callID))
	if err != nil {
		log.Error("Failed to place call", zap.Error(err))
		s.Teardown(callID, "origination failed")
		return nil, fmt.Errorf("%w: %w", ErrOriginationFailed, err)
	}

	cs.SetProviderCallID(providerCallID)
	if cs.AdvanceStatus(domain.CallStatusCalling) {
		s.publishStatus(event.CallStatusChanged, cs, "")
	}

	return &InitiateCallResult{
		Success:        true,
		CallID:         callID,
		ProviderCallID: providerCallID,
		PersonaName:    p.Name,
		VoiceID:        p.VoiceID,
	}, nil
}

// LookupSession returns the locally stored session for callID.
func (s *Service) LookupSession(callID string) (*session.CallSession, bool) {
	cs, err := s.store.Get(callID)
	if err != nil {
		return nil, false
	}
	return cs, true
}

// SessionFor returns the stored session or synthesizes one for a stream
// whose call was placed by another system.
func (s *Service) SessionFor(callID string, params map[string]string) *session.CallSession {
	cs, created := s.store.GetOrCreate(callID, func() *session.CallSession {
		p := s.resolver.Resolve(PersonaIDFromCallID(callID))
		return s.buildSession(callID, p, InitiateCallRequest{
			DestinationNumber: params[ParamDestinationNumber],
			DestinationName:   params[ParamDestinationName],
			Purpose:           params[ParamPurpose],
			OwnerContext: domain.OwnerContext{
				Name:    params[ParamOwnerName],
				Company: params[ParamOwnerCompany],
			},
		})
	})
	if created {
		logger.ForCall(callID).Info("Synthesized session for externally placed call",
			zap.String("persona_id", cs.PersonaID))
		s.publishStatus(event.CallInitiated, cs, "")
	}
	return cs
}

func (s *Service) publishStatus(eventType event.EventType, cs *session.CallSession, providerStatus string) {
	data := &event.StatusEventData{Summary: cs.Summary(), ProviderStatus: providerStatus}
	if err := s.eventBus.Publish(eventType, cs.ID, data); err != nil {
		logger.ForCall(cs.ID).Debug("Failed to publish lifecycle event", zap.Error(err))
	}
}
