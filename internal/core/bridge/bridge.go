package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/config"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/event"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/model/openai"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/session"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/ClareAI/astra-outbound-bridge/pkg/twilio"
	"go.uber.org/zap"
)

// End reasons recorded on the call
const (
	ReasonMediaClosed      = "media stream closed"
	ReasonMediaStopped     = "media stream stopped"
	ReasonAIConnectFailed  = "ai connect failed"
	ReasonAIConfigFailed   = "ai configuration failed"
	ReasonAIConfigTimeout  = "ai configure timeout"
	ReasonAIDisconnected   = "ai disconnected"
	ReasonGreetingFailed   = "greeting failed"
	ReasonBridgePanic      = "bridge panic"
	ReasonAlreadyCompleted = "call already completed"
)

// CallLifecycle is the orchestrator surface the bridge drives.
type CallLifecycle interface {
	// LookupSession returns the session stored for callID, if any.
	LookupSession(callID string) (*session.CallSession, bool)
	// SessionFor returns the stored session, synthesizing and registering one
	// for calls that were placed by another system.
	SessionFor(callID string, params map[string]string) *session.CallSession
	// Teardown completes the call. Idempotent.
	Teardown(callID, reason string)
	// Abort completes the call and hangs up the provider leg.
	Abort(callID, reason string)
}

// ToolExecutor runs mid-call tools requested by the engine.
type ToolExecutor interface {
	Definitions() []openai.ToolDefinition
	ExecuteTool(ctx context.Context, toolName, argumentsJSON, callID string) (string, bool)
}

// Config tunes every bridged call.
type Config struct {
	Realtime           config.RealtimeConfig
	GreetingDelay      time.Duration
	AIConfigureTimeout time.Duration
	// StreamStartTimeout bounds the wait for the start frame of a stream
	// whose call has no stored session.
	StreamStartTimeout time.Duration
}

// Bridge relays audio between the telephony media stream and the AI engine.
type Bridge struct {
	cfg       Config
	connector AIConnector
	calls     CallLifecycle
	tools     ToolExecutor
	events    event.EventBus
	now       func() time.Time
}

// New creates a bridge. tools and events may be nil.
func New(cfg Config, connector AIConnector, calls CallLifecycle, tools ToolExecutor, events event.EventBus) *Bridge {
	if cfg.AIConfigureTimeout <= 0 {
		cfg.AIConfigureTimeout = config.DefaultAIConfigureTimeout
	}
	if cfg.StreamStartTimeout <= 0 {
		cfg.StreamStartTimeout = config.DefaultStreamStartTimeout
	}
	if cfg.Realtime.AudioFormat == "" {
		cfg.Realtime.AudioFormat = config.TelephonyAudioFormat
	}
	return &Bridge{
		cfg:       cfg,
		connector: connector,
		calls:     calls,
		tools:     tools,
		events:    events,
		now:       time.Now,
	}
}

// Serve bridges one media-stream connection until it closes. params are the
// connection query parameters. For a call with no stored session the start
// frame is awaited first and its custom parameters take precedence.
func (b *Bridge) Serve(ctx context.Context, callID string, media MediaConn, params map[string]string) (err error) {
	log := logger.ForCall(callID)

	var start *twilio.MediaStreamMessage
	if _, known := b.calls.LookupSession(callID); !known {
		msg, startErr := b.awaitStart(media)
		if startErr != nil {
			log.Warn("Media stream ended before start", zap.Error(startErr))
			return fmt.Errorf("%s: %w", callID, startErr)
		}
		start = &msg
		params = streamParams(params, msg.Start)
	}

	cs := b.calls.SessionFor(callID, params)
	if !cs.AttachMedia(media) {
		log.Warn("Media stream arrived for a completed call")
		return fmt.Errorf("%s: %s", callID, ReasonAlreadyCompleted)
	}

	ctx, cancel := context.WithCancel(ctx)
	cb := &callBridge{
		Bridge:  b,
		ctx:     ctx,
		cancel:  cancel,
		session: cs,
		media:   media,
		log:     log,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Bridge panic", zap.Any("panic", r))
			cb.abort(ReasonBridgePanic)
			err = fmt.Errorf("bridge panic: %v", r)
		}
		cancel()
	}()

	log.Info("Media stream connected",
		zap.String("persona_id", cs.PersonaID),
		zap.String("status", string(cs.Status())))

	if start != nil {
		cb.handleStart(*start)
	}
	go cb.connectAI()

	reason := cb.pumpMedia()
	b.calls.Teardown(callID, reason)
	log.Info("Media stream finished", zap.String("reason", reason))
	return nil
}

func (b *Bridge) publish(eventType event.EventType, callID string, data interface{}) {
	if b.events == nil {
		return
	}
	if err := b.events.Publish(eventType, callID, data); err != nil {
		logger.ForCall(callID).Debug("Failed to publish event", zap.String("type", string(eventType)), zap.Error(err))
	}
}

// callBridge is the per-call state owned by one Serve invocation.
type callBridge struct {
	*Bridge
	ctx     context.Context
	cancel  context.CancelFunc
	session *session.CallSession
	media   MediaConn
	log     *zap.Logger

	aiMu sync.RWMutex
	ai   AIConn

	mediaWriteMu sync.Mutex
}

func (cb *callBridge) aiConn() AIConn {
	cb.aiMu.RLock()
	defer cb.aiMu.RUnlock()
	return cb.ai
}

func (cb *callBridge) setAIConn(conn AIConn) {
	cb.aiMu.Lock()
	cb.ai = conn
	cb.aiMu.Unlock()
}

func (cb *callBridge) writeMedia(v interface{}) error {
	cb.mediaWriteMu.Lock()
	defer cb.mediaWriteMu.Unlock()
	return cb.media.WriteJSON(v)
}

// abort hard-stops the call: completes it, hangs up the provider leg and
// closes the media socket so the read pump exits.
func (cb *callBridge) abort(reason string) {
	cb.log.Warn("Aborting call", zap.String("reason", reason))
	cb.calls.Abort(cb.session.ID, reason)
	_ = cb.media.Close()
}

// maybeGreet fires the greeting if this trigger wins the claim. The claim is
// never released, so a failed send ends the call.
func (cb *callBridge) maybeGreet(trigger string) {
	if !cb.session.TryClaimGreeting() {
		return
	}
	cb.log.Info("Greeting claimed", zap.String("trigger", trigger), zap.Duration("delay", cb.cfg.GreetingDelay))

	send := func() {
		if cb.session.Status().IsTerminal() {
			return
		}
		ai := cb.aiConn()
		if ai == nil {
			cb.log.Warn("Greeting skipped, AI connection missing")
			return
		}
		if err := ai.SendGreeting(greetingInstruction(cb.session)); err != nil {
			cb.log.Error("Failed to send greeting", zap.Error(err))
			cb.abort(ReasonGreetingFailed)
			return
		}
		cb.log.Info("Greeting sent", zap.String("trigger", trigger))
		cb.publish(event.GreetingSent, cb.session.ID, nil)
	}

	if cb.cfg.GreetingDelay <= 0 {
		go send()
		return
	}
	time.AfterFunc(cb.cfg.GreetingDelay, send)
}
