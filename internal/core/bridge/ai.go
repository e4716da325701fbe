package bridge

import (
	"context"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/core/event"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/model/openai"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/session"
	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
	"github.com/ClareAI/astra-outbound-bridge/internal/prompts"
	"github.com/ClareAI/astra-outbound-bridge/pkg/twilio"
	"go.uber.org/zap"
)

func greetingInstruction(cs *session.CallSession) string {
	return prompts.GreetingInstruction(cs.Greeting)
}

func (cb *callBridge) sessionParams() openai.SessionParams {
	rt := cb.cfg.Realtime
	params := openai.SessionParams{
		Instructions:       cb.session.Instructions,
		Voice:              cb.session.VoiceID,
		Speed:              cb.session.Voice.SpeakingRate,
		AudioFormat:        rt.AudioFormat,
		TranscriptionModel: rt.TranscriptionModel,
		VAD:                rt.VAD,
	}
	if cb.tools != nil {
		params.Tools = cb.tools.Definitions()
	}
	return params
}

// connectAI opens and configures the engine session. Failing to connect or
// to be configured within the timeout aborts the call.
func (cb *callBridge) connectAI() {
	defer func() {
		if r := recover(); r != nil {
			cb.log.Error("AI setup panic", zap.Any("panic", r))
			cb.abort(ReasonBridgePanic)
		}
	}()

	started := time.Now()
	dialCtx, cancel := context.WithTimeout(cb.ctx, cb.cfg.AIConfigureTimeout)
	defer cancel()

	conn, err := cb.connector.Connect(dialCtx, cb.session.ID, cb.handleAIEvent, cb.handleAIClose)
	if err != nil {
		if cb.ctx.Err() != nil {
			return
		}
		cb.log.Error("Failed to connect to AI engine", zap.Error(err))
		cb.abort(ReasonAIConnectFailed)
		return
	}

	cb.setAIConn(conn)
	if !cb.session.AttachAI(conn) {
		cb.log.Info("Call completed while AI was connecting")
		_ = conn.Close()
		return
	}

	if err := conn.SendSessionUpdate(cb.sessionParams()); err != nil {
		cb.log.Error("Failed to configure AI session", zap.Error(err))
		cb.abort(ReasonAIConfigFailed)
		return
	}
	cb.log.Info("AI session configuration sent", zap.Duration("connect_time", time.Since(started)))

	remaining := cb.cfg.AIConfigureTimeout - time.Since(started)
	if remaining < 0 {
		remaining = 0
	}
	time.AfterFunc(remaining, func() {
		if cb.session.AIReady() || cb.session.Status().IsTerminal() {
			return
		}
		cb.log.Error("AI session not configured in time", zap.Duration("timeout", cb.cfg.AIConfigureTimeout))
		cb.abort(ReasonAIConfigTimeout)
	})
}

// handleAIClose runs when the engine socket stops. A live call is not left
// open without its AI side.
func (cb *callBridge) handleAIClose(err error) {
	if cb.session.Status().IsTerminal() {
		return
	}
	cb.log.Warn("AI engine disconnected mid-call", zap.Error(err))
	cb.abort(ReasonAIDisconnected)
}

func (cb *callBridge) handleAIEvent(e openai.Event) {
	defer func() {
		if r := recover(); r != nil {
			cb.log.Error("AI event handler panic", zap.String("type", e.Type()), zap.Any("panic", r))
		}
	}()

	if !e.IsVerbose() {
		cb.log.Debug("AI event", zap.String("type", e.Type()))
	}

	switch {
	case e.Type() == openai.EventSessionCreated:
		cb.log.Info("AI session created")

	case e.Type() == openai.EventSessionUpdated:
		if !cb.session.MarkAIReady() {
			return
		}
		cb.log.Info("AI session configured")
		cb.publish(event.AIReady, cb.session.ID, nil)
		cb.maybeGreet("session configured")

	case e.IsAudioDelta():
		delta := e.String("delta")
		if delta == "" || !cb.session.ReadyForAudio() {
			return
		}
		if err := cb.writeMedia(twilio.NewOutboundMedia(cb.session.StreamSID(), delta)); err != nil {
			cb.log.Debug("Failed to forward AI audio", zap.Error(err))
		}

	case e.IsAssistantTranscriptDelta():
		cb.session.AppendTranscript(domain.RoleAssistant, e.String("delta"), cb.now())

	case e.Type() == openai.EventInputTranscriptionCompleted:
		cb.session.AppendTranscript(domain.RoleUser, e.String("transcript"), cb.now())

	case e.Type() == openai.EventSpeechStarted:
		if sid := cb.session.StreamSID(); sid != "" && cb.session.ReadyForAudio() {
			_ = cb.writeMedia(twilio.NewClearMessage(sid))
		}

	case e.Type() == openai.EventResponseDone:
		cb.log.Debug("AI response complete")

	case e.Type() == openai.EventFunctionCallArgumentsDone:
		if fc, ok := e.FunctionCall(); ok {
			go cb.runTool(fc)
		}

	case e.Type() == openai.EventError:
		info := e.Error()
		fields := []zap.Field{
			zap.String("error_type", info.Type),
			zap.String("code", info.Code),
			zap.String("message", info.Message),
		}
		if info.Fatal() {
			cb.log.Error("AI engine reported session error", fields...)
			return
		}
		cb.log.Warn("AI engine error", fields...)
	}
}

func (cb *callBridge) runTool(fc openai.FunctionCall) {
	defer func() {
		if r := recover(); r != nil {
			cb.log.Error("Tool panic", zap.String("tool_name", fc.Name), zap.Any("panic", r))
		}
	}()

	if cb.tools == nil {
		cb.log.Warn("Tool requested but no tools configured", zap.String("tool_name", fc.Name))
		return
	}
	result, ok := cb.tools.ExecuteTool(cb.ctx, fc.Name, fc.Arguments, cb.session.ID)
	cb.publish(event.ToolExecuted, cb.session.ID, &event.ToolEventData{ToolName: fc.Name, Success: ok})

	if cb.session.Status().IsTerminal() {
		return
	}
	ai := cb.aiConn()
	if ai == nil {
		return
	}
	if err := ai.SendFunctionResult(fc.CallID, result); err != nil {
		cb.log.Warn("Failed to return tool result", zap.String("tool_name", fc.Name), zap.Error(err))
	}
}
