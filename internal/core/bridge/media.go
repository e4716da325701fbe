package bridge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/core/event"
	"github.com/ClareAI/astra-outbound-bridge/pkg/twilio"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// pumpMedia reads the telephony stream until it ends and returns the end reason.
func (cb *callBridge) pumpMedia() string {
	var dropped int
	for {
		var msg twilio.MediaStreamMessage
		if err := cb.media.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cb.log.Warn("Media stream read failed", zap.Error(err))
			}
			if dropped > 0 {
				cb.log.Debug("Caller frames dropped before ready", zap.Int("frames", dropped))
			}
			return ReasonMediaClosed
		}

		switch msg.Event {
		case twilio.MediaEventConnected:
			cb.log.Debug("Media stream handshake received")

		case twilio.MediaEventStart:
			cb.handleStart(msg)

		case twilio.MediaEventMedia:
			if msg.Media == nil || msg.Media.Payload == "" {
				continue
			}
			if !cb.session.ReadyForAudio() {
				dropped++
				continue
			}
			ai := cb.aiConn()
			if ai == nil {
				dropped++
				continue
			}
			if err := ai.AppendAudio(msg.Media.Payload); err != nil {
				cb.log.Debug("Failed to forward caller audio", zap.Error(err))
			}

		case twilio.MediaEventMark:
			if msg.Mark != nil {
				cb.log.Debug("Playback mark reached", zap.String("name", msg.Mark.Name))
			}

		case twilio.MediaEventStop:
			cb.log.Info("Media stream stop received")
			return ReasonMediaStopped

		default:
			cb.log.Debug("Ignoring media stream event", zap.String("event", msg.Event))
		}
	}
}

func (cb *callBridge) handleStart(msg twilio.MediaStreamMessage) {
	streamSID := msg.StreamSid
	if msg.Start != nil {
		if streamSID == "" {
			streamSID = msg.Start.StreamSid
		}
		if msg.Start.CallSid != "" && cb.session.ProviderCallID() == "" {
			cb.session.SetProviderCallID(msg.Start.CallSid)
		}
	}

	if !cb.session.MarkStreamStarted(streamSID) {
		cb.log.Warn("Stream start ignored for completed call")
		return
	}
	cb.log.Info("Media stream started", zap.String("stream_sid", streamSID))
	cb.publish(event.StreamStarted, cb.session.ID, nil)
	cb.maybeGreet("stream started")
}

var errStoppedBeforeStart = errors.New("media stream stopped before start")

// awaitStart reads frames until the stream's start frame. The socket is
// closed if none arrives within StreamStartTimeout.
func (b *Bridge) awaitStart(media MediaConn) (twilio.MediaStreamMessage, error) {
	timer := time.AfterFunc(b.cfg.StreamStartTimeout, func() { _ = media.Close() })
	defer timer.Stop()

	for {
		var msg twilio.MediaStreamMessage
		if err := media.ReadJSON(&msg); err != nil {
			return msg, fmt.Errorf("waiting for stream start: %w", err)
		}
		switch msg.Event {
		case twilio.MediaEventStart:
			return msg, nil
		case twilio.MediaEventStop:
			return msg, errStoppedBeforeStart
		}
	}
}

// streamParams overlays non-empty start frame custom parameters on the
// connection query parameters.
func streamParams(query map[string]string, start *twilio.StreamStart) map[string]string {
	merged := make(map[string]string, len(query))
	for k, v := range query {
		merged[k] = v
	}
	if start == nil {
		return merged
	}
	for k, v := range start.CustomParameters {
		if strings.TrimSpace(v) != "" {
			merged[k] = v
		}
	}
	return merged
}
