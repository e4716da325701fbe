package bridge

import (
	"context"

	"github.com/ClareAI/astra-outbound-bridge/internal/core/model/openai"
)

// AIConn is the realtime engine side of a call.
type AIConn interface {
	SendSessionUpdate(p openai.SessionParams) error
	SendGreeting(instructions string) error
	AppendAudio(payload string) error
	SendFunctionResult(callID, output string) error
	Close() error
}

// AIConnector opens realtime engine sessions.
type AIConnector interface {
	Connect(ctx context.Context, callID string, onEvent openai.EventHandler, onClose openai.CloseHandler) (AIConn, error)
}

// MediaConn is the telephony media-stream socket. *websocket.Conn satisfies it.
type MediaConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

type openAIConnector struct {
	dialer *openai.Dialer
}

// NewOpenAIConnector adapts the realtime dialer to AIConnector.
func NewOpenAIConnector(dialer *openai.Dialer) AIConnector {
	return &openAIConnector{dialer: dialer}
}

func (c *openAIConnector) Connect(ctx context.Context, callID string, onEvent openai.EventHandler, onClose openai.CloseHandler) (AIConn, error) {
	conn, err := c.dialer.Dial(ctx, callID, onEvent, onClose)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
