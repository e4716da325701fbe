package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/config"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrConnectionClosed is returned when writing to a closed realtime socket.
var ErrConnectionClosed = errors.New("realtime connection closed")

// EventHandler receives every decoded server event in arrival order.
type EventHandler func(event Event)

// CloseHandler is invoked exactly once when the socket stops reading.
type CloseHandler func(err error)

// Dialer opens realtime websocket sessions.
type Dialer struct {
	cfg    config.RealtimeConfig
	dialer *websocket.Dialer
}

// NewDialer creates a dialer for the configured realtime endpoint.
func NewDialer(cfg config.RealtimeConfig) *Dialer {
	return &Dialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.DefaultConnectionTimeout,
		},
	}
}

func (d *Dialer) endpoint() (string, error) {
	u, err := url.Parse(d.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid realtime url: %w", err)
	}
	if d.cfg.Model != "" {
		q := u.Query()
		q.Set("model", d.cfg.Model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Dial connects to the realtime engine and starts the read loop.
func (d *Dialer) Dial(ctx context.Context, callID string, onEvent EventHandler, onClose CloseHandler) (*Conn, error) {
	if strings.TrimSpace(d.cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	wsURL, err := d.endpoint()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	ws, resp, err := d.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial realtime engine (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial realtime engine: %w", err)
	}

	conn := &Conn{
		ws:      ws,
		callID:  callID,
		onEvent: onEvent,
		onClose: onClose,
		closed:  make(chan struct{}),
	}
	go conn.readLoop()

	logger.ForCall(callID).Info("realtime engine connected", zap.String("model", d.cfg.Model))
	return conn, nil
}

// Conn is one realtime engine session.
type Conn struct {
	ws     *websocket.Conn
	callID string

	onEvent EventHandler
	onClose CloseHandler

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Done is closed once the connection stops.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Close closes the socket. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) send(event map[string]interface{}) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(config.DefaultWriteTimeout))
	if err := c.ws.WriteJSON(event); err != nil {
		return fmt.Errorf("failed to send %v: %w", event["type"], err)
	}
	return nil
}

func (c *Conn) readLoop() {
	log := logger.ForCall(c.callID)
	var readErr error
	defer func() {
		if r := recover(); r != nil {
			log.Error("realtime read loop panic", zap.Any("panic", r))
			readErr = fmt.Errorf("realtime read loop panic: %v", r)
		}
		_ = c.Close()
		if c.onClose != nil {
			c.onClose(readErr)
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("realtime engine closed the connection")
			} else {
				select {
				case <-c.closed:
				default:
					log.Warn("realtime read failed", zap.Error(err))
				}
			}
			readErr = err
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			log.Warn("dropping undecodable realtime event", zap.Error(err))
			continue
		}
		if c.onEvent != nil {
			c.onEvent(event)
		}
	}
}
