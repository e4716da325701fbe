package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/config"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/model/openai"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/session"
	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
	"github.com/ClareAI/astra-outbound-bridge/pkg/twilio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeMedia struct {
	in        chan interface{}
	closed    chan struct{}
	closeOnce sync.Once
	entered   atomic.Int32

	mu  sync.Mutex
	out []interface{}
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{in: make(chan interface{}, 64), closed: make(chan struct{})}
}

func (m *fakeMedia) ReadJSON(v interface{}) error {
	m.entered.Add(1)
	select {
	case <-m.closed:
		return io.EOF
	default:
	}
	select {
	case msg := <-m.in:
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, v)
	case <-m.closed:
		return io.EOF
	}
}

func (m *fakeMedia) WriteJSON(v interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = append(m.out, v)
	return nil
}

func (m *fakeMedia) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *fakeMedia) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func (m *fakeMedia) outbound() []twilio.OutboundMedia {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []twilio.OutboundMedia
	for _, v := range m.out {
		if om, ok := v.(twilio.OutboundMedia); ok {
			out = append(out, om)
		}
	}
	return out
}

// processed reports whether the bridge has handled n inbound messages and
// is waiting for the next one.
func (m *fakeMedia) processed(n int) bool {
	return int(m.entered.Load()) > n
}

func (m *fakeMedia) start(streamSID string) {
	m.in <- twilio.MediaStreamMessage{
		Event:     twilio.MediaEventStart,
		StreamSid: streamSID,
		Start:     &twilio.StreamStart{StreamSid: streamSID, CallSid: "CA123"},
	}
}

func (m *fakeMedia) frame(payload string) {
	m.in <- twilio.MediaStreamMessage{Event: twilio.MediaEventMedia, Media: &twilio.MediaPayload{Payload: payload}}
}

type fakeAI struct {
	onEvent openai.EventHandler
	onClose openai.CloseHandler

	mu             sync.Mutex
	sessionUpdates []openai.SessionParams
	greetings      []string
	audio          []string
	results        map[string]string
	greetErr       error
	closed         atomic.Int32
}

func (a *fakeAI) SendSessionUpdate(p openai.SessionParams) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionUpdates = append(a.sessionUpdates, p)
	return nil
}

func (a *fakeAI) SendGreeting(instructions string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.greetErr != nil {
		return a.greetErr
	}
	a.greetings = append(a.greetings, instructions)
	return nil
}

func (a *fakeAI) AppendAudio(payload string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.audio = append(a.audio, payload)
	return nil
}

func (a *fakeAI) SendFunctionResult(callID, output string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.results == nil {
		a.results = make(map[string]string)
	}
	a.results[callID] = output
	return nil
}

func (a *fakeAI) Close() error {
	if a.closed.Add(1) == 1 && a.onClose != nil {
		go a.onClose(nil)
	}
	return nil
}

func (a *fakeAI) greetingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.greetings)
}

func (a *fakeAI) audioFrames() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.audio...)
}

func (a *fakeAI) configured() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessionUpdates) > 0
}

func (a *fakeAI) emit(e openai.Event) {
	a.onEvent(e)
}

type fakeConnector struct {
	err      error
	greetErr error
	conns    chan *fakeAI
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{conns: make(chan *fakeAI, 1)}
}

func (c *fakeConnector) Connect(_ context.Context, _ string, onEvent openai.EventHandler, onClose openai.CloseHandler) (AIConn, error) {
	if c.err != nil {
		return nil, c.err
	}
	ai := &fakeAI{onEvent: onEvent, onClose: onClose, greetErr: c.greetErr}
	c.conns <- ai
	return ai, nil
}

type fakeLifecycle struct {
	store *session.Store

	mu      sync.Mutex
	reasons []string
	aborted []string
	params  map[string]string
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{store: session.NewStore(time.Minute)}
}

func (l *fakeLifecycle) LookupSession(callID string) (*session.CallSession, bool) {
	cs, err := l.store.Get(callID)
	return cs, err == nil
}

func (l *fakeLifecycle) SessionFor(callID string, params map[string]string) *session.CallSession {
	cs, created := l.store.GetOrCreate(callID, func() *session.CallSession {
		cs := session.NewCallSession(callID, time.Now())
		cs.PersonaID = "support"
		cs.VoiceID = "alloy"
		cs.Instructions = "be brief"
		cs.Greeting = "Hi Dana, this is Sam from the support team at Acme."
		if name := params["destinationName"]; name != "" {
			cs.DestinationName = name
			cs.Purpose = params["purpose"]
			cs.Instructions = "be brief with " + name + " about " + cs.Purpose
		}
		cs.AdvanceStatus(domain.CallStatusCalling)
		return cs
	})
	if created {
		l.mu.Lock()
		l.params = params
		l.mu.Unlock()
	}
	return cs
}

func (l *fakeLifecycle) synthesizedWith() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params
}

func (l *fakeLifecycle) Teardown(callID, reason string) {
	cs, err := l.store.Get(callID)
	if err != nil {
		return
	}
	done, ok := cs.Complete(reason, time.Now())
	if !ok {
		return
	}
	l.mu.Lock()
	l.reasons = append(l.reasons, reason)
	l.mu.Unlock()
	if done.AIConn != nil {
		_ = done.AIConn.Close()
	}
}

func (l *fakeLifecycle) Abort(callID, reason string) {
	l.mu.Lock()
	l.aborted = append(l.aborted, reason)
	l.mu.Unlock()
	l.Teardown(callID, reason)
}

func (l *fakeLifecycle) teardowns() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.reasons...)
}

func (l *fakeLifecycle) aborts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.aborted...)
}

type harness struct {
	t         *testing.T
	life      *fakeLifecycle
	connector *fakeConnector
	media     *fakeMedia
	bridge    *Bridge
	done      chan struct{}
	err       error
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	if cfg.Realtime.TranscriptionModel == "" {
		cfg.Realtime = config.RealtimeConfig{
			TranscriptionModel: config.DefaultTranscriptionModel,
			VAD:                config.VADConfig{Threshold: 0.5, PrefixPaddingMs: 300, SilenceDurationMs: 700},
		}
	}
	h := &harness{
		t:         t,
		life:      newFakeLifecycle(),
		connector: newFakeConnector(),
		media:     newFakeMedia(),
		done:      make(chan struct{}),
	}
	h.bridge = New(cfg, h.connector, h.life, nil, nil)
	t.Cleanup(func() {
		_ = h.media.Close()
		h.life.store.Close()
	})
	return h
}

// serve bridges a call the orchestrator already placed.
func (h *harness) serve(callID string) {
	h.life.SessionFor(callID, nil)
	h.serveUnknown(callID, nil)
}

// serveUnknown bridges a stream for a call with no stored session.
func (h *harness) serveUnknown(callID string, query map[string]string) {
	go func() {
		defer close(h.done)
		h.err = h.bridge.Serve(context.Background(), callID, h.media, query)
	}()
}

func (h *harness) ai() *fakeAI {
	h.t.Helper()
	select {
	case ai := <-h.connector.conns:
		require.Eventually(h.t, ai.configured, waitFor, tick)
		return ai
	case <-time.After(waitFor):
		h.t.Fatal("AI was never connected")
		return nil
	}
}

func (h *harness) session(callID string) *session.CallSession {
	cs, err := h.life.store.Get(callID)
	require.NoError(h.t, err)
	return cs
}

func (h *harness) waitDone() {
	h.t.Helper()
	select {
	case <-h.done:
	case <-time.After(waitFor):
		h.t.Fatal("bridge did not finish")
	}
}

func TestGreetingAfterLateSessionConfigured(t *testing.T) {
	h := newHarness(t, Config{GreetingDelay: 10 * time.Millisecond})
	h.serve("support_1_aaaa")
	ai := h.ai()
	cs := h.session("support_1_aaaa")

	h.media.start("MZ1")
	require.Eventually(t, func() bool { return cs.Status() == domain.CallStatusConnected }, waitFor, tick)

	time.Sleep(2 * time.Second)
	assert.Equal(t, 0, ai.greetingCount(), "greeting sent before session configured")

	ai.emit(openai.Event{"type": openai.EventSessionUpdated})
	require.Eventually(t, func() bool { return ai.greetingCount() == 1 }, waitFor, tick)
	ai.mu.Lock()
	assert.Contains(t, ai.greetings[0], cs.Greeting)
	ai.mu.Unlock()

	ai.emit(openai.Event{"type": openai.EventSessionUpdated})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, ai.greetingCount())
}

func TestGreetingAfterLateStreamStart(t *testing.T) {
	h := newHarness(t, Config{GreetingDelay: 10 * time.Millisecond})
	h.serve("support_1_bbbb")
	ai := h.ai()
	cs := h.session("support_1_bbbb")

	ai.emit(openai.Event{"type": openai.EventSessionUpdated})
	require.True(t, cs.AIReady())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, ai.greetingCount())

	h.media.start("MZ1")
	require.Eventually(t, func() bool { return ai.greetingCount() == 1 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, ai.greetingCount())
	assert.True(t, cs.GreetingSent())
}

func TestGreetingOnceWhenTriggersArriveTogether(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t, Config{})
		h.serve("support_1_cccc")
		ai := h.ai()

		go ai.emit(openai.Event{"type": openai.EventSessionUpdated})
		h.media.start("MZ1")

		require.Eventually(t, func() bool { return ai.greetingCount() >= 1 }, waitFor, tick)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, ai.greetingCount(), "iteration %d", i)

		_ = h.media.Close()
		h.waitDone()
	}
}

func TestAudioGatedUntilBothReady(t *testing.T) {
	h := newHarness(t, Config{GreetingDelay: time.Hour})
	h.serve("support_1_dddd")
	ai := h.ai()
	cs := h.session("support_1_dddd")

	ai.emit(openai.Event{"type": openai.EventResponseAudioDelta, "delta": "early-out"})
	h.media.frame("early-in")
	h.media.start("MZ9")
	require.Eventually(t, func() bool { return cs.StreamSID() == "MZ9" }, waitFor, tick)

	h.media.frame("still-early")
	require.Eventually(t, func() bool { return h.media.processed(3) }, waitFor, tick)
	ai.emit(openai.Event{"type": openai.EventResponseOutputAudioDelta, "delta": "still-early-out"})

	ai.emit(openai.Event{"type": openai.EventSessionUpdated})
	h.media.frame("live-in")
	ai.emit(openai.Event{"type": openai.EventResponseAudioDelta, "delta": "live-out"})

	require.Eventually(t, func() bool { return len(ai.audioFrames()) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"live-in"}, ai.audioFrames())

	out := h.media.outbound()
	require.Len(t, out, 1)
	assert.Equal(t, "MZ9", out[0].StreamSid)
	assert.Equal(t, "live-out", out[0].Media.Payload)
}

func TestTranscriptCapture(t *testing.T) {
	h := newHarness(t, Config{GreetingDelay: time.Hour})
	h.serve("support_1_eeee")
	ai := h.ai()
	cs := h.session("support_1_eeee")

	ai.emit(openai.Event{"type": openai.EventResponseAudioTranscript, "delta": "Hi Dana"})
	ai.emit(openai.Event{"type": openai.EventInputTranscriptionCompleted, "transcript": "Hello?"})
	ai.emit(openai.Event{"type": openai.EventError, "error": map[string]interface{}{"message": "rate limited"}})

	tr := cs.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, domain.RoleAssistant, tr[0].Role)
	assert.Equal(t, domain.RoleUser, tr[1].Role)
	assert.False(t, cs.Status().IsTerminal(), "engine error events do not end the call")
}

func TestSessionParamsCarryCallConfiguration(t *testing.T) {
	h := newHarness(t, Config{})
	h.serve("support_1_ffff")
	ai := h.ai()

	ai.mu.Lock()
	p := ai.sessionUpdates[0]
	ai.mu.Unlock()
	assert.Equal(t, "be brief", p.Instructions)
	assert.Equal(t, "alloy", p.Voice)
	assert.Equal(t, config.TelephonyAudioFormat, p.AudioFormat)
	assert.Equal(t, config.DefaultTranscriptionModel, p.TranscriptionModel)
	assert.Equal(t, 700, p.VAD.SilenceDurationMs)
}

func TestMediaStopTearsDownAndClosesAI(t *testing.T) {
	h := newHarness(t, Config{})
	h.serve("support_1_gggg")
	ai := h.ai()

	h.media.in <- twilio.MediaStreamMessage{Event: twilio.MediaEventStop}
	h.waitDone()

	assert.Equal(t, []string{ReasonMediaStopped}, h.life.teardowns())
	assert.Equal(t, int32(1), ai.closed.Load())
	assert.Empty(t, h.life.aborts())
	assert.Equal(t, domain.CallStatusCompleted, h.session("support_1_gggg").Status())
}

func TestAIConnectFailureAbortsCall(t *testing.T) {
	h := newHarness(t, Config{})
	h.connector.err = errors.New("401 unauthorized")
	h.serve("support_1_hhhh")

	h.waitDone()
	assert.Equal(t, []string{ReasonAIConnectFailed}, h.life.aborts())
	assert.True(t, h.media.isClosed())
}

func TestGreetingFailureAbortsCall(t *testing.T) {
	h := newHarness(t, Config{})
	h.connector.greetErr = errors.New("socket closed")
	h.serve("support_1_hgfd")
	ai := h.ai()
	cs := h.session("support_1_hgfd")

	ai.emit(openai.Event{"type": openai.EventSessionUpdated})
	h.media.start("MZ1")

	h.waitDone()
	assert.Equal(t, []string{ReasonGreetingFailed}, h.life.aborts())
	assert.True(t, cs.Status().IsTerminal())
	assert.Equal(t, 0, ai.greetingCount())
	assert.True(t, h.media.isClosed())
}

func TestAIConfigureTimeoutAbortsCall(t *testing.T) {
	h := newHarness(t, Config{AIConfigureTimeout: 50 * time.Millisecond})
	h.serve("support_1_iiii")
	_ = h.ai()

	h.waitDone()
	assert.Equal(t, []string{ReasonAIConfigTimeout}, h.life.aborts())
}

func TestAIDropMidCallAbortsCall(t *testing.T) {
	h := newHarness(t, Config{})
	h.serve("support_1_jjjj")
	ai := h.ai()
	ai.emit(openai.Event{"type": openai.EventSessionUpdated})
	h.media.start("MZ1")

	go ai.onClose(errors.New("connection reset"))
	h.waitDone()

	assert.Equal(t, []string{ReasonAIDisconnected}, h.life.aborts())
	assert.Equal(t, []string{ReasonAIDisconnected}, h.life.teardowns())
}

func TestCompletedCallRejectsMedia(t *testing.T) {
	h := newHarness(t, Config{})
	cs := h.life.SessionFor("support_1_kkkk", nil)
	cs.Complete("busy", time.Now())

	err := h.bridge.Serve(context.Background(), "support_1_kkkk", h.media, nil)
	assert.Error(t, err)
}

type fakeTools struct{}

func (fakeTools) Definitions() []openai.ToolDefinition {
	return []openai.ToolDefinition{{Name: "record_note"}}
}

func (fakeTools) ExecuteTool(_ context.Context, toolName, _ string, _ string) (string, bool) {
	return `{"success":true,"tool":"` + toolName + `"}`, true
}

func TestToolCallResultReturnedToEngine(t *testing.T) {
	h := newHarness(t, Config{})
	h.bridge.tools = fakeTools{}
	h.serve("support_1_llll")
	ai := h.ai()

	ai.mu.Lock()
	require.Len(t, ai.sessionUpdates[0].Tools, 1)
	ai.mu.Unlock()

	ai.emit(openai.Event{"type": openai.EventFunctionCallArgumentsDone, "call_id": "fc_1", "name": "record_note", "arguments": `{"note":"x"}`})
	require.Eventually(t, func() bool {
		ai.mu.Lock()
		defer ai.mu.Unlock()
		return ai.results["fc_1"] != ""
	}, waitFor, tick)
}

func TestUnknownCallComposedFromStartParameters(t *testing.T) {
	h := newHarness(t, Config{})
	h.serveUnknown("sales_1_abcd", map[string]string{"purpose": "from query", "ownerName": "Jo"})

	h.media.in <- twilio.MediaStreamMessage{Event: twilio.MediaEventConnected}
	assert.Never(t, func() bool { return len(h.connector.conns) > 0 }, 100*time.Millisecond, tick)
	_, known := h.life.LookupSession("sales_1_abcd")
	require.False(t, known)

	h.media.in <- twilio.MediaStreamMessage{
		Event:     twilio.MediaEventStart,
		StreamSid: "MZ9",
		Start: &twilio.StreamStart{
			StreamSid: "MZ9",
			CallSid:   "CA9",
			CustomParameters: map[string]string{
				"callId":          "sales_1_abcd",
				"destinationName": "Priya Patel",
				"purpose":         "renewal chat",
				"ownerName":       "",
			},
		},
	}
	ai := h.ai()

	ai.mu.Lock()
	instructions := ai.sessionUpdates[0].Instructions
	ai.mu.Unlock()
	assert.Contains(t, instructions, "Priya Patel")
	assert.Contains(t, instructions, "renewal chat")

	params := h.life.synthesizedWith()
	assert.Equal(t, "renewal chat", params["purpose"])
	assert.Equal(t, "Jo", params["ownerName"])

	cs := h.session("sales_1_abcd")
	assert.Equal(t, "Priya Patel", cs.DestinationName)
	assert.Equal(t, "MZ9", cs.StreamSID())
	assert.Equal(t, "CA9", cs.ProviderCallID())
	require.Eventually(t, func() bool { return cs.Status() == domain.CallStatusConnected }, waitFor, tick)
}

func TestUnknownCallStoppedBeforeStart(t *testing.T) {
	h := newHarness(t, Config{})
	h.serveUnknown("sales_1_efgh", nil)
	h.media.in <- twilio.MediaStreamMessage{Event: twilio.MediaEventStop}
	h.waitDone()

	assert.ErrorIs(t, h.err, errStoppedBeforeStart)
	_, known := h.life.LookupSession("sales_1_efgh")
	assert.False(t, known)
	assert.Empty(t, h.connector.conns)
}

func TestUnknownCallStartTimeoutClosesStream(t *testing.T) {
	h := newHarness(t, Config{StreamStartTimeout: 20 * time.Millisecond})
	h.serveUnknown("sales_1_ijkl", nil)
	h.waitDone()

	assert.Error(t, h.err)
	assert.True(t, h.media.isClosed())
	_, known := h.life.LookupSession("sales_1_ijkl")
	assert.False(t, known)
}

func TestStreamParamsPreferStartFrame(t *testing.T) {
	merged := streamParams(
		map[string]string{"purpose": "query", "ownerName": "Jo"},
		&twilio.StreamStart{CustomParameters: map[string]string{"purpose": "frame", "ownerName": " "}},
	)
	assert.Equal(t, map[string]string{"purpose": "frame", "ownerName": "Jo"}, merged)
	assert.Empty(t, streamParams(nil, nil))
}
