package openai

import (
	"strings"
)

const openAISessionExpiredCode = "session_expired"

// Server event types handled by the bridge
const (
	EventSessionCreated              = "session.created"
	EventSessionUpdated              = "session.updated"
	EventResponseAudioDelta          = "response.audio.delta"
	EventResponseOutputAudioDelta    = "response.output_audio.delta"
	EventResponseAudioTranscript     = "response.audio_transcript.delta"
	EventResponseOutputTranscript    = "response.output_audio_transcript.delta"
	EventInputTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	EventResponseDone                = "response.done"
	EventFunctionCallArgumentsDone   = "response.function_call_arguments.done"
	EventSpeechStarted               = "input_audio_buffer.speech_started"
	EventError                       = "error"
)

// Event is a decoded realtime server event.
type Event map[string]interface{}

func (e Event) Type() string {
	return e.String("type")
}

// String returns a top level string field or "".
func (e Event) String(key string) string {
	if v, ok := e[key].(string); ok {
		return v
	}
	return ""
}

// IsAudioDelta reports whether the event carries engine audio output.
func (e Event) IsAudioDelta() bool {
	t := e.Type()
	return t == EventResponseAudioDelta || t == EventResponseOutputAudioDelta
}

// IsAssistantTranscriptDelta reports whether the event carries the engine's own speech text.
func (e Event) IsAssistantTranscriptDelta() bool {
	t := e.Type()
	return t == EventResponseAudioTranscript || t == EventResponseOutputTranscript
}

// IsVerbose filters the high-frequency events out of debug logging.
func (e Event) IsVerbose() bool {
	t := e.Type()
	return strings.Contains(t, "delta") || strings.Contains(t, "audio_buffer")
}

// ErrorInfo is the payload of an error event.
type ErrorInfo struct {
	Type    string
	Code    string
	Message string
}

// Fatal reports whether the engine invalidated the session.
func (e ErrorInfo) Fatal() bool {
	return e.Code == openAISessionExpiredCode
}

// Error extracts the error payload of an error event.
func (e Event) Error() ErrorInfo {
	var info ErrorInfo
	if errorData, ok := e["error"].(map[string]interface{}); ok {
		info.Type, _ = errorData["type"].(string)
		info.Code, _ = errorData["code"].(string)
		info.Message, _ = errorData["message"].(string)
	}
	return info
}

// FunctionCall is a completed tool invocation request.
type FunctionCall struct {
	CallID    string
	Name      string
	Arguments string
}

// FunctionCall extracts the tool call of a function_call_arguments.done event.
func (e Event) FunctionCall() (FunctionCall, bool) {
	fc := FunctionCall{
		CallID:    e.String("call_id"),
		Name:      e.String("name"),
		Arguments: e.String("arguments"),
	}
	if fc.CallID == "" || fc.Name == "" {
		return FunctionCall{}, false
	}
	if fc.Arguments == "" {
		fc.Arguments = "{}"
	}
	return fc, true
}
