package openai

import (
	"github.com/ClareAI/astra-outbound-bridge/internal/config"
)

// ToolDefinition describes one function the engine may call mid-conversation.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// SessionParams is everything needed to configure a call's realtime session.
type SessionParams struct {
	Instructions       string
	Voice              string
	Speed              float64
	AudioFormat        string
	TranscriptionModel string
	VAD                config.VADConfig
	Tools              []ToolDefinition
}

// BuildSessionUpdate renders the session.update client event.
func BuildSessionUpdate(p SessionParams) map[string]interface{} {
	format := p.AudioFormat
	if format == "" {
		format = config.TelephonyAudioFormat
	}

	session := map[string]interface{}{
		"modalities":          []string{"text", "audio"},
		"instructions":        p.Instructions,
		"voice":               p.Voice,
		"input_audio_format":  format,
		"output_audio_format": format,
		"turn_detection": map[string]interface{}{
			"type":                "server_vad",
			"threshold":           p.VAD.Threshold,
			"prefix_padding_ms":   p.VAD.PrefixPaddingMs,
			"silence_duration_ms": p.VAD.SilenceDurationMs,
		},
	}
	if p.TranscriptionModel != "" {
		session["input_audio_transcription"] = map[string]interface{}{
			"model": p.TranscriptionModel,
		}
	}
	if p.Speed > 0 {
		session["speed"] = p.Speed
	}

	if len(p.Tools) > 0 {
		tools := make([]map[string]interface{}, 0, len(p.Tools))
		for _, t := range p.Tools {
			tools = append(tools, map[string]interface{}{
				"type":        "function",
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			})
		}
		session["tools"] = tools
		session["tool_choice"] = "auto"
	}

	return map[string]interface{}{
		"type":    "session.update",
		"session": session,
	}
}
