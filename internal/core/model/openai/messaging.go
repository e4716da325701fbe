package openai

// SendSessionUpdate configures persona, voice, audio format and turn detection.
func (c *Conn) SendSessionUpdate(p SessionParams) error {
	return c.send(BuildSessionUpdate(p))
}

// SendGreeting asks the engine to speak the opening line.
func (c *Conn) SendGreeting(instructions string) error {
	return c.send(map[string]interface{}{
		"type": "response.create",
		"response": map[string]interface{}{
			"instructions": instructions,
		},
	})
}

// AppendAudio forwards one base64 caller audio frame.
func (c *Conn) AppendAudio(payload string) error {
	return c.send(map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": payload,
	})
}

// SendFunctionResult returns a tool result and asks the engine to continue.
func (c *Conn) SendFunctionResult(callID, output string) error {
	if err := c.send(map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	}); err != nil {
		return err
	}
	return c.send(map[string]interface{}{"type": "response.create"})
}
