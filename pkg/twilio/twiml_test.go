package twilio

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackURLs(t *testing.T) {
	assert.Equal(t, "https://bridge.example.com/twilio/answer/support_1_ab", AnswerURL("https://bridge.example.com/", "support_1_ab"))
	assert.Equal(t, "https://bridge.example.com/twilio/status/support_1_ab", StatusURL("https://bridge.example.com", "support_1_ab"))
}

func TestStreamURLSwapsScheme(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://bridge.example.com", "wss://bridge.example.com/media-stream/c1"},
		{"https://bridge.example.com/voice/", "wss://bridge.example.com/voice/media-stream/c1"},
		{"http://localhost:8082", "ws://localhost:8082/media-stream/c1"},
	}
	for _, tt := range tests {
		got, err := StreamURL(tt.base, "c1")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := StreamURL("not a url", "c1")
	assert.Error(t, err)
}

func TestStreamInstructions(t *testing.T) {
	xml, err := StreamInstructions("https://bridge.example.com", "support_1_ab")
	require.NoError(t, err)
	assert.Contains(t, xml, "<Response>")
	assert.Contains(t, xml, "<Connect>")
	assert.Contains(t, xml, "wss://bridge.example.com/media-stream/support_1_ab")
	assert.Contains(t, xml, CallIDParameter)
}

func TestMaskNumber(t *testing.T) {
	assert.Equal(t, "********4567", maskNumber("+15551234567"))
	assert.Equal(t, "123", maskNumber("123"))
}

func TestMediaStreamMessageDecoding(t *testing.T) {
	raw := `{"event":"start","streamSid":"MZ1","start":{"streamSid":"MZ1","callSid":"CA1","customParameters":{"callId":"c1"},"mediaFormat":{"encoding":"audio/x-mulaw","sampleRate":8000,"channels":1}}}`
	var msg MediaStreamMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	require.NotNil(t, msg.Start)
	assert.Equal(t, "c1", msg.Start.CustomParameters[CallIDParameter])
	assert.Equal(t, 8000, msg.Start.MediaFormat.SampleRate)

	out, err := json.Marshal(NewOutboundMedia("MZ1", "AAAA"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"media","streamSid":"MZ1","media":{"payload":"AAAA"}}`, string(out))
}

func TestDisabledServiceReturnsErrDisabled(t *testing.T) {
	s := NewCallService("", "", "+15550000000")
	assert.False(t, s.IsEnabled())
	_, err := s.PlaceCall("+1", "a", "b")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, s.EndCall("CA1"), ErrDisabled)
	_, err = s.SendMessage("+1", "hi")
	assert.ErrorIs(t, err, ErrDisabled)
}
