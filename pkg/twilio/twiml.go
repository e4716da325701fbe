package twilio

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go/twiml"
)

// CallIDParameter is the custom stream parameter carrying the bridge call id.
const CallIDParameter = "callId"

// AnswerURL is the webhook Twilio fetches when the callee answers.
func AnswerURL(publicBaseURL, callID string) string {
	return strings.TrimRight(publicBaseURL, "/") + "/twilio/answer/" + url.PathEscape(callID)
}

// StatusURL is the webhook Twilio posts call progress to.
func StatusURL(publicBaseURL, callID string) string {
	return strings.TrimRight(publicBaseURL, "/") + "/twilio/status/" + url.PathEscape(callID)
}

// StreamURL converts the public base to the media-stream websocket address.
func StreamURL(publicBaseURL, callID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(publicBaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid public base url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("public base url %q has no host", publicBaseURL)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/media-stream/" + url.PathEscape(callID)
	u.RawQuery = ""
	return u.String(), nil
}

// StreamInstructions renders the TwiML that connects the answered call to
// the media stream endpoint.
func StreamInstructions(publicBaseURL, callID string) (string, error) {
	streamURL, err := StreamURL(publicBaseURL, callID)
	if err != nil {
		return "", err
	}

	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{
			&twiml.VoiceStream{
				Url: streamURL,
				InnerElements: []twiml.Element{
					&twiml.VoiceParameter{Name: CallIDParameter, Value: callID},
				},
			},
		},
	}
	return twiml.Voice([]twiml.Element{connect})
}

// HangupInstructions renders TwiML that ends a call no longer known to the bridge.
func HangupInstructions() (string, error) {
	return twiml.Voice([]twiml.Element{&twiml.VoiceHangup{}})
}
