package twilio

// Media stream event names sent by Twilio
const (
	MediaEventConnected = "connected"
	MediaEventStart     = "start"
	MediaEventMedia     = "media"
	MediaEventMark      = "mark"
	MediaEventStop      = "stop"
)

// MediaStreamMessage is one inbound frame on the media stream websocket.
type MediaStreamMessage struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSid      string        `json:"streamSid,omitempty"`
	Start          *StreamStart  `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Mark           *MarkPayload  `json:"mark,omitempty"`
	Stop           *StreamStop   `json:"stop,omitempty"`
}

type StreamStart struct {
	StreamSid        string            `json:"streamSid"`
	AccountSid       string            `json:"accountSid,omitempty"`
	CallSid          string            `json:"callSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      *MediaFormat      `json:"mediaFormat,omitempty"`
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

type MarkPayload struct {
	Name string `json:"name"`
}

type StreamStop struct {
	AccountSid string `json:"accountSid,omitempty"`
	CallSid    string `json:"callSid,omitempty"`
}

// OutboundMedia is a frame of engine audio written back to the caller.
type OutboundMedia struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid"`
	Media     MediaPayload `json:"media"`
}

// NewOutboundMedia wraps a base64 mu-law payload for the given stream.
func NewOutboundMedia(streamSid, payload string) OutboundMedia {
	return OutboundMedia{
		Event:     MediaEventMedia,
		StreamSid: streamSid,
		Media:     MediaPayload{Payload: payload},
	}
}

// ClearMessage drops audio Twilio has buffered but not yet played.
type ClearMessage struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
}

func NewClearMessage(streamSid string) ClearMessage {
	return ClearMessage{Event: "clear", StreamSid: streamSid}
}
