package config

import "time"

const (
	DefaultPort = "8082"

	// Realtime engine defaults
	DefaultRealtimeURL        = "wss://api.openai.com/v1/realtime"
	DefaultRealtimeModel      = "gpt-4o-realtime-preview"
	DefaultTranscriptionModel = "gpt-4o-transcribe"

	// TelephonyAudioFormat is 8kHz mono mu-law, what Twilio media streams carry.
	TelephonyAudioFormat = "g711_ulaw"

	DefaultVADThreshold         = 0.5
	DefaultVADPrefixPaddingMs   = 300
	DefaultVADSilenceDurationMs = 700

	// Connection Constants
	DefaultConnectionTimeout  = 30 * time.Second
	DefaultAIConfigureTimeout = 12 * time.Second
	DefaultStreamStartTimeout = 10 * time.Second
	DefaultWriteTimeout       = 10 * time.Second

	// Call lifecycle
	DefaultGreetingDelay    = 500 * time.Millisecond
	DefaultCallGracePeriod  = 60 * time.Second
	DefaultStaleCallTimeout = 2 * time.Minute
	DefaultSweepInterval    = 30 * time.Second

	DefaultRateLimitRPS   = 5.0
	DefaultRateLimitBurst = 10
)
