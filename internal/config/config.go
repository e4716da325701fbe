package config

import "time"

// BridgeConfig holds the outbound bridge service configuration
type BridgeConfig struct {
	Port string

	// PublicBaseURL is the externally reachable https base used in Twilio
	// callback URLs and, with the scheme swapped to wss, in stream URLs.
	PublicBaseURL string

	// Twilio configuration
	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioFromNumber        string
	TwilioValidateSignature bool

	// OpenAI realtime configuration
	Realtime RealtimeConfig

	// Call lifecycle tuning
	GreetingDelay      time.Duration
	AIConfigureTimeout time.Duration
	CallGracePeriod    time.Duration
	StaleCallTimeout   time.Duration
	SweepInterval      time.Duration

	// API protection
	APISecretKey   string
	RateLimitRPS   float64
	RateLimitBurst int
	EnableCORS     bool

	// Redis (optional)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Call outcome publishing and transcript archive (optional)
	PubSubProjectID  string
	PubSubCallTopic  string
	PubSubNamePrefix string
	TranscriptBucket string

	// Instance identifier for cross-pod session registry
	InstanceID string
}

// RealtimeConfig describes how every AI realtime session is opened and configured
type RealtimeConfig struct {
	APIKey             string
	URL                string
	Model              string
	TranscriptionModel string
	AudioFormat        string
	VAD                VADConfig
}

// VADConfig is the server-side turn detection tuning
type VADConfig struct {
	Threshold         float64
	PrefixPaddingMs   int
	SilenceDurationMs int
}

// DefaultBridgeConfig returns a config populated with the service defaults
func DefaultBridgeConfig() *BridgeConfig {
	return &BridgeConfig{
		Port: DefaultPort,
		Realtime: RealtimeConfig{
			URL:                DefaultRealtimeURL,
			Model:              DefaultRealtimeModel,
			TranscriptionModel: DefaultTranscriptionModel,
			AudioFormat:        TelephonyAudioFormat,
			VAD: VADConfig{
				Threshold:         DefaultVADThreshold,
				PrefixPaddingMs:   DefaultVADPrefixPaddingMs,
				SilenceDurationMs: DefaultVADSilenceDurationMs,
			},
		},
		GreetingDelay:      DefaultGreetingDelay,
		AIConfigureTimeout: DefaultAIConfigureTimeout,
		CallGracePeriod:    DefaultCallGracePeriod,
		StaleCallTimeout:   DefaultStaleCallTimeout,
		SweepInterval:      DefaultSweepInterval,
		RateLimitRPS:       DefaultRateLimitRPS,
		RateLimitBurst:     DefaultRateLimitBurst,
		EnableCORS:         true,
	}
}
