package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadConfigFromEnv loads the bridge configuration from environment
func LoadConfigFromEnv() *BridgeConfig {
	cfg := DefaultBridgeConfig()

	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.PublicBaseURL = strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", ""), "/")

	// Twilio configuration
	cfg.TwilioAccountSID = getEnvOrDefault("TWILIO_ACCOUNT_SID", "")
	cfg.TwilioAuthToken = getEnvOrDefault("TWILIO_AUTH_TOKEN", "")
	cfg.TwilioFromNumber = getEnvOrDefault("TWILIO_FROM_NUMBER", "")
	cfg.TwilioValidateSignature = getEnvAsBoolOrDefault("TWILIO_VALIDATE_SIGNATURE", false)

	// OpenAI realtime configuration
	cfg.Realtime.APIKey = getEnvOrDefault("OPENAI_API_KEY", "")
	cfg.Realtime.URL = getEnvOrDefault("OPENAI_REALTIME_URL", cfg.Realtime.URL)
	cfg.Realtime.Model = getEnvOrDefault("OPENAI_REALTIME_MODEL", cfg.Realtime.Model)
	cfg.Realtime.TranscriptionModel = getEnvOrDefault("OPENAI_TRANSCRIPTION_MODEL", cfg.Realtime.TranscriptionModel)
	cfg.Realtime.VAD.Threshold = getEnvAsFloatOrDefault("VAD_THRESHOLD", cfg.Realtime.VAD.Threshold)
	cfg.Realtime.VAD.PrefixPaddingMs = getEnvAsIntOrDefault("VAD_PREFIX_PADDING_MS", cfg.Realtime.VAD.PrefixPaddingMs)
	cfg.Realtime.VAD.SilenceDurationMs = getEnvAsIntOrDefault("VAD_SILENCE_DURATION_MS", cfg.Realtime.VAD.SilenceDurationMs)

	// Call lifecycle tuning
	cfg.GreetingDelay = getEnvAsDurationOrDefault("GREETING_DELAY_MS", time.Millisecond, cfg.GreetingDelay)
	cfg.AIConfigureTimeout = getEnvAsDurationOrDefault("AI_CONFIGURE_TIMEOUT_SECONDS", time.Second, cfg.AIConfigureTimeout)
	cfg.CallGracePeriod = getEnvAsDurationOrDefault("CALL_GRACE_PERIOD_SECONDS", time.Second, cfg.CallGracePeriod)
	cfg.StaleCallTimeout = getEnvAsDurationOrDefault("STALE_CALL_TIMEOUT_SECONDS", time.Second, cfg.StaleCallTimeout)
	cfg.SweepInterval = getEnvAsDurationOrDefault("SWEEP_INTERVAL_SECONDS", time.Second, cfg.SweepInterval)

	// API protection
	cfg.APISecretKey = getEnvOrDefault("API_SECRET_KEY", "")
	cfg.RateLimitRPS = getEnvAsFloatOrDefault("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = getEnvAsIntOrDefault("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.EnableCORS = getEnvAsBoolOrDefault("ENABLE_CORS", cfg.EnableCORS)

	// Redis is optional; an empty host disables the cross-pod registry
	cfg.RedisHost = getEnvOrDefault("REDIS_HOST", "")
	cfg.RedisPort = getEnvOrDefault("REDIS_PORT", "6379")
	cfg.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", "")

	cfg.PubSubProjectID = getEnvOrDefault("PUBSUB_PROJECT_ID", "")
	cfg.PubSubCallTopic = getEnvOrDefault("PUBSUB_CALL_EVENTS_TOPIC", "")
	cfg.PubSubNamePrefix = getEnvOrDefault("PUBSUB_NAME_PREFIX", "")
	cfg.TranscriptBucket = getEnvOrDefault("TRANSCRIPT_BUCKET", "")

	cfg.InstanceID = getEnvOrDefault("INSTANCE_ID", getDynamicInstanceID())

	return cfg
}

// Validate reports configuration that makes call placement impossible.
func (c *BridgeConfig) Validate() error {
	if c.PublicBaseURL == "" {
		return fmt.Errorf("PUBLIC_BASE_URL is required")
	}
	if !strings.HasPrefix(c.PublicBaseURL, "https://") && !strings.HasPrefix(c.PublicBaseURL, "http://") {
		return fmt.Errorf("PUBLIC_BASE_URL must be an http(s) URL, got %q", c.PublicBaseURL)
	}
	if c.Realtime.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault reads an integer count of unit.
func getEnvAsDurationOrDefault(key string, unit time.Duration, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return time.Duration(n) * unit
		}
	}
	return defaultValue
}

// getDynamicInstanceID prefers the hostname (pod name in Kubernetes) and
// falls back to a timestamp based id.
func getDynamicInstanceID() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return fmt.Sprintf("outbound-bridge-%d", time.Now().UnixNano())
}
