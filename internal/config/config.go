package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the lecture notes service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Transcription provider configuration
	TranscriptionAPIKey         string   `envconfig:"TRANSCRIPTION_API_KEY" default:""`
	TranscriptionBaseURL        string   `envconfig:"TRANSCRIPTION_BASE_URL" default:"https://api.transcribe.example.com/v1"`
	TranscriptionTargetLanguage string   `envconfig:"TRANSCRIPTION_TARGET_LANGUAGE" default:"en"`
	TranscriptionLanguageHints  []string `envconfig:"TRANSCRIPTION_LANGUAGE_HINTS" default:"en,es"` // Bilingual hints sent with every job

	// Preflight and polling
	PreflightTimeout time.Duration `envconfig:"PREFLIGHT_TIMEOUT" default:"10s"`
	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	PollMaxDuration  time.Duration `envconfig:"POLL_MAX_DURATION" default:"0s"` // 0 disables the polling deadline

	// Language model providers (OpenAI-compatible chat endpoints)
	PrimaryLLMAPIKey     string        `envconfig:"PRIMARY_LLM_API_KEY" default:""`
	PrimaryLLMBaseURL    string        `envconfig:"PRIMARY_LLM_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/openai"`
	SecondaryLLMAPIKey   string        `envconfig:"SECONDARY_LLM_API_KEY" default:""`
	SecondaryLLMBaseURL  string        `envconfig:"SECONDARY_LLM_BASE_URL" default:"https://api.openai.com/v1"`
	NotesModelOverride   string        `envconfig:"NOTES_MODEL_OVERRIDE" default:""` // Tried before the built-in model list
	ModelChainsFile      string        `envconfig:"MODEL_CHAINS_FILE" default:""`
	ModelFallbackBackoff time.Duration `envconfig:"MODEL_FALLBACK_BACKOFF" default:"2s"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int           `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout time.Duration `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30s"`

	// Storage and messaging
	DatabasePath string `envconfig:"DATABASE_PATH" default:"./data/lectures.db"` // Empty keeps lectures in memory
	NATSURL      string `envconfig:"NATS_URL" default:""`                        // Empty disables event publishing

	// Background reconciliation of lectures stuck in processing
	ReconcileSchedule string `envconfig:"RECONCILE_SCHEDULE" default:"@every 1m"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
	OTLPEndpoint   string `envconfig:"OTLP_ENDPOINT" default:""`
	OTLPInsecure   bool   `envconfig:"OTLP_INSECURE" default:"true"`
	TraceStdout    bool   `envconfig:"TRACE_STDOUT" default:"false"`
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.PreflightTimeout <= 0 {
		return fmt.Errorf("PREFLIGHT_TIMEOUT must be positive")
	}
	if c.ModelFallbackBackoff < 0 {
		return fmt.Errorf("MODEL_FALLBACK_BACKOFF must be >= 0")
	}
	if strings.TrimSpace(c.TranscriptionTargetLanguage) == "" {
		return fmt.Errorf("TRANSCRIPTION_TARGET_LANGUAGE must not be empty")
	}
	return nil
}

// TranscriptionConfigured reports whether a transcription provider key is present.
func (c *Config) TranscriptionConfigured() bool {
	return strings.TrimSpace(c.TranscriptionAPIKey) != ""
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
