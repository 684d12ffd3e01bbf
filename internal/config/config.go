// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.reengage/config.yaml or ./config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model, embedder selection
//   - Retrieval: top-k and minimum similarity score for grounding
//   - Dialogue: history window, session TTL
//   - Offer: the re-engagement offer template and show cap
//   - HTTP: listen address, API key, WhatsApp webhook credentials
//
// Security: sensitive fields (API key, webhook secret) are never logged;
// they are masked in MarshalJSON/String.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidTopK indicates the retrieval top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top_k")

	// ErrInvalidMinScore indicates the retrieval score threshold is out of range.
	ErrInvalidMinScore = errors.New("invalid retrieval min_score")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidOfferCap indicates the offer show cap is negative.
	ErrInvalidOfferCap = errors.New("invalid offer max_shows")

	// ErrInvalidSessionTTL indicates the session TTL is negative.
	ErrInvalidSessionTTL = errors.New("invalid session TTL")

	// ErrInvalidListenAddr indicates the HTTP listen address is empty.
	ErrInvalidListenAddr = errors.New("invalid listen address")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
)

// DefaultGeminiEmbedderModel is the default Gemini embedder model.
const DefaultGeminiEmbedderModel = "gemini-embedding-001"

// RetrievalConfig bounds the grounding search.
type RetrievalConfig struct {
	TopK     int     `mapstructure:"top_k" json:"top_k"`
	MinScore float64 `mapstructure:"min_score" json:"min_score"`
}

// OfferConfig is the re-engagement offer template shown to hesitant users.
type OfferConfig struct {
	Title       string `mapstructure:"title" json:"title"`
	Message     string `mapstructure:"message" json:"message"`
	UrgencyText string `mapstructure:"urgency_text" json:"urgency_text"`
	CTA         string `mapstructure:"cta" json:"cta"`
	MaxShows    int    `mapstructure:"max_shows" json:"max_shows"`
}

// WhatsAppConfig holds webhook credentials.
// SENSITIVE: AppSecret is masked in MarshalJSON.
type WhatsAppConfig struct {
	VerifyToken string `mapstructure:"verify_token" json:"verify_token"`
	AppSecret   string `mapstructure:"app_secret" json:"app_secret"` // SENSITIVE: masked in MarshalJSON
}

// HTTPConfig configures the serve mode transport.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`     // "googleai" (default), "ollama"
	ModelName     string `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash", "llama3.3"
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Grounding retrieval
	Retrieval RetrievalConfig `mapstructure:"retrieval" json:"retrieval"`

	// Dialogue configuration
	HistoryWindow   int           `mapstructure:"history_window" json:"history_window"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" json:"session_ttl"` // 0 disables expiry
	ApplicationLink string        `mapstructure:"application_link" json:"application_link"`

	// Offer template
	Offer OfferConfig `mapstructure:"offer" json:"offer"`

	// Transport
	HTTP     HTTPConfig     `mapstructure:"http" json:"http"`
	APIKey   string         `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp" json:"whatsapp"`

	// Logging
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".reengage")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGoogleAI)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Retrieval defaults
	viper.SetDefault("retrieval.top_k", 5)
	viper.SetDefault("retrieval.min_score", 0.35)

	// Dialogue defaults
	viper.SetDefault("history_window", 10)
	viper.SetDefault("session_ttl", "24h")
	viper.SetDefault("application_link", "https://jupiter.money/edge-plus-upi-rupay-credit-card/")

	// Offer defaults
	viper.SetDefault("offer.title", "🎉 Limited Time Offer - Just for You!")
	viper.SetDefault("offer.message", "Complete your Jupiter Edge+ card application in the next 24 hours and get ₹250 Amazon voucher as a welcome gift!")
	viper.SetDefault("offer.urgency_text", "⏰ This exclusive offer expires in 24 hours!")
	viper.SetDefault("offer.cta", "Complete your application now to claim this offer.")
	viper.SetDefault("offer.max_shows", 1)

	// Transport defaults
	viper.SetDefault("http.addr", "127.0.0.1:8080")
	viper.SetDefault("whatsapp.verify_token", "")
	viper.SetDefault("whatsapp.app_secret", "")
	viper.SetDefault("api_key", "")

	// Logging defaults
	viper.SetDefault("log_json", false)
	viper.SetDefault("log_level", "info")
}

// bindEnvVariables binds sensitive environment variables explicitly.
// Secrets come only from the environment:
//  1. GEMINI_API_KEY - Read directly by Genkit (not via Viper), validated in cfg.Validate()
//  2. REENGAGE_API_KEY - API key required by the REST endpoints
//  3. WHATSAPP_APP_SECRET / WHATSAPP_VERIFY_TOKEN - webhook credentials
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("api_key", "REENGAGE_API_KEY")
	mustBind("whatsapp.app_secret", "WHATSAPP_APP_SECRET")
	mustBind("whatsapp.verify_token", "WHATSAPP_VERIFY_TOKEN")

	// AI provider and model overrides
	mustBind("provider", "REENGAGE_PROVIDER")
	mustBind("model_name", "REENGAGE_MODEL_NAME")
	mustBind("ollama_host", "REENGAGE_OLLAMA_HOST")
	mustBind("http.addr", "REENGAGE_HTTP_ADDR")

	// NOTE: GEMINI_API_KEY is read directly by Genkit, not via Viper.
	// Validation checks its presence based on the selected provider in cfg.Validate()
}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty when provider is %q",
				ErrInvalidOllamaHost, ProviderOllama)
		}
	default:
		return fmt.Errorf("%w: %q is not supported, must be one of: %v",
			ErrInvalidProvider, c.Provider, []string{ProviderGoogleAI, ProviderOllama})
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidTopK, c.Retrieval.TopK)
	}

	// Cosine similarity over normalized text embeddings lands in [-1, 1];
	// a negative threshold would admit anti-correlated chunks.
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f", ErrInvalidMinScore, c.Retrieval.MinScore)
	}

	if c.HistoryWindow < 1 || c.HistoryWindow > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidHistoryWindow, c.HistoryWindow)
	}

	if c.Offer.MaxShows < 0 {
		return fmt.Errorf("%w: must not be negative, got %d", ErrInvalidOfferCap, c.Offer.MaxShows)
	}

	if c.SessionTTL < 0 {
		return fmt.Errorf("%w: must not be negative, got %v", ErrInvalidSessionTTL, c.SessionTTL)
	}

	if c.HTTP.Addr == "" {
		return fmt.Errorf("%w: http.addr cannot be empty", ErrInvalidListenAddr)
	}

	return nil
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full blocks U+2588) to avoid substring matching:
// - "****" failed: secrets containing "*" leaked
// - "[REDACTED]" failed: secrets containing "A", "D", "E", etc. leaked
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - APIKey
//   - WhatsApp.AppSecret, WhatsApp.VerifyToken
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIKey = maskSecret(a.APIKey)
	a.WhatsApp.AppSecret = maskSecret(a.WhatsApp.AppSecret)
	a.WhatsApp.VerifyToken = maskSecret(a.WhatsApp.VerifyToken)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
