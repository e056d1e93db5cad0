package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dnovak/llmrelay/internal/credentials"
	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/providers"
)

// Config represents the complete application configuration.
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Credentials   CredentialConfig
	Providers     ProvidersConfig
	Observability ObservabilityConfig
	Router        RouterConfig
	Environment   string
}

// RouterConfig tunes the candidate attempt loop.
type RouterConfig struct {
	// AttemptTimeout bounds a single candidate's call, independent of
	// any caller-supplied request deadline.
	AttemptTimeout time.Duration
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// StoreConfig locates the embedded SQLite database that backs the
// catalog, health tracker and usage log.
type StoreConfig struct {
	Path string
}

// CredentialConfig locates the master key used to encrypt provider
// tokens at rest. See internal/credentials.
type CredentialConfig struct {
	KeyPath string
}

// ProvidersConfig holds per-provider credentials and transport tuning,
// keyed by domain.Provider. A config-supplied APIKey takes precedence
// over anything in the encrypted credential store; see
// internal/credentials.ResolveBaseURL for the BaseURL fallback.
type ProvidersConfig map[domain.Provider]providers.Config

// ObservabilityConfig holds logging and metrics configuration.
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
	MetricsPort    int
}

// providerEnvPrefixes maps each provider to the env var prefix used to
// configure it, e.g. ProviderOpenAI -> "OPENAI" yields OPENAI_API_KEY,
// OPENAI_BASE_URL, OPENAI_TIMEOUT, OPENAI_MAX_RETRIES.
var providerEnvPrefixes = map[domain.Provider]string{
	domain.ProviderOpenAI:       "OPENAI",
	domain.ProviderGoogle:       "GOOGLE",
	domain.ProviderHuggingFace:  "HUGGINGFACE",
	domain.ProviderAnthropic:    "ANTHROPIC",
	domain.ProviderCohere:       "COHERE",
	domain.ProviderGroq:         "GROQ",
	domain.ProviderDeepSeek:     "DEEPSEEK",
	domain.ProviderTogether:     "TOGETHER",
	domain.ProviderCloudflare:   "CLOUDFLARE",
	domain.ProviderCerebras:     "CEREBRAS",
	domain.ProviderMistral:      "MISTRAL",
	domain.ProviderClarifai:     "CLARIFAI",
	domain.ProviderGitHubModels: "GITHUB_MODELS",
	domain.ProviderOpenRouter:   "OPENROUTER",
}

// New creates a Config by loading environment variables, falling back
// to .env in the working directory when present.
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Store:       loadStoreConfig(),
		Credentials: loadCredentialConfig(),
		Providers:   loadProvidersConfig(),
		Router: RouterConfig{
			AttemptTimeout: getEnvAsDuration("ROUTER_ATTEMPT_TIMEOUT", 60*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func loadStoreConfig() StoreConfig {
	path := getEnv("STORE_PATH", "")
	if path == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			path = filepath.Join(dir, "llmrelay", "llmrelay.db")
		} else {
			path = "llmrelay.db"
		}
	}
	return StoreConfig{Path: path}
}

func loadCredentialConfig() CredentialConfig {
	path := getEnv("CREDENTIAL_KEY_PATH", "")
	if path == "" {
		if p, err := credentials.DefaultKeyPath(); err == nil {
			path = p
		} else {
			path = "secret.key"
		}
	}
	return CredentialConfig{KeyPath: path}
}

func loadProvidersConfig() ProvidersConfig {
	out := make(ProvidersConfig, len(providerEnvPrefixes))
	for provider, prefix := range providerEnvPrefixes {
		out[provider] = providers.Config{
			APIKey:     getEnv(prefix+"_API_KEY", ""),
			BaseURL:    getEnv(prefix+"_BASE_URL", ""),
			Timeout:    getEnvAsDuration(prefix+"_TIMEOUT", 60*time.Second),
			MaxRetries: getEnvAsInt(prefix+"_MAX_RETRIES", 2),
			RetryDelay: getEnvAsDuration(prefix+"_RETRY_DELAY", 500*time.Millisecond),
		}
	}
	return out
}

// Validate checks required configuration fields.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	if c.Credentials.KeyPath == "" {
		return fmt.Errorf("credential key path is required")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server's listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
