package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnovak/llmrelay/internal/domain"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.False(t, cfg.Server.TLS.Enabled)
				assert.NotEmpty(t, cfg.Store.Path)
				assert.NotEmpty(t, cfg.Credentials.KeyPath)
			},
		},
		{
			name: "custom timeouts",
			envVars: map[string]string{
				"SERVER_READ_TIMEOUT":  "60s",
				"SERVER_WRITE_TIMEOUT": "90s",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
			},
		},
		{
			name: "observability configuration",
			envVars: map[string]string{
				"LOG_LEVEL":       "debug",
				"LOG_FORMAT":      "console",
				"METRICS_ENABLED": "true",
				"METRICS_PORT":    "9091",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Observability.LogLevel)
				assert.Equal(t, "console", cfg.Observability.LogFormat)
				assert.True(t, cfg.Observability.MetricsEnabled)
				assert.Equal(t, 9091, cfg.Observability.MetricsPort)
			},
		},
		{
			name: "TLS configuration overrides",
			envVars: map[string]string{
				"TLS_ENABLED":   "true",
				"TLS_CERT_FILE": "/etc/ssl/certs/server.crt",
				"TLS_KEY_FILE":  "/etc/ssl/private/server.key",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Server.TLS.Enabled)
				assert.Equal(t, "/etc/ssl/certs/server.crt", cfg.Server.TLS.CertFile)
				assert.Equal(t, "/etc/ssl/private/server.key", cfg.Server.TLS.KeyFile)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "provider credentials loaded per prefix",
			envVars: map[string]string{
				"GROQ_API_KEY":       "gsk-test",
				"GROQ_BASE_URL":      "https://api.groq.com/openai/v1",
				"GROQ_MAX_RETRIES":   "5",
				"ANTHROPIC_API_KEY":  "sk-ant-test",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				groq := cfg.Providers[domain.ProviderGroq]
				assert.Equal(t, "gsk-test", groq.APIKey)
				assert.Equal(t, "https://api.groq.com/openai/v1", groq.BaseURL)
				assert.Equal(t, 5, groq.MaxRetries)
				assert.Equal(t, "sk-ant-test", cfg.Providers[domain.ProviderAnthropic].APIKey)
				assert.Len(t, cfg.Providers, len(providerEnvPrefixes))
			},
		},
		{
			name: "router attempt timeout override",
			envVars: map[string]string{
				"ROUTER_ATTEMPT_TIMEOUT": "15s",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 15*time.Second, cfg.Router.AttemptTimeout)
			},
		},
		{
			name: "store path override",
			envVars: map[string]string{
				"STORE_PATH": "/tmp/llmrelay-test.db",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/tmp/llmrelay-test.db", cfg.Store.Path)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: &Config{
				Store:         StoreConfig{Path: "/tmp/llmrelay.db"},
				Credentials:   CredentialConfig{KeyPath: "/tmp/secret.key"},
				Observability: ObservabilityConfig{LogLevel: "info"},
			},
			wantErr: false,
		},
		{
			name: "missing store path",
			config: &Config{
				Credentials:   CredentialConfig{KeyPath: "/tmp/secret.key"},
				Observability: ObservabilityConfig{LogLevel: "info"},
			},
			wantErr: true,
			errMsg:  "store path is required",
		},
		{
			name: "missing credential key path",
			config: &Config{
				Store:         StoreConfig{Path: "/tmp/llmrelay.db"},
				Observability: ObservabilityConfig{LogLevel: "info"},
			},
			wantErr: true,
			errMsg:  "credential key path is required",
		},
		{
			name: "missing log level",
			config: &Config{
				Store:       StoreConfig{Path: "/tmp/llmrelay.db"},
				Credentials: CredentialConfig{KeyPath: "/tmp/secret.key"},
			},
			wantErr: true,
			errMsg:  "log level is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"dev", "dev", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"development", "development", true},
		{"dev", "dev", true},
		{"production", "production", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsDevelopment())
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "0.0.0.0",
		Port: 8080,
	}

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue int
		want         int
	}{
		{"valid int", "TEST_INT", "42", 10, 42},
		{"empty value", "TEST_INT", "", 10, 10},
		{"invalid int", "TEST_INT", "not-a-number", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsInt(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", "TEST_BOOL", "true", false, true},
		{"false", "TEST_BOOL", "false", true, false},
		{"empty value", "TEST_BOOL", "", true, true},
		{"invalid bool", "TEST_BOOL", "not-a-bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsBool(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue time.Duration
		want         time.Duration
	}{
		{"valid duration", "TEST_DURATION", "30s", 10 * time.Second, 30 * time.Second},
		{"empty value", "TEST_DURATION", "", 10 * time.Second, 10 * time.Second},
		{"invalid duration", "TEST_DURATION", "not-a-duration", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsDuration(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}
