// Package app is the central wiring point for the gateway's dependencies,
// grounded on app/dependencies.go's Dependencies/NewDependencies/Close
// pattern: one struct holding every constructed component, one
// constructor that builds them in order, one Close that tears them down.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dnovak/llmrelay/config"
	"github.com/dnovak/llmrelay/internal/catalog"
	"github.com/dnovak/llmrelay/internal/credentials"
	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/health"
	"github.com/dnovak/llmrelay/internal/httpapi"
	"github.com/dnovak/llmrelay/internal/observability"
	"github.com/dnovak/llmrelay/internal/providers"
	"github.com/dnovak/llmrelay/internal/providers/anthropic"
	"github.com/dnovak/llmrelay/internal/providers/cohere"
	"github.com/dnovak/llmrelay/internal/providers/compat"
	"github.com/dnovak/llmrelay/internal/providers/google"
	"github.com/dnovak/llmrelay/internal/providers/huggingface"
	"github.com/dnovak/llmrelay/internal/refresh"
	"github.com/dnovak/llmrelay/internal/router"
	"github.com/dnovak/llmrelay/internal/store"
	"github.com/dnovak/llmrelay/internal/usage"
)

// Dependencies holds every component the gateway needs, wired once at
// startup and shared by both the HTTP server and the CLI.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *store.DB
	Credentials *credentials.Store
	Catalog     *catalog.Store
	Health      *health.Tracker
	Usage       *usage.Logger
	Registry    *providers.Registry
	Router      *router.Router
	Refresher   *refresh.Refresher
	Handler     *httpapi.Handler

	fallbackOrder []domain.Provider
}

// registrationOrder is the order providers are probed and, if
// configured, appended to the router's fallback order. The first five
// entries preserve original_source/src/providers/router.rs::from_config's
// exact sequence (HuggingFace, Google, Groq, DeepSeek, Together); the
// remainder are this module's supplemented providers, appended after.
var registrationOrder = []domain.Provider{
	domain.ProviderHuggingFace, domain.ProviderGoogle, domain.ProviderGroq,
	domain.ProviderDeepSeek, domain.ProviderTogether,
	domain.ProviderOpenAI, domain.ProviderAnthropic, domain.ProviderCohere,
	domain.ProviderCerebras, domain.ProviderMistral, domain.ProviderOpenRouter,
	domain.ProviderGitHubModels, domain.ProviderCloudflare, domain.ProviderClarifai,
}

// cloudflareAndClarifaiUnwired names the two providers this module
// recognizes (enum, catalog seed, credential store) but never builds a
// real adapter for: no reference repo in the pack exercises either
// vendor's wire format. Selecting one surfaces ProviderNotConfigured
// rather than panicking on a missing registry entry.
var cloudflareAndClarifaiUnwired = map[domain.Provider]bool{
	domain.ProviderCloudflare: true,
	domain.ProviderClarifai:   true,
}

// New builds and wires all dependencies.
func New(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	logger, err := observability.NewZapLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	d := &Dependencies{Config: cfg, Logger: logger}

	if err := d.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := d.initCredentials(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize credentials: %w", err)
	}
	if err := d.initCatalog(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	if err := d.initProviders(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}
	d.initRouter(cfg)

	logger.Info("dependencies initialized", zap.Int("providers_configured", len(d.Registry.Configured())))
	return d, nil
}

func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	db, err := store.Open(ctx, cfg.Store.Path, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db
	d.Logger.Info("store opened", zap.String("path", cfg.Store.Path))
	return nil
}

func (d *Dependencies) initCredentials(cfg *config.Config) error {
	credStore, err := credentials.Open(d.DB, cfg.Credentials.KeyPath, d.Logger)
	if err != nil {
		return err
	}
	d.Credentials = credStore
	return nil
}

func (d *Dependencies) initCatalog(ctx context.Context) error {
	d.Catalog = catalog.New(d.DB)
	d.Health = health.New(d.DB)
	d.Usage = usage.New(d.DB)
	if err := d.Catalog.SeedDefaults(ctx); err != nil {
		return err
	}
	return nil
}

// initProviders builds one adapter per configured provider. A static API
// key in Config wins over a credential stored via `add-service`; either
// way the adapter's BaseURL is resolved through
// credentials.ResolveBaseURL so a HuggingFace default still applies when
// neither source sets one explicitly.
func (d *Dependencies) initProviders(ctx context.Context, cfg *config.Config) error {
	registry := providers.NewRegistry()

	for _, provider := range registrationOrder {
		if cloudflareAndClarifaiUnwired[provider] {
			continue
		}

		pcfg, ok := cfg.Providers[provider]
		apiKey, baseURL := "", ""
		if ok {
			apiKey, baseURL = pcfg.APIKey, pcfg.BaseURL
		}
		if apiKey == "" {
			cred, found, err := d.Credentials.Get(ctx, provider)
			if err != nil {
				return err
			}
			if found {
				apiKey = cred.Token
				if baseURL == "" {
					baseURL = cred.BaseURL
				}
			}
		}
		if apiKey == "" {
			continue
		}

		runtimeCfg := pcfg
		runtimeCfg.APIKey = apiKey
		runtimeCfg.BaseURL = credentials.ResolveBaseURL(provider, baseURL)
		if runtimeCfg.Timeout == 0 {
			runtimeCfg = mergeDefaults(runtimeCfg)
		}

		adapter := buildAdapter(provider, runtimeCfg)
		if adapter == nil {
			continue
		}
		registry.Register(adapter)
		d.fallbackOrder = append(d.fallbackOrder, provider)
		d.Logger.Info("registered provider adapter", zap.String("provider", string(provider)))
	}

	d.Registry = registry
	return nil
}

func mergeDefaults(cfg providers.Config) providers.Config {
	def := providers.DefaultConfig()
	cfg.Timeout = def.Timeout
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	return cfg
}

func buildAdapter(provider domain.Provider, cfg providers.Config) providers.Adapter {
	switch provider {
	case domain.ProviderOpenAI:
		return compat.NewOpenAI(cfg)
	case domain.ProviderGroq:
		return compat.NewGroq(cfg)
	case domain.ProviderDeepSeek:
		return compat.NewDeepSeek(cfg)
	case domain.ProviderTogether:
		return compat.NewTogether(cfg)
	case domain.ProviderCerebras:
		return compat.NewCerebras(cfg)
	case domain.ProviderMistral:
		return compat.NewMistral(cfg)
	case domain.ProviderOpenRouter:
		return compat.NewOpenRouter(cfg)
	case domain.ProviderGitHubModels:
		return compat.NewGitHubModels(cfg)
	case domain.ProviderAnthropic:
		return anthropic.New(cfg)
	case domain.ProviderGoogle:
		return google.New(cfg)
	case domain.ProviderHuggingFace:
		return huggingface.New(cfg)
	case domain.ProviderCohere:
		return cohere.New(cfg)
	default:
		return nil
	}
}

func (d *Dependencies) initRouter(cfg *config.Config) {
	r := router.New(d.Registry, d.Catalog, d.Health, d.Usage, d.fallbackOrder, d.Logger)
	r = r.WithAttemptTimeout(cfg.Router.AttemptTimeout)
	if cfg.Observability.MetricsEnabled {
		r = r.WithMetrics(observability.NewPrometheusMetrics())
	}
	d.Router = r
	d.Refresher = refresh.New(d.Catalog, d.Router, d.Logger)
	d.Handler = httpapi.NewHandler(d.Router, d.Logger).WithMetricsEndpoint(cfg.Observability.MetricsEnabled)
}

// Close releases every closeable dependency.
func (d *Dependencies) Close() error {
	var err error
	if d.DB != nil {
		err = d.DB.Close()
	}
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
	return err
}
