package compat

import (
	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/providers"
)

// Default base URLs used when a credential carries no override. Grounded
// on the doc comments of original_source/src/providers/*.rs; the Rust
// client itself never hardcodes these, but its deployment defaults to
// them.
const (
	openAIBaseURL       = "https://api.openai.com/v1"
	groqBaseURL         = "https://api.groq.com/openai/v1"
	deepSeekBaseURL     = "https://api.deepseek.com"
	togetherBaseURL     = "https://api.together.xyz/v1"
	cerebrasBaseURL     = "https://api.cerebras.ai/v1"
	mistralBaseURL      = "https://api.mistral.ai/v1"
	openRouterBaseURL   = "https://openrouter.ai/api/v1"
	githubModelsBaseURL = "https://models.inference.ai.azure.com"
)

func withDefault(cfg providers.Config, fallback string) providers.Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = fallback
	}
	return cfg
}

// NewOpenAI returns an Adapter for OpenAI. Default model grounded on
// original_source/src/providers/openai.rs.
func NewOpenAI(cfg providers.Config) *Adapter {
	return New(domain.ProviderOpenAI, withDefault(cfg, openAIBaseURL), map[domain.Workload]string{
		domain.WorkloadChat:           "gpt-4o-mini",
		domain.WorkloadCode:           "gpt-4o",
		domain.WorkloadSummarization:  "gpt-4o-mini",
		domain.WorkloadExtraction:     "gpt-4o-mini",
		domain.WorkloadCreative:       "gpt-4o",
		domain.WorkloadClassification: "gpt-4o-mini",
	}, nil)
}

// NewGroq returns an Adapter for Groq. Default model grounded on
// original_source/src/providers/groq.rs ("llama-3.3-70b-versatile").
func NewGroq(cfg providers.Config) *Adapter {
	return New(domain.ProviderGroq, withDefault(cfg, groqBaseURL), map[domain.Workload]string{
		domain.WorkloadChat:           "llama-3.3-70b-versatile",
		domain.WorkloadCode:           "llama-3.3-70b-versatile",
		domain.WorkloadSummarization:  "llama-3.1-8b-instant",
		domain.WorkloadExtraction:     "llama-3.1-8b-instant",
		domain.WorkloadCreative:       "llama-3.3-70b-versatile",
		domain.WorkloadClassification: "llama-3.1-8b-instant",
	}, nil)
}

// NewDeepSeek returns an Adapter for DeepSeek. Default model grounded on
// original_source/src/providers/deepseek.rs ("deepseek-chat").
func NewDeepSeek(cfg providers.Config) *Adapter {
	return New(domain.ProviderDeepSeek, withDefault(cfg, deepSeekBaseURL), map[domain.Workload]string{
		domain.WorkloadChat:           "deepseek-chat",
		domain.WorkloadCode:           "deepseek-coder",
		domain.WorkloadSummarization:  "deepseek-chat",
		domain.WorkloadExtraction:     "deepseek-chat",
		domain.WorkloadCreative:       "deepseek-chat",
		domain.WorkloadClassification: "deepseek-chat",
	}, nil)
}

// NewTogether returns an Adapter for Together AI. Default model grounded
// on original_source/src/providers/together.rs.
func NewTogether(cfg providers.Config) *Adapter {
	return New(domain.ProviderTogether, withDefault(cfg, togetherBaseURL), map[domain.Workload]string{
		domain.WorkloadChat:           "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free",
		domain.WorkloadCode:           "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free",
		domain.WorkloadSummarization:  "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free",
		domain.WorkloadExtraction:     "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free",
		domain.WorkloadCreative:       "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free",
		domain.WorkloadClassification: "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free",
	}, nil)
}

// NewCerebras returns an Adapter for Cerebras. Default model grounded on
// original_source/src/providers/cerebras.rs ("llama-3.1-70b").
func NewCerebras(cfg providers.Config) *Adapter {
	return New(domain.ProviderCerebras, withDefault(cfg, cerebrasBaseURL), map[domain.Workload]string{
		domain.WorkloadChat:           "llama-3.1-70b",
		domain.WorkloadCode:           "llama-3.1-70b",
		domain.WorkloadSummarization:  "llama-3.1-8b",
		domain.WorkloadExtraction:     "llama-3.1-8b",
		domain.WorkloadCreative:       "llama-3.1-70b",
		domain.WorkloadClassification: "llama-3.1-8b",
	}, nil)
}

// NewMistral returns an Adapter for Mistral AI. Default model grounded on
// original_source/src/providers/mistral.rs ("mistral-small-latest").
func NewMistral(cfg providers.Config) *Adapter {
	return New(domain.ProviderMistral, withDefault(cfg, mistralBaseURL), map[domain.Workload]string{
		domain.WorkloadChat:           "mistral-small-latest",
		domain.WorkloadCode:           "codestral-latest",
		domain.WorkloadSummarization:  "mistral-small-latest",
		domain.WorkloadExtraction:     "mistral-small-latest",
		domain.WorkloadCreative:       "mistral-large-latest",
		domain.WorkloadClassification: "mistral-small-latest",
	}, nil)
}

// NewOpenRouter returns an Adapter for OpenRouter. Default model grounded
// on original_source/src/providers/openrouter.rs
// ("deepseek/deepseek-r1:free").
func NewOpenRouter(cfg providers.Config) *Adapter {
	return New(domain.ProviderOpenRouter, withDefault(cfg, openRouterBaseURL), map[domain.Workload]string{
		domain.WorkloadChat:           "deepseek/deepseek-r1:free",
		domain.WorkloadCode:           "deepseek/deepseek-r1:free",
		domain.WorkloadSummarization:  "deepseek/deepseek-r1:free",
		domain.WorkloadExtraction:     "deepseek/deepseek-r1:free",
		domain.WorkloadCreative:       "deepseek/deepseek-r1:free",
		domain.WorkloadClassification: "deepseek/deepseek-r1:free",
	}, nil)
}

// NewGitHubModels returns an Adapter for GitHub Models. Default model
// grounded on original_source/src/providers/github_models.rs ("gpt-4o").
// Authenticates like every other vendor here: Authorization: Bearer
// <github PAT>.
func NewGitHubModels(cfg providers.Config) *Adapter {
	return New(domain.ProviderGitHubModels, withDefault(cfg, githubModelsBaseURL), map[domain.Workload]string{
		domain.WorkloadChat:           "gpt-4o",
		domain.WorkloadCode:           "gpt-4o",
		domain.WorkloadSummarization:  "gpt-4o-mini",
		domain.WorkloadExtraction:     "gpt-4o-mini",
		domain.WorkloadCreative:       "gpt-4o",
		domain.WorkloadClassification: "gpt-4o-mini",
	}, nil)
}
