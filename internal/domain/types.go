// Package domain holds the core entities the gateway routes, tracks health
// for, and persists: providers, workloads, requests/responses, credentials,
// health state, catalog entries and usage records.
package domain

import "time"

// Provider identifies an upstream generative-AI vendor.
type Provider string

const (
	ProviderOpenAI       Provider = "openai"
	ProviderGoogle       Provider = "google"
	ProviderHuggingFace  Provider = "huggingface"
	ProviderAnthropic    Provider = "anthropic"
	ProviderCohere       Provider = "cohere"
	ProviderGroq         Provider = "groq"
	ProviderDeepSeek     Provider = "deepseek"
	ProviderTogether     Provider = "together"
	ProviderCloudflare   Provider = "cloudflare"
	ProviderCerebras     Provider = "cerebras"
	ProviderMistral      Provider = "mistral"
	ProviderClarifai     Provider = "clarifai"
	ProviderGitHubModels Provider = "github_models"
	ProviderOpenRouter   Provider = "openrouter"
)

// allProviders is the closed set, in a stable canonical order used for
// seeding and listing.
var allProviders = []Provider{
	ProviderOpenAI, ProviderGoogle, ProviderHuggingFace, ProviderAnthropic,
	ProviderCohere, ProviderGroq, ProviderDeepSeek, ProviderTogether,
	ProviderCloudflare, ProviderCerebras, ProviderMistral, ProviderClarifai,
	ProviderGitHubModels, ProviderOpenRouter,
}

// AllProviders returns the closed set of known providers in canonical order.
func AllProviders() []Provider {
	out := make([]Provider, len(allProviders))
	copy(out, allProviders)
	return out
}

// aliases maps every accepted case-insensitive spelling to its canonical
// Provider, grounded on original_source/src/providers/mod.rs::from_alias.
var aliases = map[string]Provider{
	"openai": ProviderOpenAI, "oai": ProviderOpenAI,
	"google": ProviderGoogle, "gemini": ProviderGoogle, "vertex": ProviderGoogle,
	"huggingface": ProviderHuggingFace, "hf": ProviderHuggingFace, "hugging_face": ProviderHuggingFace,
	"anthropic": ProviderAnthropic, "claude": ProviderAnthropic,
	"cohere": ProviderCohere,
	"groq":   ProviderGroq,
	"deepseek": ProviderDeepSeek,
	"together": ProviderTogether, "together_ai": ProviderTogether, "togetherai": ProviderTogether,
	"cloudflare": ProviderCloudflare, "cf": ProviderCloudflare,
	"cerebras": ProviderCerebras,
	"mistral":  ProviderMistral,
	"clarifai": ProviderClarifai,
	"github_models": ProviderGitHubModels, "github": ProviderGitHubModels, "githubmodels": ProviderGitHubModels,
	"openrouter": ProviderOpenRouter, "open_router": ProviderOpenRouter,
}

// ProviderFromAlias resolves a case-insensitive alias to a Provider. The
// second return value is false when the alias is unknown.
func ProviderFromAlias(s string) (Provider, bool) {
	p, ok := aliases[lower(s)]
	return p, ok
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Workload classifies the kind of task a request is for. It drives catalog
// lookups (each provider/model entry is scoped to one workload).
type Workload string

const (
	WorkloadChat           Workload = "chat"
	WorkloadCode           Workload = "code"
	WorkloadSummarization  Workload = "summarization"
	WorkloadExtraction     Workload = "extraction"
	WorkloadCreative       Workload = "creative"
	WorkloadClassification Workload = "classification"
)

var allWorkloads = []Workload{
	WorkloadChat, WorkloadCode, WorkloadSummarization,
	WorkloadExtraction, WorkloadCreative, WorkloadClassification,
}

// WorkloadFromKey parses the persisted key form of a Workload, returning
// false if it is not one of the closed set of tags.
func WorkloadFromKey(s string) (Workload, bool) {
	for _, w := range allWorkloads {
		if string(w) == s {
			return w, true
		}
	}
	return "", false
}

// Hints are soft routing preferences attached to a Request. None of them
// are binding except Provider and Model, which force a specific candidate.
type Hints struct {
	Provider   Provider
	Model      string
	Quality    string // "standard" | "premium"
	Complexity string // "low" | "high"
	Speed      string // "normal" | "fast"
	Tags       []string
}

// Request is the normalized gateway request, independent of wire format.
type Request struct {
	Prompt      string
	Workload    Workload
	Hints       Hints
	MaxTokens   int
	Temperature float64
	Deadline    time.Time
}

// Response is the normalized gateway response.
type Response struct {
	Content    string
	Provider   Provider
	Model      string
	TokensIn   int
	TokensOut  int
	LatencyMS  int64
	Attempts   []AttemptRecord
}

// AttemptRecord is one candidate's outcome during a routing decision.
type AttemptRecord struct {
	Provider  Provider
	Model     string
	Success   bool
	ErrorKind ErrorKind
	LatencyMS int64
}

// Credential is a decrypted provider token plus an optional base URL
// override. It never crosses a persistence boundary in this form.
type Credential struct {
	Provider Provider
	Token    string
	BaseURL  string
}

// HealthStatus is the coarse-grained availability bucket a provider is in.
type HealthStatus string

const (
	HealthAvailable   HealthStatus = "available"
	HealthDegraded    HealthStatus = "degraded"
	HealthUnavailable HealthStatus = "unavailable"
)

// ErrorKind classifies a provider failure for backoff purposes: the
// closed eight-member taxonomy spec.md §4.4 requires. ErrorKindNone is
// not part of that taxonomy; it is this module's sentinel for "no
// error" on a successful AttemptRecord/UsageRecord.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindRateLimit         ErrorKind = "rate_limit"
	ErrorKindAuthFailure       ErrorKind = "auth_failure"
	ErrorKindServiceOutage     ErrorKind = "service_outage"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindTransient         ErrorKind = "transient"
	ErrorKindMalformedResponse ErrorKind = "malformed_response"
	ErrorKindClientError       ErrorKind = "client_error"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// HealthState is one provider's persisted health snapshot.
type HealthState struct {
	Provider            Provider
	Status              HealthStatus
	ConsecutiveFailures int
	LastError           ErrorKind
	LastErrorMessage    string
	RetryAfter          time.Time
	LastSuccess         time.Time
	LastCheck           time.Time
}

// IsAvailable reports whether the provider can be attempted right now.
func (h HealthState) IsAvailable(now time.Time) bool {
	return h.RetryAfter.IsZero() || !now.Before(h.RetryAfter) || now.Equal(h.RetryAfter)
}

// CatalogStatus is the lifecycle state of a CatalogEntry.
type CatalogStatus string

const (
	CatalogActive  CatalogStatus = "active"
	CatalogRetired CatalogStatus = "retired"
)

// CatalogEntry is a provider/model binding scoped to a workload.
type CatalogEntry struct {
	Provider  Provider
	Workload  Workload
	Model     string
	Status    CatalogStatus
	Priority  int
	Rationale string
	UpdatedAt time.Time
}

// SuggestionStatus is the lifecycle state of a Suggestion.
type SuggestionStatus string

const (
	SuggestionPending SuggestionStatus = "pending"
	SuggestionTrial   SuggestionStatus = "trial"
	SuggestionAdopted SuggestionStatus = "adopted"
)

// Suggestion is a candidate provider/model binding awaiting a decision to
// adopt it into the active catalog.
type Suggestion struct {
	ID        string
	Provider  Provider
	Workload  Workload
	Model     string
	Priority  int
	Rationale string
	Status    SuggestionStatus
	CreatedAt time.Time
}

// UsageRecord captures one completed attempt for accounting and refresh.
type UsageRecord struct {
	ID         string
	Provider   Provider
	Workload   Workload
	Model      string
	Success    bool
	LatencyMS  int64
	TokensIn   int
	TokensOut  int
	CostUSD    float64
	ErrorKind  ErrorKind
	RecordedAt time.Time
}

// UsageStats aggregates UsageRecords for a provider (and optionally a
// workload), grounded on original_source/src/catalog.rs::usage_stats —
// kept richer than spec.md's narrower {total_calls, success_rate,
// avg_latency_ms} (see SPEC_FULL.md supplement #4).
type UsageStats struct {
	TotalCalls      int
	SuccessfulCalls int
	SuccessRate     float64
	AvgLatencyMS    float64
	MaxLatencyMS    int64
}
