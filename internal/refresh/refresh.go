// Package refresh implements the catalog refresh admin operation: asking
// the router itself for model suggestions and, outside dry-run mode,
// persisting the valid ones. Grounded on spec.md §4.8 / original_source's
// catalog refresh flow (no single refresh.rs exists in original_source;
// the algorithm is assembled from catalog.rs::usage_stats and
// router.rs::generate, the two pieces it composes).
package refresh

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/dnovak/llmrelay/internal/catalog"
	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/router"
)

// Result is the outcome of one refresh invocation.
type Result struct {
	Valid    []domain.Suggestion
	Rejected []RejectedSuggestion
	Inserted bool
}

// RejectedSuggestion pairs a raw suggestion payload entry with why it was
// rejected.
type RejectedSuggestion struct {
	Model    string
	Workload string
	Reason   string
}

type suggestionPayload struct {
	Suggestions []rawSuggestion `json:"suggestions"`
}

type rawSuggestion struct {
	Model           string                 `json:"model"`
	Workload        string                 `json:"workload"`
	Rationale       string                 `json:"rationale"`
	ProductionReady bool                   `json:"production_ready"`
	Notes           string                 `json:"notes,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// Refresher runs the catalog refresh operation.
type Refresher struct {
	catalog *catalog.Store
	router  *router.Router
	logger  *zap.Logger
}

// New returns a Refresher.
func New(catalogStore *catalog.Store, r *router.Router, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{catalog: catalogStore, router: r, logger: logger}
}

// Run executes the refresh algorithm in spec.md §4.8: gather context,
// ask the router for JSON suggestions, validate workload tags, and
// (unless dryRun) persist the valid ones.
func (rf *Refresher) Run(ctx context.Context, provider domain.Provider, workload domain.Workload, dryRun bool) (Result, error) {
	current, err := rf.catalog.Active(ctx, provider, workload)
	if err != nil {
		return Result{}, err
	}
	stats, err := rf.catalog.Stats(ctx, provider, &workload)
	if err != nil {
		return Result{}, err
	}

	prompt := buildPrompt(provider, workload, current, stats)

	resp, err := rf.router.Generate(ctx, domain.Request{
		Prompt:   prompt,
		Workload: workload,
		Hints:    domain.Hints{Provider: provider},
	})
	if err != nil {
		return Result{}, err
	}

	var payload suggestionPayload
	if err := json.Unmarshal([]byte(resp.Content), &payload); err != nil {
		return Result{}, domain.NewDomainError(domain.ErrorTypeSuggestionParseError, "refresh response was not valid JSON", err)
	}

	result := Result{}
	for _, raw := range payload.Suggestions {
		w, ok := domain.WorkloadFromKey(raw.Workload)
		if !ok {
			result.Rejected = append(result.Rejected, RejectedSuggestion{
				Model:    raw.Model,
				Workload: raw.Workload,
				Reason:   catalog.ErrInvalidWorkload.Error(),
			})
			continue
		}
		result.Valid = append(result.Valid, domain.Suggestion{
			Provider:  provider,
			Workload:  w,
			Model:     raw.Model,
			Status:    domain.SuggestionPending,
			Rationale: raw.Rationale,
		})
	}

	if !dryRun && len(result.Valid) > 0 {
		if err := rf.catalog.InsertSuggestions(ctx, result.Valid); err != nil {
			return result, err
		}
		result.Inserted = true
	}

	rf.logger.Info("refresh complete",
		zap.String("provider", string(provider)),
		zap.String("workload", string(workload)),
		zap.Int("valid", len(result.Valid)),
		zap.Int("rejected", len(result.Rejected)),
		zap.Bool("dry_run", dryRun),
	)

	return result, nil
}

func buildPrompt(provider domain.Provider, workload domain.Workload, current []domain.CatalogEntry, stats domain.UsageStats) string {
	models := make([]string, 0, len(current))
	for _, e := range current {
		models = append(models, e.Model)
	}
	return fmt.Sprintf(
		`You are curating model suggestions for a completion gateway.
provider: %s
workload: %s
current_models: %v
usage_stats: {total_calls: %d, successful_calls: %d, success_rate: %.4f, avg_latency_ms: %.1f, max_latency_ms: %d}
constraints: {closed_workload_tags: [chat, code, summarization, extraction, creative, classification]}

Reply with JSON only, matching exactly:
{"suggestions": [{"model": string, "workload": string, "rationale": string, "production_ready": bool, "notes"?: string, "metadata"?: object}]}`,
		provider, workload, models,
		stats.TotalCalls, stats.SuccessfulCalls, stats.SuccessRate, stats.AvgLatencyMS, stats.MaxLatencyMS,
	)
}
