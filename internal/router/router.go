// Package router selects a provider/model candidate order for a
// request and works through it until one attempt succeeds or every
// candidate has failed. Grounded on
// original_source/src/providers/router.rs::ProviderRouter.
package router

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dnovak/llmrelay/internal/catalog"
	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/health"
	"github.com/dnovak/llmrelay/internal/observability"
	"github.com/dnovak/llmrelay/internal/providers"
	"github.com/dnovak/llmrelay/internal/usage"
)

// defaultAttemptTimeout bounds a single candidate's call when the
// caller hasn't configured a different value. Distinct from
// domain.Request.Deadline, which bounds the whole request across every
// fallback attempt.
const defaultAttemptTimeout = 60 * time.Second

// uncatalogedPriority ranks a provider's compiled-in default model
// after every catalog-backed candidate when that provider has no
// active catalog row yet for the requested workload.
const uncatalogedPriority = 1<<31 - 1

// candidate is one (provider, model) pair in attempt order.
type candidate struct {
	provider domain.Provider
	model    string
}

// Router coordinates provider adapters, the model catalog, health
// tracking and usage logging to fulfil a Request.
type Router struct {
	registry       *providers.Registry
	catalog        *catalog.Store
	health         *health.Tracker
	usage          *usage.Logger
	metrics        observability.Metrics
	fallbackOrder  []domain.Provider
	attemptTimeout time.Duration
	logger         *zap.Logger
}

// New returns a Router. fallbackOrder is the order providers were
// configured in; candidate ordering uses a provider's position in it to
// break ties between entries of equal priority.
func New(registry *providers.Registry, catalogStore *catalog.Store, healthTracker *health.Tracker, usageLogger *usage.Logger, fallbackOrder []domain.Provider, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		registry:      registry,
		catalog:       catalogStore,
		health:        healthTracker,
		usage:         usageLogger,
		fallbackOrder: fallbackOrder,
		logger:        logger,
	}
}

// WithMetrics attaches a Metrics collector, returning the same Router
// for chaining. A nil Router metrics field is a valid no-op.
func (r *Router) WithMetrics(m observability.Metrics) *Router {
	r.metrics = m
	return r
}

// WithAttemptTimeout overrides the per-attempt timeout, returning the
// same Router for chaining. A zero or negative d leaves
// defaultAttemptTimeout in effect.
func (r *Router) WithAttemptTimeout(d time.Duration) *Router {
	if d > 0 {
		r.attemptTimeout = d
	}
	return r
}

func (r *Router) attemptDeadline(req domain.Request) time.Time {
	timeout := r.attemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	deadline := time.Now().Add(timeout)
	if !req.Deadline.IsZero() && req.Deadline.Before(deadline) {
		return req.Deadline
	}
	return deadline
}

// Generate works through the candidate order for req, returning the
// first successful response. It records health and usage as it goes.
func (r *Router) Generate(ctx context.Context, req domain.Request) (domain.Response, error) {
	if req.Workload == "" {
		req.Workload = domain.WorkloadChat
	}

	forced := r.forcedProvider(req)
	if forced != "" {
		if _, ok := r.registry.Get(forced); !ok {
			return domain.Response{}, domain.ErrProviderNotConfigured
		}
	}

	candidates := r.buildCandidates(ctx, req, forced)
	if len(candidates) == 0 {
		return domain.Response{}, domain.ErrNoAvailableProvider
	}

	var attempts []domain.AttemptRecord
	for _, c := range candidates {
		adapter, ok := r.registry.Get(c.provider)
		if !ok {
			continue
		}

		// A hard hint (hints.Provider or a "provider:" tag) bypasses
		// the health check for that provider only.
		if r.health != nil && c.provider != forced {
			available, err := r.health.IsAvailable(ctx, c.provider)
			if err != nil {
				r.logger.Warn("failed to check provider health", zap.String("provider", string(c.provider)), zap.Error(err))
			} else if !available {
				r.logger.Debug("skipping unavailable provider", zap.String("provider", string(c.provider)))
				continue
			}
		}

		attemptCtx, cancel := context.WithDeadline(ctx, r.attemptDeadline(req))

		start := time.Now()
		resp, err := adapter.Complete(attemptCtx, req, c.model)
		latency := time.Since(start).Milliseconds()
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		cancel()

		if err == nil {
			r.recordOutcome(ctx, c.provider, req.Workload, c.model, true, latency, domain.ErrorKindNone, "", resp.TokensIn, resp.TokensOut)
			resp.Attempts = append(attempts, domain.AttemptRecord{Provider: c.provider, Model: c.model, Success: true, LatencyMS: latency})
			return resp, nil
		}

		errMsg := err.Error()
		if timedOut {
			errMsg = "attempt timeout exceeded: " + errMsg
		}
		kind := health.ClassifyError(errMsg)
		attempts = append(attempts, domain.AttemptRecord{Provider: c.provider, Model: c.model, Success: false, ErrorKind: kind, LatencyMS: latency})
		r.recordOutcome(ctx, c.provider, req.Workload, c.model, false, latency, kind, errMsg, 0, 0)

		if ctx.Err() != nil {
			return domain.Response{Attempts: attempts}, domain.NewDomainError(domain.ErrorTypeDeadlineExceeded, "request deadline exceeded during fallback", ctx.Err())
		}

		r.logger.Warn("provider call failed; trying next candidate", zap.String("provider", string(c.provider)), zap.Error(err))

		// A client error is inherent to the request, not the provider:
		// every other candidate would fail the same way, so fallback
		// budget is not spent chasing it.
		if kind == domain.ErrorKindClientError {
			break
		}
	}

	return domain.Response{Attempts: attempts}, domain.NewDomainError(domain.ErrorTypeAllProvidersFailed, "every candidate provider failed", nil).WithDetail("attempts", attempts)
}

func (r *Router) recordOutcome(ctx context.Context, provider domain.Provider, workload domain.Workload, model string, success bool, latencyMS int64, kind domain.ErrorKind, errMsg string, tokensIn, tokensOut int) {
	if r.health != nil {
		var err error
		if success {
			err = r.health.RecordSuccess(ctx, provider)
		} else {
			err = r.health.RecordFailure(ctx, provider, errMsg)
		}
		if err != nil {
			r.logger.Warn("failed to record provider health", zap.String("provider", string(provider)), zap.Error(err))
		}
	}
	if r.usage != nil {
		rec := domain.UsageRecord{
			Provider:  provider,
			Workload:  workload,
			Model:     model,
			Success:   success,
			LatencyMS: latencyMS,
			TokensIn:  tokensIn,
			TokensOut: tokensOut,
			ErrorKind: kind,
		}
		if err := r.usage.Record(ctx, rec); err != nil {
			r.logger.Warn("failed to log provider usage", zap.String("provider", string(provider)), zap.Error(err))
		}
	}
	if r.metrics != nil {
		status := "success"
		if !success {
			status = "failure"
		}
		labels := observability.RequestLabels{Provider: string(provider), Model: model, Workload: string(workload), Status: status}
		r.metrics.RecordRequest(ctx, labels)
		r.metrics.RecordLatency(ctx, float64(latencyMS)/1000, labels)
		if success {
			r.metrics.RecordTokens(ctx, tokensIn, tokensOut, labels)
		} else {
			r.metrics.RecordProviderError(ctx, string(provider), string(kind))
		}
	}
}

// forcedProvider returns the provider a hard hint names: hints.Provider
// itself, or the provider named by a "provider:<alias>" tag. Returns ""
// when no hard hint is present.
func (r *Router) forcedProvider(req domain.Request) domain.Provider {
	if req.Hints.Provider != "" {
		return req.Hints.Provider
	}
	for _, tag := range req.Hints.Tags {
		if alias, ok := strings.CutPrefix(tag, "provider:"); ok {
			if p, ok := domain.ProviderFromAlias(strings.TrimSpace(alias)); ok {
				return p
			}
		}
	}
	return ""
}

// buildCandidates implements spec's candidate construction: a forced
// provider wins outright (step 2), else a forced model groups every
// provider serving it (step 3), else active entries are merged across
// every configured provider by priority (step 4). Grounded on
// original_source/src/providers/router.rs::select_candidates.
func (r *Router) buildCandidates(ctx context.Context, req domain.Request, forced domain.Provider) []candidate {
	if forced != "" {
		return r.candidatesForProvider(ctx, forced, req)
	}
	if req.Hints.Model != "" {
		return r.candidatesForModel(ctx, req.Hints.Model, req.Workload)
	}
	return r.candidatesMerged(ctx, req)
}

// candidatesForProvider returns every active catalog entry for
// (provider, workload) in priority order; if none exist, one synthetic
// candidate using hints.Model or the adapter's compiled-in default.
func (r *Router) candidatesForProvider(ctx context.Context, provider domain.Provider, req domain.Request) []candidate {
	var out []candidate
	if r.catalog != nil {
		entries, err := r.catalog.Active(ctx, provider, req.Workload)
		if err != nil {
			r.logger.Warn("failed to look up catalog entries", zap.String("provider", string(provider)), zap.Error(err))
		}
		for _, e := range entries {
			out = append(out, candidate{provider: provider, model: e.Model})
		}
	}
	if len(out) > 0 {
		return out
	}

	model := req.Hints.Model
	if model == "" {
		if adapter, ok := r.registry.Get(provider); ok {
			model, _ = adapter.DefaultModel(req.Workload)
		}
	}
	if model == "" {
		return nil
	}
	return []candidate{{provider: provider, model: model}}
}

// candidatesForModel returns every provider with an active catalog
// entry naming model, in priority order. If no catalog entry matches,
// it falls back to a model-name sniff (providerFromModel) so a forced
// model with no catalog row still prefers its obvious vendor.
func (r *Router) candidatesForModel(ctx context.Context, model string, workload domain.Workload) []candidate {
	if matches := r.modelMatchesAcrossProviders(ctx, model, workload); len(matches) > 0 {
		return matches
	}
	if sniffed := providerFromModel(model); sniffed != "" {
		if _, ok := r.registry.Get(sniffed); ok {
			return []candidate{{provider: sniffed, model: model}}
		}
	}
	return nil
}

func (r *Router) modelMatchesAcrossProviders(ctx context.Context, model string, workload domain.Workload) []candidate {
	if r.catalog == nil {
		return nil
	}
	type scored struct {
		candidate
		priority int
	}
	var scoredList []scored
	for _, provider := range r.configuredProviders() {
		entries, err := r.catalog.Active(ctx, provider, workload)
		if err != nil {
			r.logger.Warn("failed to look up catalog entries", zap.String("provider", string(provider)), zap.Error(err))
			continue
		}
		for _, e := range entries {
			if e.Model == model {
				scoredList = append(scoredList, scored{candidate{provider, e.Model}, e.Priority})
			}
		}
	}
	sort.SliceStable(scoredList, func(i, j int) bool { return scoredList[i].priority < scoredList[j].priority })

	out := make([]candidate, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.candidate
	}
	return out
}

// candidatesMerged merges active entries across every configured
// provider for req.Workload into one list, sorted by priority
// ascending; ties are broken by soft quality/speed hint preference
// first, then fallbackOrder, then canonical provider order (so the
// result is fully deterministic even when two providers share both a
// priority and a fallbackOrder position).
func (r *Router) candidatesMerged(ctx context.Context, req domain.Request) []candidate {
	if r.catalog == nil {
		return nil
	}

	fbIndex := make(map[domain.Provider]int, len(r.fallbackOrder))
	for i, p := range r.fallbackOrder {
		fbIndex[p] = i
	}
	preferred := r.hintPreferredProviders(req)
	preferredIndex := make(map[domain.Provider]int, len(preferred))
	for i, p := range preferred {
		preferredIndex[p] = i
	}

	type scored struct {
		candidate
		priority int
		tieBreak int
	}
	var scoredList []scored
	for _, provider := range r.configuredProviders() {
		entries, err := r.catalog.Active(ctx, provider, req.Workload)
		if err != nil {
			r.logger.Warn("failed to look up catalog entries", zap.String("provider", string(provider)), zap.Error(err))
			continue
		}
		tieBreak := providerTieBreak(provider, preferredIndex, fbIndex)
		if len(entries) == 0 {
			// No catalog row for this provider/workload yet: fall back
			// to the adapter's compiled-in default, ranked after every
			// catalog-backed candidate.
			if adapter, ok := r.registry.Get(provider); ok {
				if model, ok := adapter.DefaultModel(req.Workload); ok {
					scoredList = append(scoredList, scored{candidate{provider, model}, uncatalogedPriority, tieBreak})
				}
			}
			continue
		}
		for _, e := range entries {
			scoredList = append(scoredList, scored{candidate{provider, e.Model}, e.Priority, tieBreak})
		}
	}

	sort.SliceStable(scoredList, func(i, j int) bool {
		if scoredList[i].priority != scoredList[j].priority {
			return scoredList[i].priority < scoredList[j].priority
		}
		return scoredList[i].tieBreak < scoredList[j].tieBreak
	})

	out := make([]candidate, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.candidate
	}
	return out
}

// configuredProviders returns every provider with a registered adapter,
// in the domain package's canonical order, so that iteration order (and
// therefore tie-breaking among candidates) never depends on Go map
// iteration order.
func (r *Router) configuredProviders() []domain.Provider {
	configured := make(map[domain.Provider]bool)
	for _, p := range r.registry.Configured() {
		configured[p] = true
	}
	var out []domain.Provider
	for _, p := range domain.AllProviders() {
		if configured[p] {
			out = append(out, p)
		}
	}
	return out
}

// providerTieBreak orders preferred (soft-hint) providers first, then
// fallbackOrder position, then canonical provider order as a final,
// always-unique tie-break.
func providerTieBreak(p domain.Provider, preferredIndex, fbIndex map[domain.Provider]int) int {
	if i, ok := preferredIndex[p]; ok {
		return i
	}
	base := len(preferredIndex)
	if i, ok := fbIndex[p]; ok {
		return base + i
	}
	base += len(fbIndex)
	for i, cp := range domain.AllProviders() {
		if cp == p {
			return base + i
		}
	}
	return base + len(domain.AllProviders())
}

// providerFromModel sniffs unambiguous vendor name fragments out of a
// forced model string. Ambiguous names return "".
func providerFromModel(model string) domain.Provider {
	m := strings.ToLower(model)
	switch {
	case m == "":
		return ""
	case strings.Contains(m, "gemini"):
		return domain.ProviderGoogle
	case strings.Contains(m, "gpt"):
		return domain.ProviderOpenAI
	case strings.Contains(m, "claude"):
		return domain.ProviderAnthropic
	case strings.Contains(m, "cohere"):
		return domain.ProviderCohere
	case strings.Contains(m, "deepseek"):
		return domain.ProviderDeepSeek
	case strings.Contains(m, "llama") && strings.Contains(m, "groq"):
		return domain.ProviderGroq
	default:
		return ""
	}
}

func (r *Router) hintPreferredProviders(req domain.Request) []domain.Provider {
	var picks []domain.Provider
	if req.Hints.Quality == "premium" || req.Hints.Complexity == "high" {
		picks = append(picks, domain.ProviderHuggingFace)
	}
	if req.Hints.Speed == "fast" {
		picks = append(picks, domain.ProviderGoogle)
	}
	return picks
}
