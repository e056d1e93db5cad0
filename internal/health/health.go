// Package health tracks per-provider availability with exponential
// backoff. Grounded line-for-line on original_source/src/health.rs.
package health

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/store"
)

// Tracker persists and evaluates provider health.
type Tracker struct {
	db *store.DB
}

// New returns a Tracker backed by db.
func New(db *store.DB) *Tracker {
	return &Tracker{db: db}
}

// RecordSuccess clears backoff state and marks provider available.
func (t *Tracker) RecordSuccess(ctx context.Context, provider domain.Provider) error {
	now := time.Now().UTC().Format(time.RFC3339)
	exec := store.GetExecutor(ctx, t.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO provider_health (provider, status, consecutive_failures, last_success_at, updated_at)
		VALUES (?, 'available', 0, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			status = 'available',
			consecutive_failures = 0,
			retry_after = NULL,
			last_success_at = excluded.last_success_at,
			updated_at = excluded.updated_at
	`, string(provider), now, now)
	if err != nil {
		return domain.WrapPersistence("failed to record success", err)
	}
	return nil
}

// serviceOutageUnavailableThreshold is the N in spec.md §4.4's
// "ServiceOutage, Unavailable after N≥5 consecutive" rule.
const serviceOutageUnavailableThreshold = 5

// RecordFailure classifies errMsg and persists the resulting status and
// retry-after per spec.md §4.4's transition table, bumping the
// consecutive-failure counter. The backoff-bearing kinds grow with the
// provider's actual consecutive-failure count, not a fixed seed.
func (t *Tracker) RecordFailure(ctx context.Context, provider domain.Provider, errMsg string) error {
	kind := ClassifyError(errMsg)
	now := time.Now().UTC()

	prev, err := t.Snapshot(ctx, provider)
	if err != nil {
		return err
	}
	newFailures := prev.ConsecutiveFailures + 1

	status := prev.Status
	retryAfter := prev.RetryAfter

	switch kind {
	case domain.ErrorKindAuthFailure:
		status = domain.HealthUnavailable
		retryAfter = now.Add(24 * time.Hour)
	case domain.ErrorKindServiceOutage:
		if newFailures >= serviceOutageUnavailableThreshold {
			status = domain.HealthUnavailable
			retryAfter = now.Add(24 * time.Hour)
		} else {
			status = domain.HealthDegraded
			retryAfter = now.Add(time.Duration(CalculateBackoff(newFailures)) * time.Minute)
		}
	case domain.ErrorKindRateLimit, domain.ErrorKindTimeout, domain.ErrorKindTransient, domain.ErrorKindUnknown:
		status = domain.HealthDegraded
		retryAfter = now.Add(time.Duration(CalculateBackoff(newFailures)) * time.Minute)
	case domain.ErrorKindMalformedResponse:
		status = domain.HealthDegraded
		retryAfter = now.Add(5 * time.Minute)
	case domain.ErrorKindClientError:
		// Record only: status and retry_after are left as they were.
	}

	nowStr := now.Format(time.RFC3339)
	var retryArg interface{}
	if !retryAfter.IsZero() {
		retryArg = retryAfter.Format(time.RFC3339)
	}

	exec := store.GetExecutor(ctx, t.db)
	_, err = exec.ExecContext(ctx, `
		INSERT INTO provider_health (provider, status, last_error, last_error_message, retry_after, consecutive_failures, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			status = excluded.status,
			last_error = excluded.last_error,
			last_error_message = excluded.last_error_message,
			retry_after = excluded.retry_after,
			consecutive_failures = excluded.consecutive_failures,
			updated_at = excluded.updated_at
	`, string(provider), string(status), string(kind), errMsg, retryArg, newFailures, nowStr)
	if err != nil {
		return domain.WrapPersistence("failed to record failure", err)
	}
	return nil
}

// IsAvailable reports whether provider can be attempted right now.
func (t *Tracker) IsAvailable(ctx context.Context, provider domain.Provider) (bool, error) {
	h, err := t.Snapshot(ctx, provider)
	if err != nil {
		return false, err
	}
	switch h.Status {
	case domain.HealthAvailable:
		return true, nil
	default:
		if h.RetryAfter.IsZero() {
			return h.Status == domain.HealthDegraded, nil
		}
		return !time.Now().Before(h.RetryAfter), nil
	}
}

// Snapshot returns the current health state for provider, defaulting to
// Available with no history if the provider has never been recorded.
func (t *Tracker) Snapshot(ctx context.Context, provider domain.Provider) (domain.HealthState, error) {
	exec := store.GetExecutor(ctx, t.db)
	row := exec.QueryRowContext(ctx, `
		SELECT status, last_error, last_error_message, retry_after, consecutive_failures, last_success_at
		FROM provider_health WHERE provider = ?
	`, string(provider))

	var status string
	var lastError, lastErrorMessage, retryAfter, lastSuccess sql.NullString
	var consecutiveFailures int

	err := row.Scan(&status, &lastError, &lastErrorMessage, &retryAfter, &consecutiveFailures, &lastSuccess)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.HealthState{Provider: provider, Status: domain.HealthAvailable}, nil
	}
	if err != nil {
		return domain.HealthState{}, domain.WrapPersistence("failed to read health", err)
	}

	return domain.HealthState{
		Provider:            provider,
		Status:              domain.HealthStatus(status),
		ConsecutiveFailures: consecutiveFailures,
		LastError:           domain.ErrorKind(lastError.String),
		LastErrorMessage:    lastErrorMessage.String,
		RetryAfter:          parseTime(retryAfter.String),
		LastSuccess:         parseTime(lastSuccess.String),
		LastCheck:           time.Now().UTC(),
	}, nil
}

// SnapshotAll returns the health state of every known provider.
func (t *Tracker) SnapshotAll(ctx context.Context) ([]domain.HealthState, error) {
	var out []domain.HealthState
	for _, p := range domain.AllProviders() {
		h, err := t.Snapshot(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return tm
}

// ClassifyError buckets a provider error message into one of spec.md
// §4.4's eight ErrorKinds by substring match, grounded on
// health.rs::classify_error but remapped onto the closed taxonomy: the
// original's credit/billing bucket has no home of its own here, so it
// falls into ClientError (a 4xx outcome that is neither auth nor rate
// limiting).
func ClassifyError(errMsg string) domain.ErrorKind {
	lower := strings.ToLower(errMsg)

	switch {
	case containsAny(lower, "service unavailable", "502", "503", "504", "gateway"):
		return domain.ErrorKindServiceOutage
	case containsAny(lower, "timeout", "timed out", "deadline exceeded", "context deadline"):
		return domain.ErrorKindTimeout
	case containsAny(lower, "rate limit", "too many requests", "429"):
		return domain.ErrorKindRateLimit
	case containsAny(lower, "unauthorized", "forbidden", "invalid api key", "invalid token", "authentication failed", "401", "403"):
		return domain.ErrorKindAuthFailure
	case containsAny(lower, "failed to parse response", "invalid json", "malformed", "unexpected end of json"):
		return domain.ErrorKindMalformedResponse
	case containsAny(lower, "bad request", "invalid request", "400", "422", "insufficient credits", "quota exceeded", "out of credits", "billing", "payment required", "402"):
		return domain.ErrorKindClientError
	case containsAny(lower, "connection reset", "connection refused", "eof", "network error", "i/o timeout", "no such host"):
		return domain.ErrorKindTransient
	default:
		return domain.ErrorKindUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// CalculateBackoff returns minutes to wait given consecutiveFailures: 2^n
// capped at 6 doublings (60 minutes), grounded on
// health.rs::calculate_backoff.
func CalculateBackoff(consecutiveFailures int) int {
	n := consecutiveFailures
	if n > 6 {
		n = 6
	}
	if n < 0 {
		n = 0
	}
	backoff := 1 << uint(n)
	if backoff > 60 {
		return 60
	}
	return backoff
}
