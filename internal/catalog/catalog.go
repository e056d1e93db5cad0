// Package catalog manages the active provider/model roster and the
// suggestions queue that feeds it. Grounded on
// original_source/src/catalog.rs.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/store"
)

// Store manages catalog entries and suggestions.
type Store struct {
	db *store.DB
}

// New returns a Store backed by db.
func New(db *store.DB) *Store {
	return &Store{db: db}
}

// ListModels lists catalog entries matching the optional filters.
func (s *Store) ListModels(ctx context.Context, provider *domain.Provider, workload *domain.Workload) ([]domain.CatalogEntry, error) {
	query := `SELECT provider, workload, model, status, priority, rationale, updated_at FROM provider_models`
	var filters []string
	var args []interface{}
	if provider != nil {
		filters = append(filters, "provider = ?")
		args = append(args, string(*provider))
	}
	if workload != nil {
		filters = append(filters, "workload = ?")
		args = append(args, string(*workload))
	}
	if len(filters) > 0 {
		query += " WHERE " + strings.Join(filters, " AND ")
	}
	query += " ORDER BY provider, workload, priority ASC, updated_at DESC"

	exec := store.GetExecutor(ctx, s.db)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapPersistence("failed to list models", err)
	}
	defer rows.Close()
	return scanCatalogEntries(rows)
}

func scanCatalogEntries(rows *sql.Rows) ([]domain.CatalogEntry, error) {
	var out []domain.CatalogEntry
	for rows.Next() {
		var providerStr, workloadStr, updatedAt string
		var e domain.CatalogEntry
		var rationale sql.NullString
		if err := rows.Scan(&providerStr, &workloadStr, &e.Model, &e.Status, &e.Priority, &rationale, &updatedAt); err != nil {
			return nil, domain.WrapPersistence("failed to scan catalog row", err)
		}
		e.Provider = domain.Provider(providerStr)
		e.Workload = domain.Workload(workloadStr)
		e.Rationale = rationale.String
		e.UpdatedAt = parseTime(updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
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

// Active returns the active catalog entries for (provider, workload),
// ordered by priority ascending, then updated_at descending.
func (s *Store) Active(ctx context.Context, provider domain.Provider, workload domain.Workload) ([]domain.CatalogEntry, error) {
	exec := store.GetExecutor(ctx, s.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT provider, workload, model, status, priority, rationale, updated_at
		FROM provider_models
		WHERE status = 'active' AND provider = ? AND workload = ?
		ORDER BY priority ASC, updated_at DESC
	`, string(provider), string(workload))
	if err != nil {
		return nil, domain.WrapPersistence("failed to list active models", err)
	}
	defer rows.Close()
	return scanCatalogEntries(rows)
}

// ActiveAll returns every active entry for provider, grouped by workload.
func (s *Store) ActiveAll(ctx context.Context, provider domain.Provider) (map[domain.Workload][]domain.CatalogEntry, error) {
	exec := store.GetExecutor(ctx, s.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT provider, workload, model, status, priority, rationale, updated_at
		FROM provider_models
		WHERE status = 'active' AND provider = ?
		ORDER BY workload, priority ASC, updated_at DESC
	`, string(provider))
	if err != nil {
		return nil, domain.WrapPersistence("failed to list active models", err)
	}
	defer rows.Close()

	entries, err := scanCatalogEntries(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Workload][]domain.CatalogEntry)
	for _, e := range entries {
		out[e.Workload] = append(out[e.Workload], e)
	}
	return out, nil
}

// Adopt upserts an active entry for (provider, workload, model) and, if a
// matching suggestion exists, transitions it to adopted.
func (s *Store) Adopt(ctx context.Context, provider domain.Provider, workload domain.Workload, model string, priority int, rationale string) error {
	return s.db.WithTransaction(ctx, func(ctx context.Context) error {
		now := time.Now().UTC().Format(time.RFC3339)
		exec := store.GetExecutor(ctx, s.db)

		_, err := exec.ExecContext(ctx, `
			INSERT INTO provider_models (provider, workload, model, status, priority, rationale, created_at, updated_at)
			VALUES (?, ?, ?, 'active', ?, ?, ?, ?)
			ON CONFLICT(provider, workload, model) DO UPDATE SET
				status = 'active',
				priority = excluded.priority,
				rationale = excluded.rationale,
				updated_at = excluded.updated_at
		`, string(provider), string(workload), model, priority, nullableString(rationale), now, now)
		if err != nil {
			return domain.WrapPersistence("failed to adopt model", err)
		}

		_, err = exec.ExecContext(ctx, `
			UPDATE provider_model_suggestions
			SET status = 'adopted', updated_at = ?
			WHERE provider = ? AND workload = ? AND model = ?
		`, now, string(provider), string(workload), model)
		if err != nil {
			return domain.WrapPersistence("failed to transition suggestion", err)
		}
		return nil
	})
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Retire marks the given provider/workload/model entry as retired,
// reporting whether a row changed.
func (s *Store) Retire(ctx context.Context, provider domain.Provider, workload domain.Workload, model string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	exec := store.GetExecutor(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE provider_models SET status = 'retired', updated_at = ?
		WHERE provider = ? AND workload = ? AND model = ?
	`, now, string(provider), string(workload), model)
	if err != nil {
		return false, domain.WrapPersistence("failed to retire model", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.WrapPersistence("failed to read rows affected", err)
	}
	return n > 0, nil
}

// InsertSuggestions idempotently inserts suggestions, leaving existing
// (provider, workload, model) rows unchanged.
func (s *Store) InsertSuggestions(ctx context.Context, suggestions []domain.Suggestion) error {
	return s.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := store.GetExecutor(ctx, s.db)
		for _, sg := range suggestions {
			now := time.Now().UTC().Format(time.RFC3339)
			id := sg.ID
			if id == "" {
				id = uuid.NewString()
			}
			status := sg.Status
			if status == "" {
				status = domain.SuggestionPending
			}
			_, err := exec.ExecContext(ctx, `
				INSERT INTO provider_model_suggestions (id, provider, workload, model, status, priority, rationale, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(provider, workload, model) DO NOTHING
			`, id, string(sg.Provider), string(sg.Workload), sg.Model, string(status), sg.Priority, nullableString(sg.Rationale), now, now)
			if err != nil {
				return domain.WrapPersistence("failed to insert suggestion", err)
			}
		}
		return nil
	})
}

// Suggestions lists suggestions matching the optional filters.
func (s *Store) Suggestions(ctx context.Context, provider *domain.Provider, workload *domain.Workload, status *domain.SuggestionStatus) ([]domain.Suggestion, error) {
	query := `SELECT id, provider, workload, model, status, priority, rationale, created_at FROM provider_model_suggestions`
	var filters []string
	var args []interface{}
	if provider != nil {
		filters = append(filters, "provider = ?")
		args = append(args, string(*provider))
	}
	if workload != nil {
		filters = append(filters, "workload = ?")
		args = append(args, string(*workload))
	}
	if status != nil {
		filters = append(filters, "status = ?")
		args = append(args, string(*status))
	}
	if len(filters) > 0 {
		query += " WHERE " + strings.Join(filters, " AND ")
	}
	query += " ORDER BY status ASC, created_at DESC"

	exec := store.GetExecutor(ctx, s.db)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapPersistence("failed to list suggestions", err)
	}
	defer rows.Close()

	var out []domain.Suggestion
	for rows.Next() {
		var sg domain.Suggestion
		var providerStr, workloadStr, statusStr, createdAt string
		var rationale sql.NullString
		if err := rows.Scan(&sg.ID, &providerStr, &workloadStr, &sg.Model, &statusStr, &sg.Priority, &rationale, &createdAt); err != nil {
			return nil, domain.WrapPersistence("failed to scan suggestion row", err)
		}
		sg.Provider = domain.Provider(providerStr)
		sg.Workload = domain.Workload(workloadStr)
		sg.Status = domain.SuggestionStatus(statusStr)
		sg.Rationale = rationale.String
		sg.CreatedAt = parseTime(createdAt)
		out = append(out, sg)
	}
	return out, rows.Err()
}

// ErrInvalidWorkload's message is the rejection reason refresh reports for
// a suggestion entry that names a workload outside the closed tag set.
var ErrInvalidWorkload = errors.New("invalid workload tag")

// SeedDefaults inserts the bundled seed catalog for any (provider,
// workload) pair that has no active entry yet. Grounded on
// original_source/src/catalog.rs::seed_defaults.
func (s *Store) SeedDefaults(ctx context.Context) error {
	for _, d := range seedDefaults {
		existing, err := s.Active(ctx, d.provider, d.workload)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}
		now := time.Now().UTC().Format(time.RFC3339)
		exec := store.GetExecutor(ctx, s.db)
		_, err = exec.ExecContext(ctx, `
			INSERT OR IGNORE INTO provider_models (provider, workload, model, status, priority, rationale, created_at, updated_at)
			VALUES (?, ?, ?, 'active', ?, ?, ?, ?)
		`, string(d.provider), string(d.workload), d.model, d.priority, d.rationale, now, now)
		if err != nil {
			return domain.WrapPersistence(fmt.Sprintf("failed to seed %s/%s", d.provider, d.workload), err)
		}
	}
	return nil
}

// Stats aggregates provider_usage rows for provider, optionally scoped to
// a workload via provider_models. Grounded on
// original_source/src/catalog.rs::usage_stats (kept as the richer
// UsageStats shape — see SPEC_FULL.md supplement #4).
func (s *Store) Stats(ctx context.Context, provider domain.Provider, workload *domain.Workload) (domain.UsageStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(latency_ms), 0),
			COALESCE(MAX(latency_ms), 0)
		FROM provider_usage
		WHERE provider = ?`
	args := []interface{}{string(provider)}
	if workload != nil {
		query += ` AND model IN (SELECT model FROM provider_models WHERE provider = ? AND workload = ?)`
		args = append(args, string(provider), string(*workload))
	}

	exec := store.GetExecutor(ctx, s.db)
	row := exec.QueryRowContext(ctx, query, args...)

	var stats domain.UsageStats
	var avgLatency float64
	if err := row.Scan(&stats.TotalCalls, &stats.SuccessfulCalls, &avgLatency, &stats.MaxLatencyMS); err != nil {
		return domain.UsageStats{}, domain.WrapPersistence("failed to aggregate usage stats", err)
	}
	stats.AvgLatencyMS = avgLatency
	if stats.TotalCalls > 0 {
		stats.SuccessRate = float64(stats.SuccessfulCalls) / float64(stats.TotalCalls)
	}
	return stats, nil
}
