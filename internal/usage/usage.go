// Package usage logs completed provider attempts for accounting and for
// the catalog's refresh statistics. Grounded on spec.md §4.3's
// record/stats contract and original_source/src/catalog.rs::usage_stats
// for the aggregate fields.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/store"
)

// Logger records UsageRecords synchronously: Record returns only after
// the row has committed, which is how this system satisfies "must
// guarantee durability... before the call returns" (see DESIGN.md, Open
// Question #3) without a buffered-and-acked design.
type Logger struct {
	db *store.DB
}

// New returns a Logger backed by db.
func New(db *store.DB) *Logger {
	return &Logger{db: db}
}

// Record persists a single completed attempt.
func (l *Logger) Record(ctx context.Context, rec domain.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	exec := store.GetExecutor(ctx, l.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO provider_usage (provider, workload, model, success, latency_ms, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(rec.Provider), string(rec.Workload), rec.Model, boolToInt(rec.Success), rec.LatencyMS, nullableErr(rec.ErrorKind), recordedAt.Format(time.RFC3339))
	if err != nil {
		return domain.WrapPersistence("failed to record usage", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableErr(k domain.ErrorKind) interface{} {
	if k == domain.ErrorKindNone {
		return nil
	}
	return string(k)
}
