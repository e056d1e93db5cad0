package store

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/dnovak/llmrelay/internal/domain"
)

type transactionContextKey struct{}

// Executor is satisfied by both *sql.DB and *sql.Tx, letting repository
// methods run against either a bare connection or an in-flight
// transaction. Grounded on repositories/postgres/transaction.go::Executor.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetExecutor returns the transaction bound to ctx if one is present,
// otherwise the bare database connection.
func GetExecutor(ctx context.Context, db *DB) Executor {
	if tx, ok := fromContext(ctx); ok {
		return tx
	}
	return db.DB
}

func fromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(transactionContextKey{}).(*sql.Tx)
	return tx, ok
}

// WithTransaction runs fn inside a transaction, committing on success and
// rolling back if fn (or the commit) fails. The transaction is made
// available to nested GetExecutor calls via the returned context.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapPersistence("failed to begin transaction", err)
	}

	txCtx := context.WithValue(ctx, transactionContextKey{}, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			db.logger.Error("failed to roll back transaction", zap.Error(rbErr), zap.NamedError("cause", err))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapPersistence("failed to commit transaction", err)
	}
	return nil
}
