package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthCheck(t *testing.T) {
	t.Run("healthy when ping and query succeed", func(t *testing.T) {
		mockDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		db := &DB{DB: mockDB, logger: zap.NewNop()}
		assert.NoError(t, db.HealthCheck(context.Background()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fails when ping errors", func(t *testing.T) {
		mockDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		mock.ExpectPing().WillReturnError(assert.AnError)

		db := &DB{DB: mockDB, logger: zap.NewNop()}
		err = db.HealthCheck(context.Background())
		assert.Error(t, err)
	})
}

func TestWithTransactionCommitsOnSuccess(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO provider_usage").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	db := &DB{DB: mockDB, logger: zap.NewNop()}
	err = db.WithTransaction(context.Background(), func(ctx context.Context) error {
		exec := GetExecutor(ctx, db)
		_, err := exec.ExecContext(ctx, "INSERT INTO provider_usage (provider) VALUES (?)", "groq")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	db := &DB{DB: mockDB, logger: zap.NewNop()}
	err = db.WithTransaction(context.Background(), func(ctx context.Context) error {
		return assert.AnError
	})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExecutorFallsBackToBareConnection(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := &DB{DB: mockDB, logger: zap.NewNop()}
	exec := GetExecutor(context.Background(), db)
	assert.Equal(t, db.DB, exec)
}
