package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewZapLogger_json(t *testing.T) {
	logger, err := NewZapLogger("info", "json")
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewZapLogger_consoleAndDebug(t *testing.T) {
	logger, err := NewZapLogger("debug", "console")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewZapLogger_invalidLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewZapLogger("not-a-level", "json")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewLogger_delegatesToBase(t *testing.T) {
	base, err := NewZapLogger("debug", "console")
	require.NoError(t, err)

	logger := NewLogger(base)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		logger.Debug(ctx, "debug msg")
		logger.Info(ctx, "info msg", zap.String("k", "v"))
		logger.Warn(ctx, "warn msg")
		logger.Error(ctx, "error msg")
	})
}
