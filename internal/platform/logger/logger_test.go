package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSelectsLevelByMode(t *testing.T) {
	prod, err := New("Production")
	require.NoError(t, err)
	assert.False(t, prod.SugaredLogger.Desugar().Core().Enabled(zapcore.DebugLevel))

	dev, err := New("")
	require.NoError(t, err)
	assert.True(t, dev.SugaredLogger.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With("collection", "notes")
	l.Debug("d")
	l.Info("i", "id", "x")
	l.Warn("w")
	l.Error("e")
	l.Sync()

	require.Equal(t, 4, logs.Len())
	first := logs.All()[1]
	assert.Equal(t, "i", first.Message)
	assert.Equal(t, map[string]any{"collection": "notes", "id": "x"}, first.ContextMap())

	Nop().Info("dropped")
}
