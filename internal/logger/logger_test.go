package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("console logger honours level", func(t *testing.T) {
		l, err := New(false, "warn")
		require.NoError(t, err)
		assert.False(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
		assert.True(t, l.Desugar().Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("json logger defaults to info", func(t *testing.T) {
		l, err := New(true, "")
		require.NoError(t, err)
		assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
		assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("level is case insensitive", func(t *testing.T) {
		l, err := New(false, "DEBUG")
		require.NoError(t, err)
		assert.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := New(false, "chatty")
		assert.Error(t, err)
	})
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	l, err := New(false, "info")
	require.NoError(t, err)
	assert.Same(t, l, OrNop(l))
}
