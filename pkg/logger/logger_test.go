package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewReleaseModeUsesProductionConfig(t *testing.T) {
	l := New(ReleaseMode)
	require.NotNil(t, l)
	assert.False(t, l.Logger.Core().Enabled(zapcore.DebugLevel),
		"release mode must not log at debug level")
}

func TestNewDebugModeUsesDevelopmentConfig(t *testing.T) {
	for _, mode := range []string{DebugMode, TestMode, ""} {
		l := New(mode)
		require.NotNil(t, l)
		assert.True(t, l.Logger.Core().Enabled(zapcore.DebugLevel),
			"mode %q must log at debug level", mode)
	}
}
