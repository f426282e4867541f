package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		"info":   zapcore.InfoLevel,
		"warn":   zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"panic":  zapcore.PanicLevel,
		"fatal":  zapcore.FatalLevel,
		" INFO ": zapcore.InfoLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("chatty")
	require.False(t, ok)
}
