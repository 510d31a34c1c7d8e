package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_With(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &ZapLogger{log: zap.New(core).Named(Name).Sugar()}

	child := l.With("request_id", "req-1")
	child.Warn("http_request", "status", 404)
	l.Info("plain")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, Name, entries[0].LoggerName)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, map[string]any{"request_id": "req-1", "status": int64(404)}, entries[0].ContextMap())
	assert.Empty(t, entries[1].ContextMap())
}
