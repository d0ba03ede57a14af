package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestWithRequest(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{Logger: zap.New(core)}

	l.WithRequest("corr-1", "").Info("anonymous")
	l.WithRequest("corr-2", "user-7").WithLead("lead-9").Info("authenticated")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, map[string]any{"correlation_id": "corr-1"}, entries[0].ContextMap())
	assert.Equal(t, map[string]any{
		"correlation_id": "corr-2",
		"user_id":        "user-7",
		"lead_id":        "lead-9",
	}, entries[1].ContextMap())
}

func TestOrGlobal(t *testing.T) {
	prev := Global()
	t.Cleanup(func() { SetGlobal(prev) })

	nop := NewNop()
	SetGlobal(nop)
	assert.Same(t, nop, OrGlobal(nil))

	other := NewNop()
	assert.Same(t, other, OrGlobal(other))
}
