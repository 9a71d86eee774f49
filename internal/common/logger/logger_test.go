package logger

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "anything", Truncate("anything", 0))

	long := strings.Repeat("a", 10) + strings.Repeat("b", 10) + strings.Repeat("c", 10)
	out := Truncate(long, 10)
	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 10)))
	assert.True(t, strings.HasSuffix(out, strings.Repeat("c", 10)))
	assert.NotContains(t, out, "b")
	assert.Contains(t, out, "[truncated]")
}

func TestLoggerChaining(t *testing.T) {
	log := NewTestLogger(t)
	child := log.WithFields(map[string]interface{}{"taskType": "generate-travel-plan"}).
		WithError(errors.New("boom")).
		With(map[string]interface{}{"jobKey": 42})

	assert.NotNil(t, child)
	child.Info("chained logger works", map[string]interface{}{"cause": errors.New("nested")})
	NewNoOpLogger().Error("discarded", nil)
}
