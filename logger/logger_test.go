package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapter(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZap(zap.New(core))

	l.Debug("debug msg", "k", "v")
	l.Info("info msg", "entries", 3)
	l.Warn("warn msg")
	l.Error("error msg")

	assert.Equal(t, 4, logs.Len())
	assert.Equal(t, "info msg", logs.All()[1].Message)
	assert.Equal(t, int64(3), logs.All()[1].ContextMap()["entries"])
}

func TestLogrusAdapter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ll := logrus.New()
	ll.SetOutput(&buf)
	ll.SetLevel(logrus.DebugLevel)
	l := NewLogrus(ll)

	l.Info("recovery complete", "records", 42)
	assert.Contains(t, buf.String(), "recovery complete")
	assert.Contains(t, buf.String(), "records=42")

	l.Warn("odd arg list ignored", "dangling")
	assert.Contains(t, buf.String(), "odd arg list ignored")
}
