package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-chatbot/internal/infra/logger"
)

func TestContextLogger_ExtractsContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	cl := logger.NewContextLoggerWith(base, "kb-chatbot")

	ctx := context.Background()
	ctx = logger.WithSessionID(ctx, "conv-42")
	ctx = logger.WithRequestID(ctx, "req-7")
	ctx = logger.WithProcessingStage(ctx, "retrieval")

	cl.WithContext(ctx).Warn("retrieval_failed", slog.String("error", "boom"))

	out := buf.String()
	assert.Contains(t, out, `"service":"kb-chatbot"`)
	assert.Contains(t, out, `"chat.session.id":"conv-42"`)
	assert.Contains(t, out, `"chat.request.id":"req-7"`)
	assert.Contains(t, out, `"chat.processing.stage":"retrieval"`)
	assert.Contains(t, out, "retrieval_failed")
}

func TestContextLogger_BareContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	cl := logger.NewContextLoggerWith(base, "kb-chatbot")

	cl.WithContext(context.Background()).Info("started")

	out := buf.String()
	assert.Contains(t, out, `"service":"kb-chatbot"`)
	assert.NotContains(t, out, "chat.session.id")
}

func TestMultiHandler(t *testing.T) {
	h := logger.NewMultiHandler(slog.LevelInfo)

	ctx := context.Background()
	assert.True(t, h.Enabled(ctx, slog.LevelInfo))

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "event", 0)
	require.NoError(t, h.Handle(ctx, record))

	assert.NotNil(t, h.WithAttrs([]slog.Attr{slog.String("k", "v")}))
	assert.NotNil(t, h.WithGroup("group"))
}
