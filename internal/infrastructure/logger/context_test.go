package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fieldMap(entry observer.LoggedEntry) map[string]any {
	return entry.ContextMap()
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	base := zap.NewExample()
	ctx := WithContext(context.Background(), base)
	assert.Same(t, base, FromContext(ctx))
}

func TestWithHelpers_StoreValues(t *testing.T) {
	ctx := context.Background()
	ctx, _ = WithRequestID(ctx, zap.NewNop(), "req-1")
	ctx, _ = WithUserID(ctx, FromContext(ctx), "user-1")
	ctx, _ = WithOperation(ctx, FromContext(ctx), "materialize_range")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
	assert.Equal(t, "materialize_range", GetOperation(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestL_UsesEnrichedContextLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx, _ := WithRequestID(context.Background(), zap.New(core), "req-7")
	ctx, _ = WithOperation(ctx, FromContext(ctx), "cleanup_orphan_receivables")

	L(ctx).Info("removed", zap.Int("count", 3))

	entries := recorded.All()
	assert.Len(t, entries, 1)
	fields := fieldMap(entries[0])
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "cleanup_orphan_receivables", fields["operation"])
	assert.Equal(t, int64(3), fields["count"])
}

func TestWithLogger_AddsContextFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := context.WithValue(context.Background(), userIDKey, "user-9")

	WithLogger(ctx, zap.New(core)).With(zap.String("contract_id", "c-1")).Warn("skipped")

	entries := recorded.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := fieldMap(entries[0])
	assert.Equal(t, "user-9", fields["user_id"])
	assert.Equal(t, "c-1", fields["contract_id"])
}
