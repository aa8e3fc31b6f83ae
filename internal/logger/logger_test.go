package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_Level(t *testing.T) {
	l, err := New("order-service", "debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("order-service", "loud")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel), "unknown level falls back to info")
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestFromContext(t *testing.T) {
	fallback := zap.NewNop()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	reqLog := zap.NewExample()
	ctx := WithContext(context.Background(), reqLog)
	assert.Same(t, reqLog, FromContext(ctx, fallback))
}
