package observability_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/ai-video-generator/internal/observability"
)

func TestContextWithLogger_RoundTrip(t *testing.T) {
	lg := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := observability.ContextWithLogger(context.Background(), lg)
	assert.Same(t, lg, observability.LoggerFromContext(ctx))
}

func TestLoggerFromContext_Fallbacks(t *testing.T) {
	assert.NotNil(t, observability.LoggerFromContext(nil))
	assert.NotNil(t, observability.LoggerFromContext(context.Background()))

	// Nil logger never replaces the default.
	ctx := observability.ContextWithLogger(context.Background(), nil)
	assert.NotNil(t, observability.LoggerFromContext(ctx))
}

func TestRunID_RoundTrip(t *testing.T) {
	ctx := observability.ContextWithRunID(context.Background(), "run-1")
	assert.Equal(t, "run-1", observability.RunIDFromContext(ctx))

	assert.Empty(t, observability.RunIDFromContext(context.Background()))
	assert.Empty(t, observability.RunIDFromContext(nil))

	// Empty ids are not stored.
	ctx = observability.ContextWithRunID(context.Background(), "")
	assert.Empty(t, observability.RunIDFromContext(ctx))
}
