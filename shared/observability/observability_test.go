package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestMetricsExposeInstruments(t *testing.T) {
	mp, handler, err := SetupMetrics("calma-test")
	require.NoError(t, err)
	defer mp.Shutdown(context.Background())

	inst, err := NewInstruments(mp)
	require.NoError(t, err)

	ctx := context.Background()
	inst.AICall(ctx, "affirmation", OutcomeFallback)
	inst.PointsAwarded(ctx, "mood_log", 15)
	inst.SessionOpened(ctx)
	inst.Chunk(ctx, DirectionInbound)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "calma_ai_calls_total")
	assert.Contains(t, body, `outcome="fallback"`)
	assert.Contains(t, body, "calma_points_awarded_total")
	assert.Contains(t, body, "calma_voice_sessions_active")
}

func TestNilInstrumentsAreNoops(t *testing.T) {
	var inst *Instruments
	ctx := context.Background()
	assert.NotPanics(t, func() {
		inst.AICall(ctx, "x", OutcomeOK)
		inst.PointsAwarded(ctx, "x", 1)
		inst.SessionOpened(ctx)
		inst.SessionClosed(ctx)
		inst.Chunk(ctx, DirectionOutbound)
	})
}

func TestTracingWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := SetupTracing("calma-test", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "unit")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "unit")
}
