package profile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"calma/backend/internal/catalog"
	"calma/backend/internal/store"
	"calma/backend/pkg/logger"
	"calma/backend/shared/observability"
)

var errStoreDown = errors.New("store down")

// flakyStore fails writes while down is set.
type flakyStore struct {
	*store.Memory
	down atomic.Bool
}

func (f *flakyStore) Set(ctx context.Context, key, value string) error {
	if f.down.Load() {
		return errStoreDown
	}
	return f.Memory.Set(ctx, key, value)
}

func pointsAwarded(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "calma_points_awarded" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestPointsMetricCountsOnlyPersistedAwards(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	inst, err := observability.NewInstruments(mp)
	require.NoError(t, err)

	kv := &flakyStore{Memory: store.NewMemory()}
	now := func() time.Time { return time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC) }
	svc := NewService(NewRepository(kv, "profile", logger.Discard()), catalog.Default(), inst, logger.Discard(), Options{Now: now})
	ctx := context.Background()

	kv.down.Store(true)
	_, err = svc.AddPoints(ctx, "p1", 10, ReasonMath)
	assert.ErrorIs(t, err, errStoreDown)
	_, err = svc.CompleteActivity(ctx, "p1", "math", 40, ReasonMath)
	assert.ErrorIs(t, err, errStoreDown)
	_, err = svc.SaveMood(ctx, "p1", "Calmado", "")
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, int64(0), pointsAwarded(t, reader))

	kv.down.Store(false)
	_, err = svc.AddPoints(ctx, "p1", 10, ReasonMath)
	require.NoError(t, err)
	_, err = svc.SaveMood(ctx, "p1", "Calmado", "")
	require.NoError(t, err)
	assert.Equal(t, int64(25), pointsAwarded(t, reader))
}
