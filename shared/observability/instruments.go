package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// AI call outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Chunk directions.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// Instruments are the application metrics. A nil *Instruments is valid and
// records nothing.
type Instruments struct {
	aiCalls       otelmetric.Int64Counter
	pointsAwarded otelmetric.Int64Counter
	voiceSessions otelmetric.Int64UpDownCounter
	voiceChunks   otelmetric.Int64Counter
}

// NewInstruments registers the instruments on mp, or on the global meter
// provider when mp is nil.
func NewInstruments(mp otelmetric.MeterProvider) (*Instruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("calma/backend")

	var (
		i   Instruments
		err error
	)
	if i.aiCalls, err = meter.Int64Counter("calma_ai_calls",
		otelmetric.WithDescription("Remote AI calls by operation and outcome")); err != nil {
		return nil, err
	}
	if i.pointsAwarded, err = meter.Int64Counter("calma_points_awarded",
		otelmetric.WithDescription("Points awarded by reason")); err != nil {
		return nil, err
	}
	if i.voiceSessions, err = meter.Int64UpDownCounter("calma_voice_sessions_active",
		otelmetric.WithDescription("Open realtime voice sessions")); err != nil {
		return nil, err
	}
	if i.voiceChunks, err = meter.Int64Counter("calma_voice_chunks",
		otelmetric.WithDescription("Audio chunks by direction")); err != nil {
		return nil, err
	}
	return &i, nil
}

// AICall counts one remote call.
func (i *Instruments) AICall(ctx context.Context, op, outcome string) {
	if i == nil {
		return
	}
	i.aiCalls.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

// PointsAwarded counts points granted for reason.
func (i *Instruments) PointsAwarded(ctx context.Context, reason string, n int) {
	if i == nil || n <= 0 {
		return
	}
	i.pointsAwarded.Add(ctx, int64(n), otelmetric.WithAttributes(attribute.String("reason", reason)))
}

// SessionOpened and SessionClosed track live voice sessions.
func (i *Instruments) SessionOpened(ctx context.Context) {
	if i != nil {
		i.voiceSessions.Add(ctx, 1)
	}
}

func (i *Instruments) SessionClosed(ctx context.Context) {
	if i != nil {
		i.voiceSessions.Add(ctx, -1)
	}
}

// Chunk counts one audio chunk.
func (i *Instruments) Chunk(ctx context.Context, direction string) {
	if i == nil {
		return
	}
	i.voiceChunks.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("direction", direction)))
}
