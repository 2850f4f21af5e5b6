package audio

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the audio instruments. A nil *Metrics records nothing.
type Metrics struct {
	tasks     metric.Int64Counter
	segments  metric.Int64Counter
	synthesis metric.Float64Histogram
}

// NewMetrics registers the instruments on meter, or on the global provider
// when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	tasks, err := meter.Int64Counter("lessons_audio_tasks_total",
		metric.WithDescription("Audio task state transitions"))
	if err != nil {
		return nil, err
	}
	segments, err := meter.Int64Counter("lessons_audio_segments_total",
		metric.WithDescription("Audio segments written"))
	if err != nil {
		return nil, err
	}
	synthesis, err := meter.Float64Histogram("lessons_audio_synthesis_seconds",
		metric.WithDescription("Duration of one synthesis call"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{tasks: tasks, segments: segments, synthesis: synthesis}, nil
}

func (m *Metrics) recordState(ctx context.Context, state State) {
	if m == nil {
		return
	}
	m.tasks.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
}

func (m *Metrics) observeSynthesis(ctx context.Context, elapsed time.Duration, segments int) {
	if m == nil {
		return
	}
	m.synthesis.Record(ctx, elapsed.Seconds())
	if segments > 0 {
		m.segments.Add(ctx, int64(segments))
	}
}
