package tts

import (
	"context"
	"time"
)

type mockSynth struct {
	duration time.Duration
}

// NewMockSynth returns a synthesizer that emits a single segment of silence.
func NewMockSynth() Synthesizer {
	return &mockSynth{duration: 250 * time.Millisecond}
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan Segment, <-chan error) {
	segments := make(chan Segment, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(segments)
		defer close(errs)
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		case <-time.After(20 * time.Millisecond):
		}
		samples := int(m.duration.Seconds() * SampleRate)
		segments <- Segment{Index: 0, PCM: make([]byte, samples*2*Channels)}
	}()
	return segments, errs
}
