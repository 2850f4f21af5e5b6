package tts

import (
	"context"
	"fmt"

	"github.com/loqalabs/loqa-lessons/internal/config"
)

// Fixed encoding contract with the synthesis engine: 16-bit little-endian
// mono PCM at 24 kHz.
const (
	SampleRate = 24000
	Channels   = 1
	BitDepth   = 16
)

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	Text  string
	Voice string
}

// Segment is one audio segment produced by the engine. The engine may split a
// single input into several segments; Index is the position in its output.
type Segment struct {
	Index int
	PCM   []byte
	Err   error
}

// Synthesizer is the contract for producing audio. Segments are delivered in
// engine order; a failure of the engine invocation itself is sent on the error
// channel.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (<-chan Segment, <-chan error)
}

// FromConfig selects the synthesizer for the configured mode.
func FromConfig(cfg config.TTSConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "", "mock":
		return NewMockSynth(), nil
	case "exec":
		return NewExecSynth(cfg.Command, cfg.Voice)
	default:
		return nil, fmt.Errorf("unknown tts mode %q", cfg.Mode)
	}
}
