package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool runs synthesis requests on a bounded number of isolated engine slots.
// Each request is self-contained; no engine state is shared between calls.
type Pool struct {
	synth   Synthesizer
	slots   *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger
}

// NewPool returns a pool allowing at most slots concurrent engine invocations.
// A zero timeout disables the per-call deadline.
func NewPool(synth Synthesizer, slots int, timeout time.Duration, logger *slog.Logger) *Pool {
	if slots <= 0 {
		slots = 1
	}
	return &Pool{
		synth:   synth,
		slots:   semaphore.NewWeighted(int64(slots)),
		timeout: timeout,
		logger:  logger.With(slog.String("component", "tts-pool")),
	}
}

// Synthesize speaks text and writes one WAV file per produced segment, named
// "{filePrefix}{index}.wav" inside outputDir. Paths of the files written are
// returned; failed segments are logged and skipped, and an engine failure
// before any segment yields an empty result.
func (p *Pool) Synthesize(ctx context.Context, text, outputDir, filePrefix string) []string {
	log := p.logger.With(slog.String("prefix", filePrefix))
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Warn("create output dir failed", slog.String("dir", outputDir), slogError(err))
		return nil
	}
	if strings.TrimSpace(text) == "" {
		log.Warn("refusing to synthesize empty text")
		return nil
	}

	if err := p.slots.Acquire(ctx, 1); err != nil {
		log.Warn("synthesis slot unavailable", slogError(err))
		return nil
	}
	defer p.slots.Release(1)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	segments, errs := p.synth.Synthesize(ctx, SynthRequest{Text: text})
	var paths []string
	for segments != nil || errs != nil {
		select {
		case seg, ok := <-segments:
			if !ok {
				segments = nil
				continue
			}
			if seg.Err != nil {
				log.Warn("skipping failed segment", slog.Int("segment", seg.Index), slogError(seg.Err))
				continue
			}
			path := filepath.Join(outputDir, fmt.Sprintf("%s%d.wav", filePrefix, seg.Index))
			if err := WriteWAV(path, seg.PCM); err != nil {
				log.Warn("skipping unwritable segment", slog.Int("segment", seg.Index), slogError(err))
				continue
			}
			paths = append(paths, path)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				log.Warn("tts synthesis error", slogError(err))
			}
		}
	}
	log.Debug("synthesis finished",
		slog.Int("segments", len(paths)),
		slog.Duration("latency", time.Since(start)))
	return paths
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
