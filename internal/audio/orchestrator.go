package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/loqalabs/loqa-lessons/internal/lesson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/loqalabs/loqa-lessons/internal/audio"

// Outcome reports what happened to one job.
type Outcome struct {
	Artifacts []lesson.Artifact
	Segments  int
	Err       error
}

// Orchestrator voices a single turn and records its artifacts.
type Orchestrator struct {
	pool    SynthesisPool
	store   ArtifactStore
	metrics *Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewOrchestrator wires a synthesis pool to an artifact store. metrics may be nil.
func NewOrchestrator(pool SynthesisPool, store ArtifactStore, metrics *Metrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		pool:    pool,
		store:   store,
		metrics: metrics,
		tracer:  otel.Tracer(instrumentationName),
		logger:  logger.With(slog.String("component", "audio-orchestrator")),
	}
}

// Process runs job and discards the outcome. It never panics and never
// returns an error; failures are only logged.
func (o *Orchestrator) Process(ctx context.Context, job Job) {
	_ = o.Run(ctx, job)
}

// Run voices job. A panic anywhere below is converted into Outcome.Err.
func (o *Orchestrator) Run(ctx context.Context, job Job) (out Outcome) {
	log := o.logger.With(
		slog.Int64("lesson_id", job.LessonID),
		slog.String("turn_id", turnLabel(job.Turn.ID)),
		slog.String("task_id", job.TaskID),
	)

	ctx, span := o.tracer.Start(ctx, "audio.turn", trace.WithAttributes(
		attribute.Int64("lesson.id", job.LessonID),
		attribute.Int("turn.id", job.Turn.ID),
		attribute.String("turn.speaker", job.Turn.Speaker),
	))
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Err: fmt.Errorf("audio task panic: %v", r)}
			log.Error("audio task panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
		}
		span.SetAttributes(attribute.Int("audio.artifacts", len(out.Artifacts)))
		span.End()
	}()

	out = o.run(ctx, job, log)
	switch {
	case errors.Is(out.Err, lesson.ErrNoTurnText), errors.Is(out.Err, lesson.ErrEmptyAfterSanitize):
		log.Info("skipping turn", slogError(out.Err))
	case out.Err != nil:
		log.Warn("audio task failed", slogError(out.Err))
	default:
		log.Info("audio task completed", slog.Int("artifacts", len(out.Artifacts)))
	}
	return out
}

func (o *Orchestrator) run(ctx context.Context, job Job, log *slog.Logger) Outcome {
	if strings.TrimSpace(job.Turn.Text) == "" {
		return Outcome{Err: lesson.ErrNoTurnText}
	}
	text := lesson.Sanitize(job.Turn.Text)
	if text == "" {
		return Outcome{Err: lesson.ErrEmptyAfterSanitize}
	}

	prefix := lesson.FilePrefix(job.FileBasename, job.Turn.ID, job.Turn.Speaker)
	start := time.Now()
	paths := o.pool.Synthesize(ctx, text, job.OutputDir, prefix)
	o.metrics.observeSynthesis(ctx, time.Since(start), len(paths))
	if len(paths) == 0 {
		return Outcome{Err: ErrNoAudio}
	}

	out := Outcome{Segments: len(paths)}
	var errs []error
	for _, path := range paths {
		artifact, err := o.store.CreateAudioArtifact(ctx, job.LessonID, path, job.Turn.ID)
		if err != nil {
			log.Warn("record audio artifact failed", slog.String("path", path), slogError(err))
			errs = append(errs, err)
			continue
		}
		out.Artifacts = append(out.Artifacts, artifact)
	}
	if len(out.Artifacts) == 0 {
		out.Err = fmt.Errorf("record audio artifacts: %w", errors.Join(errs...))
	}
	return out
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
