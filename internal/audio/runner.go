package audio

import (
	"context"
	"log/slog"

	"github.com/loqalabs/loqa-lessons/internal/eventstore"
)

// Runner moves jobs through scheduled, running and a terminal state.
// Failed is terminal and is never reported back to whoever dispatched.
type Runner struct {
	orch     *Orchestrator
	recorder Recorder
	metrics  *Metrics
	logger   *slog.Logger
}

// NewRunner builds a Runner. recorder and metrics may be nil.
func NewRunner(orch *Orchestrator, recorder Recorder, metrics *Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		orch:     orch,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "audio-runner")),
	}
}

// Scheduled marks job as accepted for background work.
func (r *Runner) Scheduled(ctx context.Context, job Job) {
	r.transition(ctx, job, StateScheduled, "")
}

// Fail marks job failed without running it.
func (r *Runner) Fail(ctx context.Context, job Job, err error) {
	r.logger.Warn("audio task dropped",
		slog.String("task_id", job.TaskID),
		slog.String("turn_id", turnLabel(job.Turn.ID)),
		slogError(err))
	r.transition(ctx, job, StateFailed, err.Error())
}

// Execute runs job to completion.
func (r *Runner) Execute(ctx context.Context, job Job) Outcome {
	r.transition(ctx, job, StateRunning, "")
	out := r.orch.Run(ctx, job)
	if out.Err != nil {
		r.transition(ctx, job, StateFailed, out.Err.Error())
		return out
	}
	r.transition(ctx, job, StateCompleted, "")
	return out
}

func (r *Runner) transition(ctx context.Context, job Job, state State, detail string) {
	r.metrics.recordState(ctx, state)
	if r.recorder == nil {
		return
	}
	err := r.recorder.RecordTransition(ctx, eventstore.Transition{
		TaskID:   job.TaskID,
		LessonID: job.LessonID,
		TurnID:   job.Turn.ID,
		State:    string(state),
		Detail:   detail,
	})
	if err != nil {
		r.logger.Warn("record task transition failed",
			slog.String("task_id", job.TaskID),
			slog.String("state", string(state)),
			slogError(err))
	}
}
