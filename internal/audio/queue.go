package audio

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Queue is an in-process Dispatcher: a bounded buffer drained by a fixed set
// of workers. Dispatch never blocks; a full buffer fails the job.
type Queue struct {
	runner *Runner
	jobs   chan Job
	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts workers goroutines consuming a buffer of size jobs.
func NewQueue(runner *Runner, workers, size int, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		runner: runner,
		jobs:   make(chan Job, size),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(slog.String("component", "audio-queue")),
	}
	for i := 0; i < workers; i++ {
		q.group.Go(q.work)
	}
	q.logger.Info("audio queue started", slog.Int("workers", workers), slog.Int("size", size))
	return q
}

func (q *Queue) work() error {
	for job := range q.jobs {
		q.runner.Execute(q.ctx, job)
	}
	return nil
}

// Dispatch schedules job. The caller's context only carries values; its
// cancellation does not stop the job.
func (q *Queue) Dispatch(ctx context.Context, job Job) {
	job = ensureTaskID(job)
	ctx = context.WithoutCancel(ctx)

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.runner.Fail(ctx, job, ErrQueueClosed)
		return
	}
	q.runner.Scheduled(ctx, job)
	select {
	case q.jobs <- job:
	default:
		q.runner.Fail(ctx, job, ErrQueueFull)
	}
}

// Close stops intake and waits for queued and running jobs. If ctx expires
// first, running jobs are cancelled and ctx's error is returned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = q.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		q.logger.Info("audio queue drained")
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
