package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/loqalabs/loqa-lessons/internal/protocol"
	"github.com/nats-io/nats.go"
)

// BusDispatcher publishes jobs to NATS for a BusWorker to pick up.
type BusDispatcher struct {
	conn    *nats.Conn
	subject string
	runner  *Runner
	logger  *slog.Logger
}

// NewBusDispatcher publishes jobs on subject. runner records the scheduled
// and publish-failure transitions.
func NewBusDispatcher(conn *nats.Conn, subject string, runner *Runner, logger *slog.Logger) *BusDispatcher {
	if subject == "" {
		subject = protocol.SubjectAudioTurn
	}
	return &BusDispatcher{
		conn:    conn,
		subject: subject,
		runner:  runner,
		logger:  logger.With(slog.String("component", "audio-bus-dispatcher")),
	}
}

func (d *BusDispatcher) Dispatch(ctx context.Context, job Job) {
	job = ensureTaskID(job)
	ctx = context.WithoutCancel(ctx)

	msg := toMessage(job)
	msg.EnqueuedAt = time.Now().UTC()
	data, err := sonic.Marshal(msg)
	if err != nil {
		d.runner.Fail(ctx, job, fmt.Errorf("encode audio job: %w", err))
		return
	}
	d.runner.Scheduled(ctx, job)
	if err := d.conn.Publish(d.subject, data); err != nil {
		d.runner.Fail(ctx, job, fmt.Errorf("publish audio job: %w", err))
	}
}

// Close flushes pending publishes.
func (d *BusDispatcher) Close(ctx context.Context) error {
	if d.conn == nil || d.conn.IsClosed() {
		return nil
	}
	return d.conn.FlushWithContext(ctx)
}

// BusWorker consumes jobs from a NATS queue group. Several processes may
// join the same group; each job is delivered to one of them.
type BusWorker struct {
	conn    *nats.Conn
	subject string
	queue   string
	runner  *Runner
	slots   chan struct{}
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sub    *nats.Subscription
}

// NewBusWorker runs at most workers jobs at once.
func NewBusWorker(conn *nats.Conn, subject, queue string, workers int, runner *Runner, logger *slog.Logger) *BusWorker {
	if subject == "" {
		subject = protocol.SubjectAudioTurn
	}
	if queue == "" {
		queue = protocol.QueueAudioWorkers
	}
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BusWorker{
		conn:    conn,
		subject: subject,
		queue:   queue,
		runner:  runner,
		slots:   make(chan struct{}, workers),
		logger:  logger.With(slog.String("component", "audio-bus-worker")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *BusWorker) Start() error {
	sub, err := w.conn.QueueSubscribe(w.subject, w.queue, w.handle)
	if err != nil {
		return fmt.Errorf("subscribe audio jobs: %w", err)
	}
	w.sub = sub
	w.logger.Info("audio bus worker subscribed", slog.String("subject", w.subject), slog.String("queue", w.queue))
	return nil
}

func (w *BusWorker) handle(msg *nats.Msg) {
	var payload protocol.AudioJob
	if err := sonic.Unmarshal(msg.Data, &payload); err != nil {
		w.logger.Warn("failed to decode audio job",
			slog.String("turn_id", turnLabel(0)),
			slogError(err))
		return
	}
	job := fromMessage(payload)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case w.slots <- struct{}{}:
		case <-w.ctx.Done():
			w.runner.Fail(context.Background(), job, w.ctx.Err())
			return
		}
		defer func() { <-w.slots }()
		w.runner.Execute(w.ctx, job)
	}()
}

// Close drains the subscription and waits for in-flight jobs. If ctx
// expires first, running jobs are cancelled.
func (w *BusWorker) Close(ctx context.Context) error {
	if w.sub != nil {
		if err := w.sub.Drain(); err != nil {
			w.logger.Warn("drain audio subscription failed", slogError(err))
		}
		for w.sub.IsValid() {
			select {
			case <-ctx.Done():
				w.cancel()
				w.wg.Wait()
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		return ctx.Err()
	}
}
