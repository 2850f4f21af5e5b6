package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loqalabs/loqa-lessons/internal/audio"
	"github.com/loqalabs/loqa-lessons/internal/bus"
	"github.com/loqalabs/loqa-lessons/internal/config"
	"github.com/loqalabs/loqa-lessons/internal/eventstore"
	"github.com/loqalabs/loqa-lessons/internal/httpapi"
	"github.com/loqalabs/loqa-lessons/internal/llm"
	"github.com/loqalabs/loqa-lessons/internal/natsserver"
	"github.com/loqalabs/loqa-lessons/internal/pipeline"
	"github.com/loqalabs/loqa-lessons/internal/store"
	"github.com/loqalabs/loqa-lessons/internal/tts"
	"github.com/loqalabs/loqa-lessons/internal/tutor"
)

const pruneInterval = time.Hour

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	natsServer *natsserver.EmbeddedServer
	bus        *bus.Client
	store      *store.Store
	events     *eventstore.Store
	dispatcher audio.Dispatcher
	busWorker  *audio.BusWorker
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start wires every component, serves HTTP until ctx is done, then shuts
// down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	router, err := r.build(ctx, metricsHandler)
	if err != nil {
		r.shutdown()
		return err
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
			serveErr <- err
			cancel()
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.pruneLoop(ctx)
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr), slog.String("dispatch", r.cfg.Audio.Dispatch))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	r.shutdown()
	r.wg.Wait()

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

func (r *Runtime) build(ctx context.Context, metricsHandler http.Handler) (*gin.Engine, error) {
	var err error
	r.store, err = store.Open(ctx, r.cfg.Store, r.logger.With(slog.String("component", "store")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	r.events, err = eventstore.Open(ctx, r.cfg.EventStore, r.logger.With(slog.String("component", "eventstore")))
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	synth, err := tts.FromConfig(r.cfg.TTS)
	if err != nil {
		return nil, fmt.Errorf("create synthesizer: %w", err)
	}
	pool := tts.NewPool(synth, r.cfg.Audio.SynthesisSlots,
		time.Duration(r.cfg.Audio.SynthesisTimeoutMS)*time.Millisecond, r.logger)

	metrics, err := audio.NewMetrics(nil)
	if err != nil {
		r.logger.Warn("failed to initialize audio metrics", slog.String("error", err.Error()))
	}
	orch := audio.NewOrchestrator(pool, r.store, metrics, r.logger)
	runner := audio.NewRunner(orch, r.events, metrics, r.logger)

	if err := r.startDispatch(ctx, runner); err != nil {
		return nil, err
	}

	gen, err := llm.New(r.cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm backend: %w", err)
	}
	lessonTutor := tutor.New(gen, r.cfg.LLM, r.cfg.Lessons.WordCount, r.logger)
	service := pipeline.NewService(lessonTutor, r.store, r.dispatcher, r.cfg.Lessons.OutputDir, r.logger)

	gin.SetMode(gin.ReleaseMode)
	return httpapi.NewRouter(service, httpapi.Options{
		HTTP:        r.cfg.HTTP,
		ServiceName: r.cfg.RuntimeName,
		Ready:       r.Ready,
		Metrics:     metricsHandler,
		Logger:      r.logger,
	}), nil
}

func (r *Runtime) startDispatch(ctx context.Context, runner *audio.Runner) error {
	if r.cfg.Audio.Dispatch != "bus" {
		r.dispatcher = audio.NewQueue(runner, r.cfg.Audio.Workers, r.cfg.Audio.QueueSize, r.logger)
		return nil
	}

	busCfg := r.cfg.Bus
	if busCfg.Embedded {
		ns, err := natsserver.Start(busCfg, r.logger)
		if err != nil {
			return err
		}
		r.natsServer = ns
		busCfg.Servers = []string{ns.ClientURL()}
	}
	client, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return err
	}
	r.bus = client

	r.busWorker = audio.NewBusWorker(client.Conn(), r.cfg.Audio.Subject, r.cfg.Audio.QueueGroup,
		r.cfg.Audio.Workers, runner, r.logger)
	if err := r.busWorker.Start(); err != nil {
		return err
	}
	r.dispatcher = audio.NewBusDispatcher(client.Conn(), r.cfg.Audio.Subject, runner, r.logger)
	return nil
}

func (r *Runtime) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.events.Prune(ctx); err != nil {
				r.logger.Warn("event store prune failed", slog.String("error", err.Error()))
			}
		}
	}
}

// shutdown stops intake first and closes storage last so that every
// running job can persist its artifacts.
func (r *Runtime) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if r.httpServer != nil {
		if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	if r.dispatcher != nil {
		if err := r.dispatcher.Close(shutdownCtx); err != nil {
			r.logger.Error("audio dispatcher shutdown error", slog.String("error", err.Error()))
		}
	}
	if r.busWorker != nil {
		if err := r.busWorker.Close(shutdownCtx); err != nil {
			r.logger.Error("audio worker shutdown error", slog.String("error", err.Error()))
		}
	}
	r.bus.Close()
	r.natsServer.Shutdown()
	if err := r.events.Close(); err != nil {
		r.logger.Error("event store close error", slog.String("error", err.Error()))
	}
	if err := r.store.Close(); err != nil {
		r.logger.Error("store close error", slog.String("error", err.Error()))
	}
	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}

// Ready reports whether the runtime accepts work.
func (r *Runtime) Ready() bool {
	if !r.ready.Load() {
		return false
	}
	return r.bus == nil || r.bus.Healthy()
}
