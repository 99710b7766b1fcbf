// Package runtime wires configuration, backends and transports into a running service.
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

	"github.com/loqalabs/ortheloquence/internal/bus"
	"github.com/loqalabs/ortheloquence/internal/busapi"
	"github.com/loqalabs/ortheloquence/internal/config"
	"github.com/loqalabs/ortheloquence/internal/events"
	"github.com/loqalabs/ortheloquence/internal/httpapi"
	"github.com/loqalabs/ortheloquence/internal/natsserver"
	"github.com/loqalabs/ortheloquence/internal/sessions"
)

const pruneInterval = time.Hour

type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	embedded      *natsserver.EmbeddedServer
	bus           *bus.Client
	store         *sessions.Store
	dispatcher    *events.Dispatcher
	busAPI        *busapi.Service
	closePipeline func() error
	ready         atomic.Bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start blocks until ctx is cancelled, then shuts everything down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer r.shutdown()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if err := r.startBus(ctx); err != nil {
		return err
	}

	r.store, err = sessions.Open(ctx, r.cfg.SessionStore, r.logger)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}

	publisher, err := events.NewPublisher(r.cfg.Events, r.bus, r.logger)
	if err != nil {
		return fmt.Errorf("create event publisher: %w", err)
	}
	r.dispatcher = events.NewDispatcher(publisher, r.cfg.Events.TopicPrefix, r.logger)

	p, closePipeline, err := BuildPipeline(ctx, r.cfg, r.dispatcher, r.logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	r.closePipeline = closePipeline

	if r.cfg.BusAPI.Enabled {
		r.busAPI = busapi.NewService(ctx, r.cfg.BusAPI, r.bus, p, r.logger)
		if err := r.busAPI.Start(); err != nil {
			return fmt.Errorf("start bus api: %w", err)
		}
	}

	router := httpapi.NewRouter(httpapi.Options{
		Pipeline:       p,
		Sessions:       r.store,
		MaxUploadBytes: int64(r.cfg.HTTP.MaxUploadMB) << 20,
		Ready:          r.healthy,
		Metrics:        metricsHandler,
		Logger:         r.logger,
	})

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.serve(r.httpServer, "http")

	if bind := r.cfg.Telemetry.PrometheusBind; bind != "" && metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{Addr: bind, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		r.serve(r.metricsServer, "metrics")
	}

	r.wg.Add(1)
	go r.pruneLoop(ctx)

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	return nil
}

func (r *Runtime) startBus(ctx context.Context) error {
	if !r.cfg.BusRequired() {
		return nil
	}
	busCfg := r.cfg.Bus
	if busCfg.Embedded {
		srv, err := natsserver.Start(busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("start embedded nats: %w", err)
		}
		r.embedded = srv
		busCfg.Servers = []string{srv.ClientURL()}
	}
	client, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return err
	}
	r.bus = client
	return nil
}

func (r *Runtime) serve(srv *http.Server, name string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("server failed", slog.String("server", name), slog.String("error", err.Error()))
		}
	}()
}

func (r *Runtime) pruneLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.store.Prune(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("session prune failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (r *Runtime) healthy() bool {
	if !r.ready.Load() {
		return false
	}
	if r.bus != nil && !r.bus.Healthy() {
		return false
	}
	return r.busAPI == nil || r.busAPI.Healthy()
}

func (r *Runtime) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range []*http.Server{r.httpServer, r.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.busAPI != nil {
		r.busAPI.Close()
	}
	if r.dispatcher != nil {
		if err := r.dispatcher.Close(); err != nil {
			r.logger.Warn("event publisher close error", slog.String("error", err.Error()))
		}
	}
	if r.closePipeline != nil {
		if err := r.closePipeline(); err != nil {
			r.logger.Warn("pipeline close error", slog.String("error", err.Error()))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("session store close error", slog.String("error", err.Error()))
		}
	}
	r.bus.Close()
	r.embedded.Shutdown()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}
