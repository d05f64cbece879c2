// Package app wires a loaded configuration into a running RootSupervisor:
// logger, metrics registry, Kafka broker, scheduler client, dedup cache,
// and an HTTP server exposing /metrics.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/signals"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grafana/sourcewatch/internal/configstore"
	"github.com/grafana/sourcewatch/internal/dedup"
	"github.com/grafana/sourcewatch/internal/kafka"
	"github.com/grafana/sourcewatch/internal/metrics"
	"github.com/grafana/sourcewatch/internal/scheduler"
	"github.com/grafana/sourcewatch/internal/supervisor"
)

// App is the top-level process: one RootSupervisor plus the HTTP server
// that exposes its metrics.
type App struct {
	logger  log.Logger
	store   *configstore.Store
	server  *http.Server
	root    *supervisor.RootSupervisor
}

// New builds an App from an already-loaded Store.
func New(store *configstore.Store) (*App, error) {
	logger := newLogger(store.LogLevel())
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	broker := kafka.NewBroker(logger, "sourcewatch")

	var sched supervisor.Scheduler
	switch store.Scheduler().Mode {
	case "http":
		sched = scheduler.NewHTTPClient(store.Scheduler().Endpoint, logger)
	default:
		sched = scheduler.NewLogClient(logger)
	}

	supervisor.WarmupInterval = store.WarmupInterval()

	deps := supervisor.Deps{
		Broker:    broker,
		Scheduler: sched,
		Logger:    loggerAdapter{logger},
		Metrics:   collector,
	}
	if store.Dedup().Enabled {
		// Assigned only when enabled: a nil *dedup.Cache stored in the
		// deduper interface field would be a non-nil interface wrapping a
		// nil pointer, and worker.go's "dedup != nil" check would then
		// call Seen on it and panic.
		deps.Dedup = dedup.NewCache(time.Duration(store.Dedup().TTL), store.Dedup().MaxEntries)
	}

	root, err := supervisor.NewRootSupervisor(store.GetSources("kafka"), deps)
	if err != nil {
		return nil, fmt.Errorf("building root supervisor: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &App{
		logger: logger,
		store:  store,
		root:   root,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", store.HTTPListenPort()),
			Handler: mux,
		},
	}, nil
}

// Run starts the HTTP server and the root supervisor, blocking until a
// terminating signal arrives or the root supervisor exits.
func (a *App) Run() error {
	go func() {
		level.Info(a.logger).Log("msg", "starting metrics server", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			level.Error(a.logger).Log("msg", "metrics server failed", "err", err)
		}
	}()

	if err := a.root.StartAsync(context.Background()); err != nil {
		return fmt.Errorf("starting root supervisor: %w", err)
	}

	handler := signals.NewHandler(a.logger)
	stopped := make(chan error, 1)
	go func() {
		stopped <- a.root.AwaitTerminated(context.Background())
	}()

	go func() {
		handler.Loop()
		a.root.StopAsync()
	}()

	err := <-stopped
	_ = a.server.Shutdown(context.Background())
	return err
}

// newLogger builds a go-kit logfmt logger filtered to levelName, falling
// back to "info" for an unrecognized level.
func newLogger(levelName string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var lvl level.Option
	switch levelName {
	case "debug":
		lvl = level.AllowDebug()
	case "warn":
		lvl = level.AllowWarn()
	case "error":
		lvl = level.AllowError()
	default:
		lvl = level.AllowInfo()
	}
	return level.NewFilter(logger, lvl)
}

// loggerAdapter maps supervisor.Logger onto go-kit/log's level helpers.
type loggerAdapter struct {
	logger log.Logger
}

func (l loggerAdapter) Trace(msg string, keyvals ...any) {
	level.Debug(l.logger).Log(append([]any{"msg", msg}, keyvals...)...)
}

func (l loggerAdapter) Info(msg string, keyvals ...any) {
	level.Info(l.logger).Log(append([]any{"msg", msg}, keyvals...)...)
}

func (l loggerAdapter) Error(msg string, keyvals ...any) {
	level.Error(l.logger).Log(append([]any{"msg", msg}, keyvals...)...)
}
