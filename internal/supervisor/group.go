package supervisor

import (
	"context"
	"fmt"

	"github.com/grafana/dskit/services"

	"github.com/grafana/sourcewatch/internal/config"
)

// GroupMetrics is the narrow metrics seam GroupSupervisor reports through.
type GroupMetrics interface {
	WorkerMetrics
	BacklogSample(source string, value float64)
	WorkerCount(source string, n int)
	ScaleDecision(source string, decision string)
}

// NopGroupMetrics discards everything.
type NopGroupMetrics struct{ NopWorkerMetrics }

func (NopGroupMetrics) BacklogSample(string, float64) {}
func (NopGroupMetrics) WorkerCount(string, int)       {}
func (NopGroupMetrics) ScaleDecision(string, string)  {}

// GroupSupervisor maintains the worker set of one source: it creates the
// monitor consumer, runs the autoscaler loop, and reaps dead workers. It
// satisfies spec.md 4.D's invariants: 1 <= len(workers) <= MaxConsumers
// while live, oldest-first (FIFO) eviction.
type GroupSupervisor struct {
	services.Service

	cfg       config.SourceConfig
	broker    Broker
	scheduler Scheduler
	dedup     deduper
	logger    Logger
	metrics   GroupMetrics

	monitor Consumer
	workers []*WorkerHandle
}

// NewGroupSupervisor constructs a GroupSupervisor for cfg. It does not
// start any goroutines until the returned service is started.
func NewGroupSupervisor(cfg config.SourceConfig, broker Broker, scheduler Scheduler, dedup deduper, logger Logger, metrics GroupMetrics) *GroupSupervisor {
	if logger == nil {
		logger = NopLogger{}
	}
	if metrics == nil {
		metrics = NopGroupMetrics{}
	}
	g := &GroupSupervisor{
		cfg:       cfg,
		broker:    broker,
		scheduler: scheduler,
		dedup:     dedup,
		logger:    logger,
		metrics:   metrics,
	}
	g.Service = services.NewBasicService(g.starting, g.running, g.stopping)
	return g
}

func (g *GroupSupervisor) starting(ctx context.Context) error {
	monitor, err := g.broker.Subscribe(ctx, g.cfg.Name, g.cfg.Topics, g.cfg.Servers)
	if err != nil {
		return fmt.Errorf("creating monitor consumer for %q: %w", g.cfg.Name, err)
	}
	g.monitor = monitor

	sleep(ctx, WarmupInterval)

	handle, err := g.spawnWorker(ctx)
	if err != nil {
		_ = g.monitor.Close()
		return fmt.Errorf("creating initial worker for %q: %w", g.cfg.Name, err)
	}
	g.workers = append(g.workers, handle)
	g.metrics.WorkerCount(g.cfg.Name, len(g.workers))

	return nil
}

// running drives the control loop: while workers is non-empty, run one
// reallocate tick and reap dead handles, then repeat. It returns nil once
// workers becomes empty (all workers died with none respawned), matching
// spec.md 4.D's terminate condition.
func (g *GroupSupervisor) running(ctx context.Context) error {
	for len(g.workers) > 0 {
		select {
		case <-ctx.Done():
			g.stopAllWorkers()
			return nil
		default:
		}

		Reallocate(ctx, g)
		g.reap()
		g.metrics.WorkerCount(g.cfg.Name, len(g.workers))
	}
	g.logger.Info("group supervisor exiting, no workers left", "source", g.cfg.Name)
	return nil
}

func (g *GroupSupervisor) stopping(failure error) error {
	g.stopAllWorkers()
	if g.monitor != nil {
		_ = g.monitor.Close()
	}
	return failure
}

func (g *GroupSupervisor) stopAllWorkers() {
	for _, h := range g.workers {
		h.stopWorker()
	}
}

// reap removes handles whose worker goroutine has returned.
func (g *GroupSupervisor) reap() {
	live := g.workers[:0]
	for _, h := range g.workers {
		if h.alive() {
			live = append(live, h)
		}
	}
	g.workers = live
}

func (g *GroupSupervisor) spawnWorker(ctx context.Context) (*WorkerHandle, error) {
	consumer, err := g.broker.Subscribe(ctx, g.cfg.Name, g.cfg.Topics, g.cfg.Servers)
	if err != nil {
		return nil, err
	}
	handle := &WorkerHandle{stop: newStopSignal(), done: make(chan struct{})}
	go runWorker(ctx, g.logger, g.cfg, consumer, g.dedup, g.scheduler, handle, g.metrics)
	return handle, nil
}
