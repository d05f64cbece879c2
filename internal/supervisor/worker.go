package supervisor

import (
	"context"

	"github.com/grafana/sourcewatch/internal/config"
	"github.com/grafana/sourcewatch/internal/projector"
)

// WorkerHandle is one live worker: an opaque execution handle plus the
// stop channel its GroupSupervisor writes to. Its only methods are the
// alive check and the stop request; GroupSupervisor owns its lifecycle.
type WorkerHandle struct {
	stop *stopSignal
	done chan struct{}
}

// alive reports whether the worker's goroutine has not yet returned.
func (h *WorkerHandle) alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// stopWorker signals h to stop at the next opportunity. Non-blocking.
func (h *WorkerHandle) stopWorker() {
	h.stop.signal()
}

// runWorker iterates consumer, projects each record, and forwards non-empty
// envelopes to scheduler. It returns when the stop signal fires, the
// consumer's iterator closes naturally, or ctx is cancelled.
//
// runWorker never blocks on anything its supervisor holds a lock on; its
// only suspension points are consumer.Iterate()'s channel receive and
// scheduler.Schedule.
func runWorker(ctx context.Context, logger Logger, cfg config.SourceConfig, consumer Consumer, dedup deduper, scheduler Scheduler, handle *WorkerHandle, metrics WorkerMetrics) {
	defer close(handle.done)
	defer consumer.Close()

	records := consumer.Iterate(ctx)
	for {
		if handle.stop.requested() {
			logger.Trace("worker stopping on signal", "source", cfg.Name)
			return
		}

		select {
		case rec, ok := <-records:
			if !ok {
				logger.Trace("worker stopping, iterator closed", "source", cfg.Name)
				return
			}
			handleRecord(cfg, rec, logger, dedup, scheduler, metrics)
		case <-handle.stop.ch:
			logger.Trace("worker stopping on signal", "source", cfg.Name)
			return
		case <-ctx.Done():
			return
		}
	}
}

func handleRecord(cfg config.SourceConfig, rec RawRecord, logger Logger, dedup deduper, scheduler Scheduler, metrics WorkerMetrics) {
	envelope, ok := projector.Project(cfg, rec.Value)
	if !ok || len(envelope) == 0 {
		logger.Trace("dropping record, projection failed or empty", "source", cfg.Name)
		metrics.ProjectionDropped(cfg.Name)
		return
	}

	if dedup != nil && dedup.Seen(cfg.Source, cfg.Name, envelope) {
		logger.Trace("dropping duplicate record", "source", cfg.Name)
		metrics.DuplicateDropped(cfg.Name)
		return
	}

	if !scheduler.Schedule(cfg.Source, cfg.Name, envelope) {
		logger.Error("scheduler rejected envelope", "source", cfg.Name)
		metrics.ScheduleRejected(cfg.Name)
		return
	}
	metrics.ScheduleAccepted(cfg.Name)
}

// deduper is the narrow interface worker.go needs from internal/dedup,
// kept here to avoid an import cycle (dedup doesn't need to know about
// supervisor).
type deduper interface {
	Seen(source, name string, envelope projector.Envelope) bool
}

// WorkerMetrics is the narrow metrics seam ConsumerWorker reports through.
type WorkerMetrics interface {
	ProjectionDropped(source string)
	DuplicateDropped(source string)
	ScheduleAccepted(source string)
	ScheduleRejected(source string)
}

// NopWorkerMetrics discards everything; used by default and in tests.
type NopWorkerMetrics struct{}

func (NopWorkerMetrics) ProjectionDropped(string) {}
func (NopWorkerMetrics) DuplicateDropped(string)  {}
func (NopWorkerMetrics) ScheduleAccepted(string)  {}
func (NopWorkerMetrics) ScheduleRejected(string)  {}
