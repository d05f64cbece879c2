package supervisor

import (
	"context"
	"time"
)

// Decision is the result of one autoscaler tick.
type Decision int

const (
	// DecisionNone means neither grow nor shrink.
	DecisionNone Decision = 0
	// DecisionGrow means a worker was spawned.
	DecisionGrow Decision = 1
	// DecisionShrink means the oldest worker was signaled to stop.
	DecisionShrink Decision = -1
)

func (d Decision) String() string {
	switch d {
	case DecisionGrow:
		return "grow"
	case DecisionShrink:
		return "shrink"
	default:
		return "none"
	}
}

// Reallocate runs one autoscaler tick against g: it samples backlog twice
// (with a WarmupInterval gap to debounce single-spike reactions), then
// grows, shrinks, or does nothing. See spec.md 4.D for the full decision
// table.
//
// Exported (rather than a private method) so the decision logic can be unit
// tested against a synthetic GroupSupervisor-shaped fixture without driving
// the full service lifecycle.
func Reallocate(ctx context.Context, g *GroupSupervisor) Decision {
	b1 := Backlog(ctx, g.logger, g.monitor)
	g.metrics.BacklogSample(g.cfg.Name, b1)
	sleep(ctx, WarmupInterval)
	b2 := Backlog(ctx, g.logger, g.monitor)
	g.metrics.BacklogSample(g.cfg.Name, b2)

	switch {
	case b1 > float64(g.cfg.MaxBacklog) && b2 > float64(g.cfg.MaxBacklog) && len(g.workers) < g.cfg.MaxConsumers:
		handle, err := g.spawnWorker(ctx)
		if err != nil {
			g.logger.Error("failed to spawn worker during grow", "source", g.cfg.Name, "err", err)
			g.metrics.ScaleDecision(g.cfg.Name, DecisionNone.String())
			return DecisionNone
		}
		g.workers = append(g.workers, handle)
		g.logger.Trace("backlog high, grew worker set", "source", g.cfg.Name, "workers", len(g.workers))
		g.metrics.ScaleDecision(g.cfg.Name, DecisionGrow.String())
		return DecisionGrow

	case b1 <= float64(g.cfg.MinBacklog) && b2 <= float64(g.cfg.MinBacklog) && len(g.workers) > 1:
		oldest := g.workers[0]
		oldest.stopWorker()
		g.logger.Trace("backlog low, signaled oldest worker to stop", "source", g.cfg.Name, "workers", len(g.workers))
		sleep(ctx, WarmupInterval)
		g.metrics.ScaleDecision(g.cfg.Name, DecisionShrink.String())
		return DecisionShrink

	default:
		g.metrics.ScaleDecision(g.cfg.Name, DecisionNone.String())
		return DecisionNone
	}
}

// sleep blocks for d or until ctx is cancelled, whichever comes first. It
// replaces the source implementation's multiprocessing-safe busy-wait
// (spec.md 9 design note) with the platform's blocking primitive.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
