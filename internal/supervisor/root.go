package supervisor

import (
	"context"
	"fmt"

	"github.com/grafana/dskit/services"
	"go.uber.org/atomic"

	"github.com/grafana/sourcewatch/internal/config"
)

// RootSupervisor spawns one GroupSupervisor per configured source and waits
// until all of them terminate. Per spec.md 4.E it never returns under
// healthy operation; apart from an explicit stop, its running phase only
// ends once every group has exited, and then it fails.
type RootSupervisor struct {
	services.Service

	groups        []*GroupSupervisor
	logger        Logger
	manager       *services.Manager
	duringStartup atomic.Bool
}

// Deps bundles the collaborators RootSupervisor wires into every
// GroupSupervisor it spawns.
type Deps struct {
	Broker    Broker
	Scheduler Scheduler
	Dedup     deduper
	Logger    Logger
	Metrics   GroupMetrics
}

// NewRootSupervisor validates each raw config (rejecting any whose source
// isn't "kafka", logging and skipping it) and builds one GroupSupervisor
// per surviving config.
func NewRootSupervisor(raws []map[string]any, deps Deps) (*RootSupervisor, error) {
	if deps.Logger == nil {
		deps.Logger = NopLogger{}
	}

	cfgs, errs := config.BindAll(raws)
	for _, err := range errs {
		deps.Logger.Error("rejecting source config", "err", err)
	}
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no valid source configs to supervise")
	}

	r := &RootSupervisor{logger: deps.Logger}
	for _, cfg := range cfgs {
		r.groups = append(r.groups, NewGroupSupervisor(cfg, deps.Broker, deps.Scheduler, deps.Dedup, deps.Logger, deps.Metrics))
	}
	r.Service = services.NewBasicService(r.starting, r.running, r.stopping)
	return r, nil
}

// NewSingleConfigRootSupervisor builds a RootSupervisor for exactly one
// override config, rejecting it outright (without spawning anything) if its
// source isn't "kafka" -- this is the "single-config override" path of
// spec.md 4.E, which returns failure rather than skip-and-continue.
func NewSingleConfigRootSupervisor(raw map[string]any, deps Deps) (*RootSupervisor, error) {
	if deps.Logger == nil {
		deps.Logger = NopLogger{}
	}
	cfg, err := config.Bind(raw)
	if err != nil {
		deps.Logger.Error("rejecting override source config", "err", err)
		return nil, err
	}
	r := &RootSupervisor{logger: deps.Logger}
	r.groups = append(r.groups, NewGroupSupervisor(cfg, deps.Broker, deps.Scheduler, deps.Dedup, deps.Logger, deps.Metrics))
	r.Service = services.NewBasicService(r.starting, r.running, r.stopping)
	return r, nil
}

func (r *RootSupervisor) starting(ctx context.Context) error {
	svcs := make([]services.Service, 0, len(r.groups))
	for _, g := range r.groups {
		svcs = append(svcs, g)
	}
	mgr, err := services.NewManager(svcs...)
	if err != nil {
		return fmt.Errorf("building group service manager: %w", err)
	}
	r.manager = mgr
	r.duringStartup.Store(true)

	// Only fail-fast (stop every other group) while the set is still coming
	// up: a group that fails after startup is an isolated failure domain
	// per spec.md 4.E and must not take down its siblings.
	failed := func(service services.Service) {
		if !r.duringStartup.Load() {
			r.logger.Error("source group failed", "err", service.FailureCase())
			return
		}
		r.logger.Error("source group failed during startup, stopping the remaining groups", "err", service.FailureCase())
		r.manager.StopAsync()
	}
	r.manager.AddListener(services.NewManagerListener(
		func() { r.logger.Info("all source groups healthy") },
		func() { r.logger.Info("all source groups stopped") },
		failed,
	))

	if err := r.manager.StartAsync(ctx); err != nil {
		return fmt.Errorf("starting group service manager: %w", err)
	}
	err = r.manager.AwaitHealthy(ctx)
	r.duringStartup.Store(false)
	return err
}

// running blocks until every GroupSupervisor has stopped, isolating one
// group's failure from the others -- groups are independent failure
// domains per spec.md 4.E. If ctx is cancelled first (an explicit Stop),
// it cascades the stop to the group manager and returns cleanly; if the
// manager stops on its own, every group has exited and that's the failure
// condition this service exists to report.
func (r *RootSupervisor) running(ctx context.Context) error {
	managerStopped := make(chan error, 1)
	go func() { managerStopped <- r.manager.AwaitStopped(context.Background()) }()

	select {
	case <-ctx.Done():
		r.manager.StopAsync()
		<-managerStopped
		return nil
	case err := <-managerStopped:
		if err != nil {
			return err
		}
		return fmt.Errorf("all source groups terminated")
	}
}

func (r *RootSupervisor) stopping(failure error) error {
	if r.manager != nil {
		r.manager.StopAsync()
		_ = r.manager.AwaitStopped(context.Background())
	}
	return failure
}
