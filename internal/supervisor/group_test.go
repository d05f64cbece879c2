package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/stretchr/testify/require"
)

func TestGroupSupervisor_StartsOneInitialWorker(t *testing.T) {
	orig := WarmupInterval
	WarmupInterval = time.Millisecond
	defer func() { WarmupInterval = orig }()

	broker := &fakeBroker{}
	g := NewGroupSupervisor(newCfg("orders", 50, 200, 4), broker, &fakeScheduler{accept: true}, nil, NopLogger{}, nil)

	ctx := context.Background()
	require.NoError(t, services.StartAndAwaitRunning(ctx, g))
	require.Len(t, g.workers, 1)

	require.NoError(t, services.StopAndAwaitTerminated(ctx, g))
}

func TestGroupSupervisor_StopSignalsAllWorkers(t *testing.T) {
	orig := WarmupInterval
	WarmupInterval = time.Millisecond
	defer func() { WarmupInterval = orig }()

	broker := &fakeBroker{}
	g := NewGroupSupervisor(newCfg("orders", 50, 200, 4), broker, &fakeScheduler{accept: true}, nil, NopLogger{}, nil)

	ctx := context.Background()
	require.NoError(t, services.StartAndAwaitRunning(ctx, g))
	require.NoError(t, services.StopAndAwaitTerminated(ctx, g))

	for _, h := range g.workers {
		require.True(t, h.stop.requested())
	}
}
