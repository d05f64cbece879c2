package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRootRaw(name string) map[string]any {
	return map[string]any{
		"name":    name,
		"source":  "kafka",
		"servers": []string{"broker:9092"},
		"topics":  []string{name},
	}
}

func TestNewRootSupervisor_RejectsBadConfigsButKeepsGoodOnes(t *testing.T) {
	bad := validRootRaw("bad")
	bad["source"] = "rabbitmq"

	r, err := NewRootSupervisor([]map[string]any{validRootRaw("orders"), bad}, Deps{
		Broker:    &fakeBroker{},
		Scheduler: &fakeScheduler{accept: true},
		Logger:    NopLogger{},
	})
	require.NoError(t, err)
	assert.Len(t, r.groups, 1)
}

func TestNewRootSupervisor_ErrorsWhenNoneValid(t *testing.T) {
	bad := validRootRaw("bad")
	bad["source"] = "rabbitmq"

	_, err := NewRootSupervisor([]map[string]any{bad}, Deps{
		Broker:    &fakeBroker{},
		Scheduler: &fakeScheduler{accept: true},
	})
	assert.Error(t, err)
}

func TestNewSingleConfigRootSupervisor_RejectsNonKafka(t *testing.T) {
	raw := validRootRaw("bad")
	raw["source"] = "rabbitmq"

	_, err := NewSingleConfigRootSupervisor(raw, Deps{
		Broker:    &fakeBroker{},
		Scheduler: &fakeScheduler{accept: true},
	})
	assert.Error(t, err)
}

func TestRootSupervisor_StartsAndStopsGroups(t *testing.T) {
	orig := WarmupInterval
	WarmupInterval = time.Millisecond
	defer func() { WarmupInterval = orig }()

	r, err := NewRootSupervisor([]map[string]any{validRootRaw("orders")}, Deps{
		Broker:    &fakeBroker{},
		Scheduler: &fakeScheduler{accept: true},
		Logger:    NopLogger{},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, services.StartAndAwaitRunning(ctx, r))
	require.NoError(t, services.StopAndAwaitTerminated(ctx, r))
}
