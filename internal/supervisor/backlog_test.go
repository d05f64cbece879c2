package supervisor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBacklog_ComputesMeanLag(t *testing.T) {
	c := newFakeConsumer()
	p0 := Partition{Topic: "orders", Partition: 0}
	p1 := Partition{Topic: "orders", Partition: 1}
	c.assignment = []Partition{p0, p1}
	c.positions = map[Partition]int64{p0: 10, p1: 20}
	c.endOffsets = map[Partition]int64{p0: 30, p1: 50}

	got := Backlog(context.Background(), NopLogger{}, c)
	assert.Equal(t, float64((30-10)+(50-20))/2, got)
}

func TestBacklog_ForcesAPollWhenUnassigned(t *testing.T) {
	c := newFakeConsumer()
	// Assignment starts and stays empty; Backlog must force exactly one
	// Poll to try to trigger a join before giving up.
	got := Backlog(context.Background(), NopLogger{}, c)
	assert.Equal(t, FailedBacklog, got)
	assert.Equal(t, 1, c.pollCalls)
}

func TestBacklog_AssignmentErrorFails(t *testing.T) {
	c := newFakeConsumer()
	c.assignmentErr = errors.New("boom")

	got := Backlog(context.Background(), NopLogger{}, c)
	assert.Equal(t, FailedBacklog, got)
}

func TestBacklog_PositionErrorFails(t *testing.T) {
	c := newFakeConsumer()
	p0 := Partition{Topic: "orders", Partition: 0}
	c.assignment = []Partition{p0}
	c.positionErr = ErrTimeout

	got := Backlog(context.Background(), NopLogger{}, c)
	assert.Equal(t, FailedBacklog, got)
}

func TestBacklog_EndOffsetsErrorFails(t *testing.T) {
	c := newFakeConsumer()
	p0 := Partition{Topic: "orders", Partition: 0}
	c.assignment = []Partition{p0}
	c.positions = map[Partition]int64{p0: 1}
	c.endOffsetsErr = errors.New("boom")

	got := Backlog(context.Background(), NopLogger{}, c)
	assert.Equal(t, FailedBacklog, got)
}

func TestBacklog_MissingEndOffsetFails(t *testing.T) {
	c := newFakeConsumer()
	p0 := Partition{Topic: "orders", Partition: 0}
	p1 := Partition{Topic: "orders", Partition: 1}
	c.assignment = []Partition{p0, p1}
	c.positions = map[Partition]int64{p0: 1, p1: 2}
	// endOffsets intentionally missing p1
	c.endOffsets = map[Partition]int64{p0: 5}

	got := Backlog(context.Background(), NopLogger{}, c)
	assert.Equal(t, FailedBacklog, got)
}
