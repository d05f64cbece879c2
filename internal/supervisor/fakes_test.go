package supervisor

import (
	"context"
	"sync"

	"github.com/grafana/sourcewatch/internal/projector"
)

// fakeConsumer is an in-memory Consumer double driven entirely by test
// setup -- no goroutines, no real I/O.
type fakeConsumer struct {
	mu sync.Mutex

	assignment    []Partition
	assignmentErr error

	positions  map[Partition]int64
	positionErr error

	endOffsets  map[Partition]int64
	endOffsetsErr error

	pollCalls int
	pollErr   error

	records chan RawRecord
	closed  bool
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{
		positions:  make(map[Partition]int64),
		endOffsets: make(map[Partition]int64),
		records:    make(chan RawRecord, 16),
	}
}

func (f *fakeConsumer) Iterate(context.Context) <-chan RawRecord {
	return f.records
}

func (f *fakeConsumer) Assignment(context.Context) ([]Partition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assignment, f.assignmentErr
}

func (f *fakeConsumer) Poll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCalls++
	return f.pollErr
}

func (f *fakeConsumer) Position(_ context.Context, p Partition) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.positionErr != nil {
		return 0, f.positionErr
	}
	return f.positions[p], nil
}

func (f *fakeConsumer) EndOffsets(_ context.Context, partitions []Partition) (map[Partition]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.endOffsetsErr != nil {
		return nil, f.endOffsetsErr
	}
	out := make(map[Partition]int64, len(partitions))
	for _, p := range partitions {
		if v, ok := f.endOffsets[p]; ok {
			out[p] = v
		}
	}
	return out, nil
}

func (f *fakeConsumer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.records)
	}
	return nil
}

// fakeBroker hands back pre-built consumers in call order, falling back to
// freshly-built ones once the queue is drained.
type fakeBroker struct {
	mu    sync.Mutex
	queue []*fakeConsumer
}

func (b *fakeBroker) Subscribe(context.Context, string, []string, []string) (Consumer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) > 0 {
		c := b.queue[0]
		b.queue = b.queue[1:]
		return c, nil
	}
	return newFakeConsumer(), nil
}

func (b *fakeBroker) push(c *fakeConsumer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, c)
}

// fakeScheduler records every Schedule call and returns a fixed verdict.
type fakeScheduler struct {
	mu    sync.Mutex
	accept bool
	calls  []projector.Envelope
}

func (s *fakeScheduler) Schedule(_, _ string, envelope projector.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, envelope)
	return s.accept
}

func (s *fakeScheduler) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakeDedup implements the narrow deduper interface for tests.
type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{seen: make(map[string]bool)}
}

func (d *fakeDedup) Seen(source, name string, envelope projector.Envelope) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := source + "|" + name
	if d.seen[key] {
		return true
	}
	d.seen[key] = true
	return false
}

// testLogger discards everything; a package-local alias of NopLogger kept
// for readability at call sites in tests.
type testLogger = NopLogger
