package supervisor

import (
	"context"
	"errors"
)

// ErrTimeout and ErrUnsupportedVersion are sentinel errors a Consumer
// implementation can return from Position/EndOffsets when the broker client
// can't answer (timeout, or the broker doesn't support the offset query).
// BacklogProbe does not distinguish them from any other error: every error
// from these calls makes it return -1.
var (
	ErrTimeout            = errors.New("supervisor: broker timeout")
	ErrUnsupportedVersion = errors.New("supervisor: broker does not support this query")
)

// Partition identifies one topic-partition.
type Partition struct {
	Topic     string
	Partition int32
}

// RawRecord is one undecoded message pulled off a topic.
type RawRecord struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Broker is the contract the core expects from the partitioned log-based
// client: it joins a consumer group to a set of topics.
type Broker interface {
	Subscribe(ctx context.Context, groupID string, topics, servers []string) (Consumer, error)
}

// Consumer is one joined client within a consumer group. Workers and the
// backlog probe both talk to a Consumer; GroupSupervisor never shares one
// Consumer instance across workers.
type Consumer interface {
	// Iterate blocks, delivering records in broker order until the
	// consumer is closed or ctx is cancelled, at which point the channel
	// is closed.
	Iterate(ctx context.Context) <-chan RawRecord

	// Assignment returns the partitions currently assigned to this
	// consumer. May be empty before the first Poll.
	Assignment(ctx context.Context) ([]Partition, error)

	// Poll forces one round of group-join / assignment without consuming
	// application records.
	Poll(ctx context.Context) error

	// Position returns the current consumed offset for partition.
	Position(ctx context.Context, partition Partition) (int64, error)

	// EndOffsets returns the current log end offset for each partition.
	EndOffsets(ctx context.Context, partitions []Partition) (map[Partition]int64, error)

	// Close releases the underlying broker client. Idempotent.
	Close() error
}
