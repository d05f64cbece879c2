// Package kafka binds internal/supervisor's Broker/Consumer seams to a real
// cluster via franz-go. Each Subscribe call builds its own kgo.Client joined
// to the requested consumer group; a monitor consumer and its worker
// consumers are ordinary group members like any other, so they compete for
// partitions under the normal group-rebalance protocol.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"

	"github.com/grafana/sourcewatch/internal/supervisor"
)

// pollTimeout bounds the PollFetches call Poll uses to force a group join;
// it mirrors the teacher's block-builder poll cadence.
const pollTimeout = 2 * time.Second

// Broker builds franz-go clients for consumer groups, satisfying
// supervisor.Broker.
type Broker struct {
	logger  log.Logger
	metrics *kprom.Metrics
}

// NewBroker constructs a Broker. metricsNamespace is passed to kprom so
// multiple Brokers in one process (one per registered collector) don't
// collide on metric names.
func NewBroker(logger log.Logger, metricsNamespace string) *Broker {
	return &Broker{
		logger:  logger,
		metrics: kprom.NewMetrics(metricsNamespace, kprom.Registerer(nil)),
	}
}

// Subscribe joins groupID against topics on servers, returning a live
// Consumer handle. Each call creates a dedicated kgo.Client -- callers
// (GroupSupervisor) decide how many to create and for what purpose (one
// monitor, N workers).
func (b *Broker) Subscribe(ctx context.Context, groupID string, topics, servers []string) (supervisor.Consumer, error) {
	c := &consumer{
		logger:  log.With(b.logger, "group", groupID),
		groupID: groupID,
		topics:  topics,
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(servers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.WithHooks(b.metrics),
		kgo.OnPartitionsAssigned(c.onAssigned),
		kgo.OnPartitionsRevoked(c.onRevoked),
		kgo.OnPartitionsLost(c.onRevoked),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client for group %q: %w", groupID, err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging kafka brokers: %w", err)
	}

	c.client = client
	c.adm = kadm.NewClient(client)
	return c, nil
}

// consumer adapts one kgo.Client (joined to one consumer group) to
// supervisor.Consumer.
type consumer struct {
	logger  log.Logger
	groupID string
	topics  []string

	client *kgo.Client
	adm    *kadm.Client

	mu       sync.Mutex
	assigned map[string][]int32

	recordsOnce sync.Once
	records     chan supervisor.RawRecord
	stopIterate chan struct{}
}

func (c *consumer) onAssigned(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assigned == nil {
		c.assigned = make(map[string][]int32)
	}
	for topic, partitions := range assigned {
		c.assigned[topic] = append(c.assigned[topic], partitions...)
	}
}

func (c *consumer) onRevoked(ctx context.Context, cl *kgo.Client, revoked map[string][]int32) {
	c.mu.Lock()
	for topic, partitions := range revoked {
		c.assigned[topic] = subtractPartitions(c.assigned[topic], partitions)
	}
	c.mu.Unlock()

	if err := cl.CommitUncommittedOffsets(ctx); err != nil {
		level.Error(c.logger).Log("msg", "failed to commit offsets on revoke", "err", err)
	}
}

func subtractPartitions(have, remove []int32) []int32 {
	removeSet := make(map[int32]struct{}, len(remove))
	for _, p := range remove {
		removeSet[p] = struct{}{}
	}
	out := have[:0]
	for _, p := range have {
		if _, ok := removeSet[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// Assignment returns the partitions currently owned by this client, as
// tracked by the group-rebalance callbacks.
func (c *consumer) Assignment(_ context.Context) ([]supervisor.Partition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []supervisor.Partition
	for topic, partitions := range c.assigned {
		for _, p := range partitions {
			out = append(out, supervisor.Partition{Topic: topic, Partition: p})
		}
	}
	return out, nil
}

// Poll drives one short fetch cycle, which is enough to trigger an initial
// group join (and therefore a partition assignment) if this client hasn't
// joined yet. Any records the fetch returns are discarded.
func (c *consumer) Poll(ctx context.Context) error {
	pollCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	fetches := c.client.PollFetches(pollCtx)
	if err := fetches.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// Position returns how far this client has read into partition, i.e. the
// group's committed offset for it. A partition with no prior commit reads
// as 0 (start of the log), matching a fresh consumer group.
func (c *consumer) Position(ctx context.Context, partition supervisor.Partition) (int64, error) {
	offsets, err := c.adm.FetchOffsetsForTopics(ctx, c.groupID, partition.Topic)
	if err != nil {
		if errors.Is(err, kerr.GroupIDNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if err := offsets.Error(); err != nil {
		return 0, err
	}

	offset, ok := offsets.Lookup(partition.Topic, partition.Partition)
	if !ok || offset.At < 0 {
		return 0, nil
	}
	return offset.At, nil
}

// EndOffsets returns the high-watermark offset for every partition.
func (c *consumer) EndOffsets(ctx context.Context, partitions []supervisor.Partition) (map[supervisor.Partition]int64, error) {
	topics := make(map[string]struct{}, len(partitions))
	for _, p := range partitions {
		topics[p.Topic] = struct{}{}
	}
	topicList := make([]string, 0, len(topics))
	for t := range topics {
		topicList = append(topicList, t)
	}

	ends, err := c.adm.ListEndOffsets(ctx, topicList...)
	if err != nil {
		return nil, err
	}
	if err := ends.Error(); err != nil {
		return nil, err
	}

	out := make(map[supervisor.Partition]int64, len(partitions))
	for _, p := range partitions {
		offset, ok := ends.Lookup(p.Topic, p.Partition)
		if !ok {
			continue
		}
		out[p] = offset.Offset
	}
	return out, nil
}

// Iterate starts (on first call) a goroutine pumping decoded records into a
// channel, and returns it. The channel closes when ctx is cancelled or
// Close is called.
func (c *consumer) Iterate(ctx context.Context) <-chan supervisor.RawRecord {
	c.recordsOnce.Do(func() {
		c.records = make(chan supervisor.RawRecord)
		c.stopIterate = make(chan struct{})
		go c.pump(ctx)
	})
	return c.records
}

func (c *consumer) pump(ctx context.Context) {
	defer close(c.records)

	for {
		select {
		case <-c.stopIterate:
			return
		case <-ctx.Done():
			return
		default:
		}

		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return
		}
		if err := fetches.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			level.Error(c.logger).Log("msg", "fetch error", "err", err)
			continue
		}

		select {
		case <-c.stopIterate:
			return
		default:
		}
		c.deliverFetches(fetches)
	}
}

func (c *consumer) deliverFetches(fetches kgo.Fetches) {
	fetches.EachPartition(func(p kgo.FetchTopicPartition) {
		if p.Err != nil {
			level.Error(c.logger).Log("msg", "partition fetch error", "topic", p.Topic, "partition", p.Partition, "err", p.Err)
			return
		}
		for _, rec := range p.Records {
			select {
			case c.records <- supervisor.RawRecord{
				Topic:     rec.Topic,
				Partition: rec.Partition,
				Offset:    rec.Offset,
				Key:       rec.Key,
				Value:     rec.Value,
			}:
			case <-c.stopIterate:
				return
			}
		}
	})
	if err := c.client.CommitUncommittedOffsets(context.Background()); err != nil {
		level.Error(c.logger).Log("msg", "failed to commit offsets", "err", err)
	}
}

// Close leaves the consumer group and releases the underlying client.
func (c *consumer) Close() error {
	if c.stopIterate != nil {
		select {
		case <-c.stopIterate:
		default:
			close(c.stopIterate)
		}
	}
	c.client.LeaveGroup()
	c.client.Close()
	return nil
}
