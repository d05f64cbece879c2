package supervisor

import (
	"context"
)

// FailedBacklog is returned when the probe couldn't compute a lag estimate.
// The autoscaler treats it as "no grow" (conservative bias).
const FailedBacklog = -1.0

// Backlog computes the mean per-partition lag for consumer, or
// FailedBacklog if the probe failed. See spec.md 4.B for the full
// algorithm.
func Backlog(ctx context.Context, logger Logger, consumer Consumer) float64 {
	partitions, err := consumer.Assignment(ctx)
	if err != nil {
		logger.Error("failed to fetch assignment", "err", err)
		return FailedBacklog
	}
	if len(partitions) == 0 {
		if err := consumer.Poll(ctx); err != nil {
			logger.Error("failed to poll for assignment", "err", err)
			return FailedBacklog
		}
		partitions, err = consumer.Assignment(ctx)
		if err != nil {
			logger.Error("failed to fetch assignment after poll", "err", err)
			return FailedBacklog
		}
	}
	if len(partitions) == 0 {
		logger.Error("no partitions assigned to consumer")
		return FailedBacklog
	}

	positions := make([]int64, 0, len(partitions))
	for _, p := range partitions {
		pos, err := consumer.Position(ctx, p)
		if err != nil {
			logger.Error("backlog probe failed reading position", "partition", p, "err", err)
			return FailedBacklog
		}
		positions = append(positions, pos)
	}

	endOffsets, err := consumer.EndOffsets(ctx, partitions)
	if err != nil {
		logger.Error("backlog probe failed reading end offsets", "err", err)
		return FailedBacklog
	}

	if len(endOffsets) != len(positions) || len(positions) == 0 {
		logger.Error("backlog probe got mismatched offset vectors")
		return FailedBacklog
	}

	var (
		sumEnd int64
		sumPos int64
	)
	for i, p := range partitions {
		end, ok := endOffsets[p]
		if !ok {
			logger.Error("backlog probe missing end offset for assigned partition", "partition", p)
			return FailedBacklog
		}
		sumEnd += end
		sumPos += positions[i]
	}

	return float64(sumEnd-sumPos) / float64(len(partitions))
}
