package scheduler

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/sourcewatch/internal/projector"
)

// LogClient logs every envelope instead of forwarding it anywhere. Useful
// for local runs and for sources with no downstream scheduler configured.
type LogClient struct {
	logger log.Logger
}

// NewLogClient builds a LogClient.
func NewLogClient(logger log.Logger) *LogClient {
	return &LogClient{logger: logger}
}

// Schedule implements supervisor.Scheduler; it always accepts.
func (c *LogClient) Schedule(source, name string, envelope projector.Envelope) bool {
	level.Info(c.logger).Log("msg", "scheduled envelope", "source", source, "name", name, "envelope", envelope)
	return true
}
