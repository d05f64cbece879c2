// Package scheduler provides concrete supervisor.Scheduler implementations:
// an HTTP client that posts envelopes to a downstream scheduling service,
// and a log-only client for environments without one.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/sourcewatch/internal/projector"
)

// requestTimeout bounds each outbound schedule call so one slow downstream
// request can't stall a worker goroutine indefinitely.
const requestTimeout = 5 * time.Second

// scheduleRequest is the wire body POSTed to the scheduler endpoint.
type scheduleRequest struct {
	Source   string              `json:"source"`
	Name     string              `json:"name"`
	Envelope projector.Envelope `json:"envelope"`
}

// HTTPClient posts envelopes to a scheduler HTTP endpoint. A 2xx response
// counts as accepted; anything else (including a transport error) counts as
// rejected.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	logger   log.Logger
}

// NewHTTPClient builds an HTTPClient posting to endpoint.
func NewHTTPClient(endpoint string, logger log.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: requestTimeout},
		logger:   logger,
	}
}

// Schedule implements supervisor.Scheduler.
func (c *HTTPClient) Schedule(source, name string, envelope projector.Envelope) bool {
	body, err := json.Marshal(scheduleRequest{Source: source, Name: name, Envelope: envelope})
	if err != nil {
		level.Error(c.logger).Log("msg", "failed to marshal schedule request", "source", source, "err", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		level.Error(c.logger).Log("msg", "failed to build schedule request", "source", source, "err", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		level.Error(c.logger).Log("msg", "schedule request failed", "source", source, "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		level.Error(c.logger).Log("msg", "schedule request rejected", "source", source, "status", resp.StatusCode)
		return false
	}
	return true
}

// String satisfies fmt.Stringer for logging.
func (c *HTTPClient) String() string {
	return fmt.Sprintf("httpscheduler(%s)", c.endpoint)
}
