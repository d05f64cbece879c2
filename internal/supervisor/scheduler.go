package supervisor

import "github.com/grafana/sourcewatch/internal/projector"

// Scheduler is the downstream collaborator that accepts projected
// envelopes. true means accepted; false means the record was logged and
// dropped, but the worker continues.
type Scheduler interface {
	Schedule(source, name string, envelope projector.Envelope) bool
}
