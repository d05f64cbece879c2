// Package projector implements the deterministic extraction of a flat
// attribute set from a nested JSON record using a source's key_aliases path
// grammar.
package projector

import (
	"encoding/json"
	"strings"

	"github.com/grafana/sourcewatch/internal/config"
)

// Envelope is a flat mapping from alias to extracted value, ready for
// Scheduler.Schedule.
type Envelope map[string]any

// Project decodes raw as JSON and extracts every (path, alias) pair named
// in cfg.KeyAliases. It returns (nil, false) if raw isn't valid JSON, if any
// referenced path is missing, or if a path is the empty string. On success
// it returns an Envelope with exactly len(cfg.KeyAliases) entries.
//
// An empty KeyAliases map is legal and yields an empty, non-nil envelope;
// callers treat that as a drop (see internal/supervisor).
func Project(cfg config.SourceConfig, raw []byte) (Envelope, bool) {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, false
	}

	sep := cfg.KeySep
	if sep == "" {
		sep = "."
	}

	out := make(Envelope, len(cfg.KeyAliases))
	for path, alias := range cfg.KeyAliases {
		if path == "" {
			return nil, false
		}
		segments := strings.Split(path, sep)

		cur := root
		for _, segment := range segments {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			val, present := obj[segment]
			if !present {
				return nil, false
			}
			cur = val
		}
		out[alias] = cur
	}

	return out, true
}
