// Package config validates raw source configuration maps into typed
// SourceConfig values used by the supervisor hierarchy.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

const (
	defaultKeySep       = "."
	defaultMinBacklog   = 50
	defaultMaxBacklog   = 200
	defaultMaxConsumers = 32
)

// SourceConfig is an immutable, validated view over one configured Kafka
// source. Once returned from Bind it is never mutated.
type SourceConfig struct {
	Name         string            `mapstructure:"name"`
	Source       string            `mapstructure:"source"`
	Servers      []string          `mapstructure:"servers"`
	Topics       []string          `mapstructure:"topics"`
	KeyAliases   map[string]string `mapstructure:"key_aliases"`
	KeySep       string            `mapstructure:"key_sep"`
	MinBacklog   int               `mapstructure:"min_backlog"`
	MaxBacklog   int               `mapstructure:"max_backlog"`
	MaxConsumers int               `mapstructure:"max_consumers"`
}

// rawDefaults mirrors SourceConfig but lets Bind tell "unset" apart from
// "explicitly zero" for the integer bounds before defaults are applied.
type rawDefaults struct {
	Name         string            `mapstructure:"name"`
	Source       string            `mapstructure:"source"`
	Servers      []string          `mapstructure:"servers"`
	Topics       []string          `mapstructure:"topics"`
	KeyAliases   map[string]string `mapstructure:"key_aliases"`
	KeySep       string            `mapstructure:"key_sep"`
	MinBacklog   *int              `mapstructure:"min_backlog"`
	MaxBacklog   *int              `mapstructure:"max_backlog"`
	MaxConsumers *int              `mapstructure:"max_consumers"`
}

// Bind validates a raw config map (as decoded from YAML/JSON) into a
// SourceConfig, applying defaults for key_sep, min_backlog, max_backlog and
// max_consumers. It rejects configs with source != "kafka", empty servers,
// empty topics, min_backlog > max_backlog, max_consumers < 1, or duplicate
// aliases in key_aliases.
func Bind(raw map[string]any) (SourceConfig, error) {
	var rd rawDefaults
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &rd,
	})
	if err != nil {
		return SourceConfig{}, fmt.Errorf("building decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return SourceConfig{}, fmt.Errorf("decoding source config: %w", err)
	}

	if rd.Source != "kafka" {
		return SourceConfig{}, fmt.Errorf("source config %q: source must be %q, got %q", rd.Name, "kafka", rd.Source)
	}
	if rd.Name == "" {
		return SourceConfig{}, fmt.Errorf("source config: name is required")
	}
	if len(rd.Servers) == 0 {
		return SourceConfig{}, fmt.Errorf("source config %q: servers must be non-empty", rd.Name)
	}
	if len(rd.Topics) == 0 {
		return SourceConfig{}, fmt.Errorf("source config %q: topics must be non-empty", rd.Name)
	}

	cfg := SourceConfig{
		Name:         rd.Name,
		Source:       rd.Source,
		Servers:      rd.Servers,
		Topics:       rd.Topics,
		KeyAliases:   rd.KeyAliases,
		KeySep:       rd.KeySep,
		MinBacklog:   defaultMinBacklog,
		MaxBacklog:   defaultMaxBacklog,
		MaxConsumers: defaultMaxConsumers,
	}
	if cfg.KeySep == "" {
		cfg.KeySep = defaultKeySep
	}
	if rd.MinBacklog != nil {
		cfg.MinBacklog = *rd.MinBacklog
	}
	if rd.MaxBacklog != nil {
		cfg.MaxBacklog = *rd.MaxBacklog
	}
	if rd.MaxConsumers != nil {
		cfg.MaxConsumers = *rd.MaxConsumers
	}

	if cfg.MinBacklog > cfg.MaxBacklog {
		return SourceConfig{}, fmt.Errorf("source config %q: min_backlog (%d) > max_backlog (%d)", cfg.Name, cfg.MinBacklog, cfg.MaxBacklog)
	}
	if cfg.MaxConsumers < 1 {
		return SourceConfig{}, fmt.Errorf("source config %q: max_consumers must be >= 1, got %d", cfg.Name, cfg.MaxConsumers)
	}

	seenAliases := make(map[string]struct{}, len(cfg.KeyAliases))
	for path, alias := range cfg.KeyAliases {
		if alias == "" {
			return SourceConfig{}, fmt.Errorf("source config %q: empty alias for path %q", cfg.Name, path)
		}
		if _, dup := seenAliases[alias]; dup {
			return SourceConfig{}, fmt.Errorf("source config %q: duplicate alias %q", cfg.Name, alias)
		}
		seenAliases[alias] = struct{}{}
	}

	return cfg, nil
}

// BindAll validates every raw config, returning the valid ones in order and
// one error per rejected config (callers log-and-skip per spec).
func BindAll(raws []map[string]any) ([]SourceConfig, []error) {
	var (
		out  []SourceConfig
		errs []error
	)
	for _, raw := range raws {
		cfg, err := Bind(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, cfg)
	}
	return out, errs
}
