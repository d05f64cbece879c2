// Package configstore loads the sourcewatch process configuration file: a
// YAML document listing ambient settings plus an arbitrarily-shaped list of
// source definitions, each later bound by internal/config.Bind.
package configstore

import (
	"fmt"
	"os"
	"time"

	"github.com/drone/envsubst"
	"github.com/prometheus/common/model"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SchedulerConfig describes how the scheduler client delivers envelopes.
type SchedulerConfig struct {
	Mode     string `yaml:"mode"`
	Endpoint string `yaml:"endpoint"`
}

// DedupConfig describes the in-process deduplication cache, if enabled.
// TTL uses model.Duration (not time.Duration) so the file can write
// durations as strings ("5m"); yaml.v3 decodes a bare time.Duration as a
// plain integer of nanoseconds instead.
type DedupConfig struct {
	Enabled    bool           `yaml:"enabled"`
	TTL        model.Duration `yaml:"ttl"`
	MaxEntries int            `yaml:"max_entries"`
}

// fileConfigStore describes where the source list itself is read from. Only
// a static file is supported; Refresh is rejected at load time -- periodic
// reload of the source list is explicitly out of scope.
type fileConfigStore struct {
	File    string `yaml:"file"`
	Refresh bool   `yaml:"refresh"`
}

// document is the top-level shape of the configuration file.
type document struct {
	LogLevel       string           `yaml:"log_level"`
	HTTPListenPort int              `yaml:"http_listen_port"`
	WarmupInterval model.Duration   `yaml:"warmup_interval"`
	ConfigStoreRef fileConfigStore  `yaml:"config_store"`
	Scheduler      SchedulerConfig  `yaml:"scheduler"`
	Dedup          DedupConfig      `yaml:"dedup"`
	Sources        []map[string]any `yaml:"sources"`
}

// Store holds the loaded document plus a viper layer that supplies defaults
// for log_level, http_listen_port and warmup_interval, and reads
// SOURCEWATCH_-prefixed environment variables for them. A value set in the
// file always wins; the environment is consulted only where the file leaves
// a value unset. No flags are bound, and the source list is never
// overridden.
type Store struct {
	doc      document
	overlay  *viper.Viper
	sources  []map[string]any
}

// Load reads path, optionally expanding ${VAR} references via envsubst, and
// parses it as a sourcewatch configuration document.
func Load(path string, expandEnv bool) (*Store, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if expandEnv {
		expanded, err := envsubst.EvalEnv(string(buf))
		if err != nil {
			return nil, fmt.Errorf("expanding env vars in config file %s: %w", path, err)
		}
		buf = []byte(expanded)
	}

	var doc document
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if doc.ConfigStoreRef.Refresh {
		return nil, fmt.Errorf("config_store.refresh is not supported: the source list is loaded once at startup")
	}

	overlay := viper.New()
	overlay.SetEnvPrefix("sourcewatch")
	overlay.AutomaticEnv()
	overlay.SetDefault("log_level", "info")
	overlay.SetDefault("http_listen_port", 8080)
	overlay.SetDefault("warmup_interval", 5*time.Second)

	s := &Store{doc: doc, overlay: overlay, sources: doc.Sources}
	return s, nil
}

// LogLevel returns the configured log level, defaulting to "info".
func (s *Store) LogLevel() string {
	if v := s.overlay.GetString("log_level"); v != "" && s.doc.LogLevel == "" {
		return v
	}
	if s.doc.LogLevel != "" {
		return s.doc.LogLevel
	}
	return s.overlay.GetString("log_level")
}

// HTTPListenPort returns the port the metrics/health server should bind.
func (s *Store) HTTPListenPort() int {
	if s.doc.HTTPListenPort != 0 {
		return s.doc.HTTPListenPort
	}
	return s.overlay.GetInt("http_listen_port")
}

// WarmupInterval returns the configured debounce interval, or the overlay
// default if the file didn't set one.
func (s *Store) WarmupInterval() time.Duration {
	if s.doc.WarmupInterval != 0 {
		return time.Duration(s.doc.WarmupInterval)
	}
	return s.overlay.GetDuration("warmup_interval")
}

// Scheduler returns the scheduler client configuration.
func (s *Store) Scheduler() SchedulerConfig {
	return s.doc.Scheduler
}

// Dedup returns the deduplication cache configuration.
func (s *Store) Dedup() DedupConfig {
	return s.doc.Dedup
}

// GetSources returns every raw source definition in the document whose
// "source" field equals source, or every definition if source is empty.
// The returned maps are handed to internal/config.Bind for validation; this
// layer does no validation of its own.
func (s *Store) GetSources(source string) []map[string]any {
	if source == "" {
		return s.sources
	}

	var out []map[string]any
	for _, raw := range s.sources {
		if v, _ := raw["source"].(string); v == source {
			out = append(out, raw)
		}
	}
	return out
}
