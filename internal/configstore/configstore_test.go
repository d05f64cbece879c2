package configstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sourcewatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const sampleConfig = `
log_level: debug
http_listen_port: 9191
scheduler:
  mode: http
  endpoint: http://scheduler.internal/schedule
sources:
  - name: orders
    source: kafka
    servers: ["broker:9092"]
    topics: ["orders"]
  - name: shipments
    source: kafka
    servers: ["broker:9092"]
    topics: ["shipments"]
  - name: legacy
    source: rabbitmq
    servers: ["broker:5672"]
`

func TestLoad_ParsesDocument(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	store, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, "debug", store.LogLevel())
	assert.Equal(t, 9191, store.HTTPListenPort())
	assert.Equal(t, "http", store.Scheduler().Mode)
	assert.Equal(t, "http://scheduler.internal/schedule", store.Scheduler().Endpoint)
}

func TestGetSources_FiltersBySourceKind(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	store, err := Load(path, false)
	require.NoError(t, err)

	kafkaSources := store.GetSources("kafka")
	assert.Len(t, kafkaSources, 2)

	all := store.GetSources("")
	assert.Len(t, all, 3)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("SOURCEWATCH_TEST_PORT", "7000")
	path := writeConfig(t, "http_listen_port: ${SOURCEWATCH_TEST_PORT}\nsources: []\n")

	store, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, 7000, store.HTTPListenPort())
}

func TestLoad_RejectsConfigStoreRefresh(t *testing.T) {
	path := writeConfig(t, "config_store:\n  file: /etc/sourcewatch/sources.yaml\n  refresh: true\nsources: []\n")

	_, err := Load(path, false)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml", false)
	assert.Error(t, err)
}

func TestLoad_ParsesStringDurations(t *testing.T) {
	path := writeConfig(t, "warmup_interval: 5s\ndedup:\n  enabled: true\n  ttl: 5m\n  max_entries: 1000\nsources: []\n")

	store, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, store.WarmupInterval())
	assert.Equal(t, 5*time.Minute, time.Duration(store.Dedup().TTL))
}
