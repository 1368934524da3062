package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
backend:
  url: http://localhost:5001/api
  timeout: 5s
realtime:
  transport: redis
  redis_url: redis://localhost:6379
  reload_threshold: 1m
persistence:
  debounce: 300ms
  max_retries: 5
snapshot:
  path: /tmp/mindgraph.db
presence:
  endpoints:
    - localhost:2379
  editor: alice
root_label: Planning
`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("full file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "mindgraph.yaml", sampleConfig)

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:5001/api", cfg.Backend.URL)
		assert.Equal(t, 5*time.Second, cfg.Backend.GetTimeout())
		assert.Equal(t, TransportRedis, cfg.Realtime.GetTransport())
		assert.Equal(t, time.Minute, cfg.Realtime.GetReloadThreshold())
		assert.Equal(t, 300*time.Millisecond, cfg.Persistence.GetDebounce())
		assert.Equal(t, 5, cfg.Persistence.GetMaxRetries())
		assert.Equal(t, "/tmp/mindgraph.db", cfg.Snapshot.Path)
		assert.Equal(t, []string{"localhost:2379"}, cfg.Presence.Endpoints)
		assert.Equal(t, "alice", cfg.Presence.Editor)
		assert.Equal(t, "Planning", cfg.GetRootLabel())
	})

	t.Run("directory lookup", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "mindgraph.yml", "root_label: FromYml\n")

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "FromYml", cfg.GetRootLabel())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "mindgraph.yaml", "backend: [not: a map")

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestLoadFromDir(t *testing.T) {
	parent := t.TempDir()
	writeConfig(t, parent, "mindgraph.yaml", "root_label: FromParent\n")
	child := filepath.Join(parent, "a", "b")
	require.NoError(t, os.MkdirAll(child, 0o755))

	cfg, err := LoadFromDir(child)
	require.NoError(t, err)
	assert.Equal(t, "FromParent", cfg.GetRootLabel())
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "Main Idea", cfg.GetRootLabel())
	assert.Equal(t, TransportMemory, cfg.Realtime.GetTransport())
	assert.Equal(t, 10*time.Second, cfg.Backend.GetTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Persistence.GetDebounce())
	assert.Equal(t, 3, cfg.Persistence.GetMaxRetries())
	assert.Equal(t, 250*time.Millisecond, cfg.Persistence.GetRetryBackoff())
	assert.Equal(t, 2*time.Second, cfg.Realtime.GetReconnectWait())
	assert.Equal(t, 30*time.Second, cfg.Realtime.GetReloadThreshold())
	assert.Equal(t, 15*time.Second, cfg.Presence.GetTTL())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MINDGRAPH_BACKEND_URL", "http://override:9000/api")
	t.Setenv("MINDGRAPH_REDIS_URL", "redis://override:6379")

	dir := t.TempDir()
	path := writeConfig(t, dir, "mindgraph.yaml", "backend:\n  url: http://file:5001/api\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://override:9000/api", cfg.Backend.URL)
	assert.Equal(t, "redis://override:6379", cfg.Realtime.RedisURL)
	assert.Equal(t, TransportRedis, cfg.Realtime.GetTransport())
}
