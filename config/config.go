// Package config provides loading and parsing of mindgraph.yaml
// configuration files. The file wires an editor to its backend,
// realtime channel, and optional snapshot and presence stores.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Realtime transport names accepted in the config file.
const (
	TransportMemory   = "memory"
	TransportRedis    = "redis"
	TransportSocketIO = "socketio"
)

// Config represents a mindgraph.yaml configuration file.
type Config struct {
	// Backend configures the persistence HTTP backend.
	Backend *BackendConfig `yaml:"backend,omitempty"`

	// Realtime configures the pub/sub sync channel.
	Realtime *RealtimeConfig `yaml:"realtime,omitempty"`

	// Persistence tunes the debounced write path.
	Persistence *PersistenceConfig `yaml:"persistence,omitempty"`

	// Snapshot configures the local SQLite snapshot store.
	Snapshot *SnapshotConfig `yaml:"snapshot,omitempty"`

	// Presence configures the optional etcd editor-presence announcement.
	Presence *PresenceConfig `yaml:"presence,omitempty"`

	// RootLabel is the label of the seed root node when the backend has
	// no graph yet. Default: "Main Idea".
	RootLabel string `yaml:"root_label,omitempty"`
}

// BackendConfig points the persistence bridge at its HTTP backend.
type BackendConfig struct {
	// URL is the backend base URL (e.g., "http://localhost:5001/api").
	URL string `yaml:"url"`

	// Timeout is the per-request timeout.
	// Format: Go duration string (e.g., "10s")
	// Default: 10s
	Timeout string `yaml:"timeout,omitempty"`
}

// GetTimeout parses the request timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (b *BackendConfig) GetTimeout() time.Duration {
	if b == nil || b.Timeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(b.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// RealtimeConfig selects and configures the sync transport.
type RealtimeConfig struct {
	// Transport is "memory", "redis" or "socketio". Default: "memory".
	Transport string `yaml:"transport,omitempty"`

	// RedisURL is the Redis connection string for the redis transport.
	RedisURL string `yaml:"redis_url,omitempty"`

	// RedisChannel is the pub/sub channel name for the redis transport.
	RedisChannel string `yaml:"redis_channel,omitempty"`

	// SocketURL is the Socket.IO server URL for the socketio transport.
	SocketURL string `yaml:"socket_url,omitempty"`

	// Namespace is the Socket.IO namespace. Empty means the root namespace.
	Namespace string `yaml:"namespace,omitempty"`

	// ReconnectWait is the pause between reconnection attempts.
	// Format: Go duration string (e.g., "2s")
	// Default: 2s
	ReconnectWait string `yaml:"reconnect_wait,omitempty"`

	// ReloadThreshold is the disconnect duration above which a full
	// bulk reload is recommended after reconnecting.
	// Format: Go duration string (e.g., "30s")
	// Default: 30s
	ReloadThreshold string `yaml:"reload_threshold,omitempty"`
}

// GetTransport returns the configured transport or the default value.
func (r *RealtimeConfig) GetTransport() string {
	if r == nil || r.Transport == "" {
		return TransportMemory
	}
	return r.Transport
}

// GetReconnectWait parses the reconnect wait string and returns a duration.
// Returns the default value if not set or invalid.
func (r *RealtimeConfig) GetReconnectWait() time.Duration {
	if r == nil || r.ReconnectWait == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(r.ReconnectWait)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetReloadThreshold parses the reload threshold string and returns a
// duration. Returns the default value if not set or invalid.
func (r *RealtimeConfig) GetReloadThreshold() time.Duration {
	if r == nil || r.ReloadThreshold == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(r.ReloadThreshold)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// PersistenceConfig tunes the debounced write path.
type PersistenceConfig struct {
	// Debounce is the coalescing window for cosmetic changes.
	// Format: Go duration string (e.g., "500ms")
	// Default: 500ms
	Debounce string `yaml:"debounce,omitempty"`

	// MaxRetries is the write attempt budget per node.
	// Default: 3
	MaxRetries int `yaml:"max_retries,omitempty"`

	// RetryBackoff is the pause between write attempts.
	// Format: Go duration string (e.g., "250ms")
	// Default: 250ms
	RetryBackoff string `yaml:"retry_backoff,omitempty"`
}

// GetDebounce parses the debounce string and returns a duration.
// Returns the default value if not set or invalid.
func (p *PersistenceConfig) GetDebounce() time.Duration {
	if p == nil || p.Debounce == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(p.Debounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// GetMaxRetries returns the configured retry budget or the default value.
func (p *PersistenceConfig) GetMaxRetries() int {
	if p == nil || p.MaxRetries <= 0 {
		return 3
	}
	return p.MaxRetries
}

// GetRetryBackoff parses the retry backoff string and returns a duration.
// Returns the default value if not set or invalid.
func (p *PersistenceConfig) GetRetryBackoff() time.Duration {
	if p == nil || p.RetryBackoff == "" {
		return 250 * time.Millisecond
	}
	d, err := time.ParseDuration(p.RetryBackoff)
	if err != nil {
		return 250 * time.Millisecond
	}
	return d
}

// SnapshotConfig configures the local SQLite snapshot store.
type SnapshotConfig struct {
	// Path is the SQLite database file. Empty disables snapshots.
	Path string `yaml:"path,omitempty"`
}

// PresenceConfig configures the optional etcd presence announcement.
type PresenceConfig struct {
	// Endpoints lists etcd endpoints. Empty disables presence.
	Endpoints []string `yaml:"endpoints,omitempty"`

	// Editor is the display name announced to other editors.
	// Default: the OS hostname.
	Editor string `yaml:"editor,omitempty"`

	// TTL is the presence lease TTL.
	// Format: Go duration string (e.g., "15s")
	// Default: 15s
	TTL string `yaml:"ttl,omitempty"`
}

// GetTTL parses the lease TTL string and returns a duration.
// Returns the default value if not set or invalid.
func (p *PresenceConfig) GetTTL() time.Duration {
	if p == nil || p.TTL == "" {
		return 15 * time.Second
	}
	d, err := time.ParseDuration(p.TTL)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// GetRootLabel returns the seed root label or the default value.
func (c *Config) GetRootLabel() string {
	if c == nil || c.RootLabel == "" {
		return "Main Idea"
	}
	return c.RootLabel
}

// Load reads and parses a mindgraph.yaml file from the given path.
// If the path is a directory, it looks for mindgraph.yaml or
// mindgraph.yml in that directory. Environment overrides are applied
// after parsing.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	var configPath string
	if info.IsDir() {
		yamlPath := filepath.Join(path, "mindgraph.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "mindgraph.yml")
			if _, err := os.Stat(ymlPath); err == nil {
				configPath = ymlPath
			} else {
				return nil, fmt.Errorf("no mindgraph.yaml or mindgraph.yml found in %s", path)
			}
		}
	} else {
		configPath = path
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// LoadFromDir searches for mindgraph.yaml starting from the given
// directory and walking up to parent directories until found or root is
// reached.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		config, err := Load(absDir)
		if err == nil {
			return config, nil
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			return nil, fmt.Errorf("no mindgraph.yaml found in %s or parent directories", dir)
		}
		absDir = parent
	}
}

// Default returns the configuration used when no file is present: an
// in-process channel, no backend, no snapshot, no presence.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	return cfg
}

// applyEnv overlays connection endpoints from the environment, so
// secrets and per-host addresses stay out of checked-in files.
func (c *Config) applyEnv() {
	if v := os.Getenv("MINDGRAPH_BACKEND_URL"); v != "" {
		if c.Backend == nil {
			c.Backend = &BackendConfig{}
		}
		c.Backend.URL = v
	}
	if v := os.Getenv("MINDGRAPH_REDIS_URL"); v != "" {
		if c.Realtime == nil {
			c.Realtime = &RealtimeConfig{}
		}
		c.Realtime.RedisURL = v
		if c.Realtime.Transport == "" {
			c.Realtime.Transport = TransportRedis
		}
	}
	if v := os.Getenv("MINDGRAPH_SOCKET_URL"); v != "" {
		if c.Realtime == nil {
			c.Realtime = &RealtimeConfig{}
		}
		c.Realtime.SocketURL = v
		if c.Realtime.Transport == "" {
			c.Realtime.Transport = TransportSocketIO
		}
	}
	if v := os.Getenv("MINDGRAPH_ETCD_ENDPOINTS"); v != "" {
		if c.Presence == nil {
			c.Presence = &PresenceConfig{}
		}
		c.Presence.Endpoints = strings.Split(v, ",")
	}
}
