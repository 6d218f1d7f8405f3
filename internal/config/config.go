package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/warden-rc/warden/pkg/remote"
)

// ConfigFileName is the default configuration file name.
const ConfigFileName = "warden.yaml"

// Config is the complete controller configuration.
type Config struct {
	// Session contains the per-host session timing knobs.
	Session SessionConfig `yaml:"session,omitempty"`

	// Features contains feature routing policy.
	Features FeaturesConfig `yaml:"features,omitempty"`

	// Snapshots contains the snapshot archive configuration.
	Snapshots SnapshotConfig `yaml:"snapshots,omitempty"`

	// Metrics contains the metrics endpoint configuration.
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// SessionConfig tunes session engines. Zero fields keep their defaults.
type SessionConfig struct {
	// Port is the streaming server port on managed hosts.
	Port int `yaml:"port,omitempty"`

	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration `yaml:"connectTimeout,omitempty"`

	// RetryDelay is the pause between failed connection attempts.
	RetryDelay time.Duration `yaml:"retryDelay,omitempty"`

	// FastUpdateInterval paces live framebuffer streaming.
	FastUpdateInterval time.Duration `yaml:"fastUpdateInterval,omitempty"`

	// SlowUpdateInterval paces background monitoring.
	SlowUpdateInterval time.Duration `yaml:"slowUpdateInterval,omitempty"`

	// WatchdogTimeout is the silence tolerance before a forced full
	// refresh.
	WatchdogTimeout time.Duration `yaml:"watchdogTimeout,omitempty"`

	// StopGracePeriod bounds how long Stop waits for a session goroutine.
	StopGracePeriod time.Duration `yaml:"stopGracePeriod,omitempty"`

	// ReadTimeout is the transport-level silence limit per read. A stream
	// quiet for longer is treated as broken.
	ReadTimeout time.Duration `yaml:"readTimeout,omitempty"`

	// KeepaliveInterval sets TCP keepalive probing on session sockets.
	// Zero keeps the OS default.
	KeepaliveInterval time.Duration `yaml:"keepaliveInterval,omitempty"`
}

// FeaturesConfig is the feature routing policy.
type FeaturesConfig struct {
	// Disabled lists feature ids rejected at the controller boundary.
	Disabled []string `yaml:"disabled,omitempty"`
}

// SnapshotConfig selects and tunes the snapshot archive backend.
type SnapshotConfig struct {
	// Backend is "disk" or "s3". Empty disables snapshots.
	Backend string `yaml:"backend,omitempty"`

	// Directory is the local archive directory for the disk backend.
	Directory string `yaml:"directory,omitempty"`

	// Bucket and Prefix locate the archive for the s3 backend.
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`

	// MaxAge is how long snapshots are retained. Zero keeps them forever.
	MaxAge time.Duration `yaml:"maxAge,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the metrics listen address. Empty disables the endpoint.
	Listen string `yaml:"listen,omitempty"`
}

// Default returns the stock configuration.
func Default() *Config {
	session := remote.DefaultConfig()
	return &Config{
		Session: SessionConfig{
			Port:               session.Port,
			ConnectTimeout:     session.ConnectTimeout,
			RetryDelay:         session.ConnectRetryDelay,
			FastUpdateInterval: session.FastUpdateInterval,
			SlowUpdateInterval: session.SlowUpdateInterval,
			WatchdogTimeout:    session.WatchdogTimeout,
			StopGracePeriod:    session.StopGracePeriod,
			ReadTimeout:        30 * time.Second,
			KeepaliveInterval:  30 * time.Second,
		},
		Snapshots: SnapshotConfig{
			Backend:   "disk",
			Directory: "snapshots",
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
		},
	}
}

// Load reads the configuration from path, layering it over the defaults.
// A missing file yields the defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Session.Port < 0 || c.Session.Port > 65535 {
		return fmt.Errorf("config: invalid session port %d", c.Session.Port)
	}
	switch c.Snapshots.Backend {
	case "", "disk", "s3":
	default:
		return fmt.Errorf("config: unknown snapshot backend %q", c.Snapshots.Backend)
	}
	if c.Snapshots.Backend == "s3" && c.Snapshots.Bucket == "" {
		return fmt.Errorf("config: s3 snapshot backend requires a bucket")
	}
	if _, err := c.DisabledFeatures(); err != nil {
		return err
	}
	return nil
}

// SessionEngineConfig converts the session section into the engine
// configuration.
func (c *Config) SessionEngineConfig() remote.Config {
	cfg := remote.DefaultConfig()
	if c.Session.Port != 0 {
		cfg.Port = c.Session.Port
	}
	if c.Session.ConnectTimeout != 0 {
		cfg.ConnectTimeout = c.Session.ConnectTimeout
	}
	if c.Session.RetryDelay != 0 {
		cfg.ConnectRetryDelay = c.Session.RetryDelay
	}
	if c.Session.FastUpdateInterval != 0 {
		cfg.FastUpdateInterval = c.Session.FastUpdateInterval
	}
	if c.Session.SlowUpdateInterval != 0 {
		cfg.SlowUpdateInterval = c.Session.SlowUpdateInterval
	}
	if c.Session.WatchdogTimeout != 0 {
		cfg.WatchdogTimeout = c.Session.WatchdogTimeout
	}
	if c.Session.StopGracePeriod != 0 {
		cfg.StopGracePeriod = c.Session.StopGracePeriod
	}
	return cfg
}

// DisabledFeatures parses the policy-disabled feature ids.
func (c *Config) DisabledFeatures() ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(c.Features.Disabled))
	for _, raw := range c.Features.Disabled {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid disabled feature id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
