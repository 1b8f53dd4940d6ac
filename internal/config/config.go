// Package config loads and validates the mount daemon's configuration:
// where the mount lives, how it talks to the object store and the
// privileged helper, and how its ambient stack (cache, retry, circuit
// breaker, health, metrics) is tuned.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// MountProtocol selects which kernel-facing channel a mount attaches
// through.
type MountProtocol string

const (
	ProtocolFUSE       MountProtocol = "fuse"
	ProtocolNFS        MountProtocol = "nfs"
	ProtocolProjection MountProtocol = "projection"
)

// OverlayType selects the local-modification storage backend.
type OverlayType string

const (
	OverlayMemory OverlayType = "memory"
	OverlayFile   OverlayType = "file"
)

// Configuration is the complete daemon configuration.
type Configuration struct {
	Global      GlobalConfig      `yaml:"global"`
	Mount       MountConfig       `yaml:"mount"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Cache       CacheConfig       `yaml:"cache"`
	Overlay     OverlayConfig     `yaml:"overlay"`
	Network     NetworkConfig     `yaml:"network"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Features    FeatureConfig     `yaml:"features"`
}

// GlobalConfig holds process-wide settings.
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsPort int    `yaml:"metrics_port"`
	HealthPort  int    `yaml:"health_port"`
	ProfilePort int    `yaml:"profile_port"`
}

// MountConfig is the immutable checkout configuration named in spec.md §3:
// mount absolute path, client-directory path, case-sensitivity flag,
// UTF-8-required flag, overlay type, mount-protocol choice.
type MountConfig struct {
	MountPath        string        `yaml:"mount_path"`
	ClientDirectory  string        `yaml:"client_directory"`
	CaseSensitive    bool          `yaml:"case_sensitive"`
	RequireUTF8Paths bool          `yaml:"require_utf8_paths"`
	Protocol         MountProtocol `yaml:"protocol"`
	ReadOnly         bool          `yaml:"read_only"`
	ThreadCount      int           `yaml:"thread_count"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxInFlight      int           `yaml:"max_in_flight_requests"`
}

// ObjectStoreConfig describes how to reach the content-addressed object
// store backend.
type ObjectStoreConfig struct {
	Endpoint           string        `yaml:"endpoint"`
	Bucket             string        `yaml:"bucket"`
	Region             string        `yaml:"region"`
	ConnectionPoolSize int           `yaml:"connection_pool_size"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
}

// CacheConfig configures the blob/tree cache.
type CacheConfig struct {
	MaxEntries     int           `yaml:"max_entries"`
	MaxSizeBytes   int64         `yaml:"max_size_bytes"`
	TTL            time.Duration `yaml:"ttl"`
	EvictionPolicy string        `yaml:"eviction_policy"`
}

// OverlayConfig configures where local modifications persist.
type OverlayConfig struct {
	Type      OverlayType `yaml:"type"`
	Directory string      `yaml:"directory"`
}

// NetworkConfig groups retry and circuit-breaker tuning shared by the
// object-store client and the privileged-helper RPC client.
type NetworkConfig struct {
	Timeouts       TimeoutConfig        `yaml:"timeouts"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// TimeoutConfig holds connection-level timeouts.
type TimeoutConfig struct {
	Connect time.Duration `yaml:"connect"`
	Read    time.Duration `yaml:"read"`
	Write   time.Duration `yaml:"write"`

	// ParentLock is the ParentCommit lock bound, 500ms by default. Checkout
	// and parent-enforcing diff use their own fixed 500ms bound and do not
	// read this value; the daemon uses it only to derive the health check's
	// parent-lock staleness threshold.
	ParentLock time.Duration `yaml:"parent_lock"`
}

// RetryConfig configures internal/retry.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// CircuitBreakerConfig configures internal/circuit.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// MonitoringConfig groups metrics, health checks, and logging.
type MonitoringConfig struct {
	Metrics      MetricsConfig      `yaml:"metrics"`
	HealthChecks HealthChecksConfig `yaml:"health_checks"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// MetricsConfig configures internal/metrics.
type MetricsConfig struct {
	Enabled      bool              `yaml:"enabled"`
	CustomLabels map[string]string `yaml:"custom_labels"`
}

// HealthChecksConfig configures internal/health.
type HealthChecksConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig configures internal/telemetry.
type LoggingConfig struct {
	Structured bool   `yaml:"structured"`
	Format     string `yaml:"format"`
}

// FeatureConfig holds feature toggles.
type FeatureConfig struct {
	Prefetching        bool `yaml:"prefetching"`
	MaxPrefetchLeases  int  `yaml:"max_prefetch_leases"`
	DiffHoldParentLock bool `yaml:"diff_hold_parent_lock"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			MetricsPort: 8080,
			HealthPort:  8081,
			ProfilePort: 6060,
		},
		Mount: MountConfig{
			CaseSensitive:    true,
			RequireUTF8Paths: true,
			Protocol:         ProtocolFUSE,
			ThreadCount:      8,
			RequestTimeout:   60 * time.Second,
			MaxInFlight:      512,
		},
		ObjectStore: ObjectStoreConfig{
			ConnectionPoolSize: 8,
			RequestTimeout:     30 * time.Second,
		},
		Cache: CacheConfig{
			MaxEntries:     100000,
			MaxSizeBytes:   2 << 30,
			TTL:            5 * time.Minute,
			EvictionPolicy: "lru",
		},
		Overlay: OverlayConfig{
			Type: OverlayMemory,
		},
		Network: NetworkConfig{
			Timeouts: TimeoutConfig{
				Connect:    10 * time.Second,
				Read:       30 * time.Second,
				Write:      300 * time.Second,
				ParentLock: 500 * time.Millisecond,
			},
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   1 * time.Second,
				MaxDelay:    30 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				Timeout:          60 * time.Second,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				CustomLabels: map[string]string{
					"service": "scmfs",
				},
			},
			HealthChecks: HealthChecksConfig{
				Enabled:  true,
				Interval: 30 * time.Second,
				Timeout:  5 * time.Second,
			},
			Logging: LoggingConfig{
				Structured: true,
				Format:     "json",
			},
		},
		Features: FeatureConfig{
			Prefetching:        true,
			MaxPrefetchLeases:  8,
			DiffHoldParentLock: false,
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv overlays environment variables onto the configuration.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("SCMFS_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("SCMFS_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("SCMFS_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Global.MetricsPort = port
		}
	}
	if val := os.Getenv("SCMFS_MOUNT_PATH"); val != "" {
		c.Mount.MountPath = val
	}
	if val := os.Getenv("SCMFS_CLIENT_DIRECTORY"); val != "" {
		c.Mount.ClientDirectory = val
	}
	if val := os.Getenv("SCMFS_MOUNT_PROTOCOL"); val != "" {
		c.Mount.Protocol = MountProtocol(strings.ToLower(val))
	}
	if val := os.Getenv("SCMFS_READ_ONLY"); val != "" {
		c.Mount.ReadOnly = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SCMFS_OBJECT_STORE_ENDPOINT"); val != "" {
		c.ObjectStore.Endpoint = val
	}
	if val := os.Getenv("SCMFS_OBJECT_STORE_BUCKET"); val != "" {
		c.ObjectStore.Bucket = val
	}
	if val := os.Getenv("SCMFS_PREFETCHING"); val != "" {
		c.Features.Prefetching = strings.ToLower(val) == "true"
	}
	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for internal consistency.
func (c *Configuration) Validate() error {
	if c.Mount.MountPath == "" {
		return fmt.Errorf("mount.mount_path is required")
	}
	if !filepath.IsAbs(c.Mount.MountPath) {
		return fmt.Errorf("mount.mount_path must be absolute: %s", c.Mount.MountPath)
	}
	if c.Mount.ClientDirectory == "" {
		return fmt.Errorf("mount.client_directory is required")
	}

	switch c.Mount.Protocol {
	case ProtocolFUSE, ProtocolNFS, ProtocolProjection:
	default:
		return fmt.Errorf("invalid mount.protocol: %s", c.Mount.Protocol)
	}

	switch c.Overlay.Type {
	case OverlayMemory, OverlayFile:
	default:
		return fmt.Errorf("invalid overlay.type: %s", c.Overlay.Type)
	}

	if c.Mount.ThreadCount <= 0 {
		return fmt.Errorf("mount.thread_count must be greater than 0")
	}

	if c.ObjectStore.ConnectionPoolSize <= 0 {
		return fmt.Errorf("object_store.connection_pool_size must be greater than 0")
	}

	if c.Global.MetricsPort == c.Global.HealthPort {
		return fmt.Errorf("metrics_port and health_port cannot be the same")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Network.Timeouts.ParentLock <= 0 {
		return fmt.Errorf("network.timeouts.parent_lock must be greater than 0")
	}

	return nil
}
