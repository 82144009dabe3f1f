// Package config loads partsearch settings from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
	"pkg.jsn.cam/partsearch/internal/sink"
)

// Backend names.
const (
	BackendLanes = "lanes"
	BackendProcs = "procs"
)

// ValidBackends lists every supported execution backend.
var ValidBackends = []string{BackendLanes, BackendProcs}

// Config is the root configuration.
type Config struct {
	Search  SearchConfig  `yaml:"search"`
	Lanes   LanesConfig   `yaml:"lanes"`
	Procs   ProcsConfig   `yaml:"procs"`
	Sink    SinkConfig    `yaml:"sink"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

// SearchConfig describes one search run.
type SearchConfig struct {
	Backend     string   `yaml:"backend"`     // lanes or procs
	Parallelism int      `yaml:"parallelism"` // lanes per block, or worker processes
	IgnoreCase  bool     `yaml:"ignore_case"`
	Inputs      []string `yaml:"inputs,omitempty"`
	Output      string   `yaml:"output"` // file path or s3://bucket/key
}

// LanesConfig configures the data-parallel device.
type LanesConfig struct {
	MaxThreadsPerBlock int `yaml:"max_threads_per_block"`
	CPUWorkers         int `yaml:"cpu_workers"` // 0 means one per CPU
}

// ProcsConfig configures the message-passing backend and standalone workers.
type ProcsConfig struct {
	Peers         []string `yaml:"peers,omitempty"`
	Listen        string   `yaml:"listen"`
	DialTimeout   string   `yaml:"dial_timeout"`
	IOTimeout     string   `yaml:"io_timeout"` // empty disables
	MaxFrameBytes int64    `yaml:"max_frame_bytes"`
}

// SinkConfig configures result sinks.
type SinkConfig struct {
	S3 sink.S3Config `yaml:"s3"`
}

// HistoryConfig configures the run history store.
type HistoryConfig struct {
	DBPath  string `yaml:"db_path"` // empty keeps history in memory
	MaxRuns int    `yaml:"max_runs"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			Backend:     BackendLanes,
			Parallelism: 1,
			Inputs:      []string{"phonebook.txt"},
			Output:      "output.txt",
		},
		Lanes: LanesConfig{
			MaxThreadsPerBlock: 1024,
		},
		Procs: ProcsConfig{
			Listen:        ":9100",
			DialTimeout:   "5s",
			MaxFrameBytes: 256 << 20,
		},
		History: HistoryConfig{
			MaxRuns: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("PARTSEARCH_S3_ACCESS_KEY"); key != "" {
		c.Sink.S3.AccessKey = key
	}
	if key := os.Getenv("PARTSEARCH_S3_SECRET_KEY"); key != "" {
		c.Sink.S3.SecretKey = key
	}
	if path := os.Getenv("PARTSEARCH_DB"); path != "" {
		c.History.DBPath = path
	}
}

// GetDialTimeout returns procs.dial_timeout as a duration.
func (c *Config) GetDialTimeout() time.Duration {
	d, err := time.ParseDuration(c.Procs.DialTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetIOTimeout returns procs.io_timeout as a duration, zero when unset.
func (c *Config) GetIOTimeout() time.Duration {
	d, err := time.ParseDuration(c.Procs.IOTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !slices.Contains(ValidBackends, c.Search.Backend) {
		return fmt.Errorf("invalid backend: %q (valid: %v)", c.Search.Backend, ValidBackends)
	}
	if c.Search.Parallelism < 1 {
		return fmt.Errorf("parallelism must be positive, got %d", c.Search.Parallelism)
	}
	if c.Search.Output == "" {
		return fmt.Errorf("output location is empty")
	}
	if c.Lanes.MaxThreadsPerBlock < 1 {
		return fmt.Errorf("lanes.max_threads_per_block must be positive, got %d", c.Lanes.MaxThreadsPerBlock)
	}
	if c.Lanes.CPUWorkers < 0 {
		return fmt.Errorf("lanes.cpu_workers must not be negative, got %d", c.Lanes.CPUWorkers)
	}
	if c.Procs.MaxFrameBytes < 1 {
		return fmt.Errorf("procs.max_frame_bytes must be positive, got %d", c.Procs.MaxFrameBytes)
	}
	for name, value := range map[string]string{"dial_timeout": c.Procs.DialTimeout, "io_timeout": c.Procs.IOTimeout} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			return fmt.Errorf("invalid procs.%s: %q", name, value)
		}
	}
	if c.History.MaxRuns < 0 {
		return fmt.Errorf("history.max_runs must not be negative, got %d", c.History.MaxRuns)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging.format: %q (valid: console, json)", c.Logging.Format)
	}

	return nil
}
