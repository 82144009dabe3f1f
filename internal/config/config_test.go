package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.Equal(t, BackendLanes, cfg.Search.Backend)
	require.Equal(t, "output.txt", cfg.Search.Output)
	require.Equal(t, 1024, cfg.Lanes.MaxThreadsPerBlock)
	require.EqualValues(t, 256<<20, cfg.Procs.MaxFrameBytes)
	require.Equal(t, 5*time.Second, cfg.GetDialTimeout())
	require.Zero(t, cfg.GetIOTimeout())
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Setenv("PARTSEARCH_DB", "")

	path := filepath.Join(t.TempDir(), "partsearch.yaml")
	data := `
search:
  backend: procs
  parallelism: 3
  ignore_case: true
  inputs: [a.txt, b.txt]
procs:
  peers: ["10.0.0.2:9100", "10.0.0.3:9100"]
  io_timeout: 30s
sink:
  s3:
    endpoint: localhost:9000
    prefix: results
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, BackendProcs, cfg.Search.Backend)
	require.Equal(t, 3, cfg.Search.Parallelism)
	require.True(t, cfg.Search.IgnoreCase)
	require.Equal(t, []string{"a.txt", "b.txt"}, cfg.Search.Inputs)
	require.Len(t, cfg.Procs.Peers, 2)
	require.Equal(t, 30*time.Second, cfg.GetIOTimeout())
	require.Equal(t, "localhost:9000", cfg.Sink.S3.Endpoint)
	require.Equal(t, "json", cfg.Logging.Format)

	// untouched keys keep their defaults
	require.Equal(t, "output.txt", cfg.Search.Output)
	require.Equal(t, 5*time.Second, cfg.GetDialTimeout())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("PARTSEARCH_DB", "")
	t.Setenv("PARTSEARCH_S3_ACCESS_KEY", "")
	t.Setenv("PARTSEARCH_S3_SECRET_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	t.Setenv("PARTSEARCH_DB", "")
	t.Setenv("PARTSEARCH_S3_ACCESS_KEY", "")
	t.Setenv("PARTSEARCH_S3_SECRET_KEY", "")

	path := filepath.Join(t.TempDir(), "nested", "partsearch.yaml")
	cfg := Default()
	cfg.History.DBPath = "/var/lib/partsearch/history.db"
	cfg.Search.Parallelism = 8

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PARTSEARCH_DB", "/tmp/env.db")
	t.Setenv("PARTSEARCH_S3_ACCESS_KEY", "AKIA")
	t.Setenv("PARTSEARCH_S3_SECRET_KEY", "secret")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/env.db", cfg.History.DBPath)
	require.Equal(t, "AKIA", cfg.Sink.S3.AccessKey)
	require.Equal(t, "secret", cfg.Sink.S3.SecretKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown backend", func(c *Config) { c.Search.Backend = "gpu" }},
		{"zero parallelism", func(c *Config) { c.Search.Parallelism = 0 }},
		{"negative parallelism", func(c *Config) { c.Search.Parallelism = -2 }},
		{"empty output", func(c *Config) { c.Search.Output = "" }},
		{"zero threads per block", func(c *Config) { c.Lanes.MaxThreadsPerBlock = 0 }},
		{"negative cpu workers", func(c *Config) { c.Lanes.CPUWorkers = -1 }},
		{"zero frame limit", func(c *Config) { c.Procs.MaxFrameBytes = 0 }},
		{"bad dial timeout", func(c *Config) { c.Procs.DialTimeout = "soon" }},
		{"negative io timeout", func(c *Config) { c.Procs.IOTimeout = "-1s" }},
		{"negative max runs", func(c *Config) { c.History.MaxRuns = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
