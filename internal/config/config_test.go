package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEnvKeys = []string{
	EnvCollectionURL, EnvAssetsURL, EnvFetchTimeout, EnvProbeTimeout, EnvProbeCacheTTL,
	EnvCacheDuration, EnvMaxRetries, EnvRetryBaseDelay, EnvExponentialBackoff,
	EnvEmergencyBackend, EnvEmergencyURL, EnvServerPort,
}

// isolate blanks every CATALOG_* variable and points Load at a missing .env.
func isolate(t *testing.T) Options {
	t.Helper()
	for _, k := range allEnvKeys {
		t.Setenv(k, "")
	}
	missing := filepath.Join(t.TempDir(), ".env.missing")
	return Options{EnvFile: &missing}
}

func TestLoadDefaults(t *testing.T) {
	opts := isolate(t)

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, DefaultCollectionURL, cfg.CollectionURL)
	assert.Equal(t, DefaultAssetsURL, cfg.AssetsURL)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CacheDuration)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.True(t, cfg.ExponentialBackoff)
	assert.Equal(t, BackendSQLite, cfg.EmergencyBackend)
	assert.Equal(t, DefaultEmergencyURL, cfg.EmergencyURL)
	assert.Equal(t, "8080", cfg.ServerPort)
}

func TestLoadFromEnv(t *testing.T) {
	opts := isolate(t)
	t.Setenv(EnvCollectionURL, "https://data.example.com/datasets.json")
	t.Setenv(EnvAssetsURL, "https://cdn.example.com/samples/")
	t.Setenv(EnvFetchTimeout, "20s")
	t.Setenv(EnvMaxRetries, "5")
	t.Setenv(EnvRetryBaseDelay, "250ms")
	t.Setenv(EnvExponentialBackoff, "false")
	t.Setenv(EnvEmergencyBackend, "REDIS")
	t.Setenv(EnvEmergencyURL, "redis://localhost:6379/0")

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "https://data.example.com/datasets.json", cfg.CollectionURL)
	assert.Equal(t, "https://cdn.example.com/samples", cfg.AssetsURL)
	assert.Equal(t, 20*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
	assert.False(t, cfg.ExponentialBackoff)
	assert.Equal(t, BackendRedis, cfg.EmergencyBackend)
}

func TestLoadInvalidEnv(t *testing.T) {
	cases := map[string]string{
		EnvFetchTimeout:       "soon",
		EnvMaxRetries:         "three",
		EnvExponentialBackoff: "maybe",
		EnvEmergencyBackend:   "mongo",
		EnvAssetsURL:          "ftp://example.com/samples",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			opts := isolate(t)
			t.Setenv(key, value)
			_, err := Load(opts)
			require.Error(t, err)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte(`
collection_url: https://yaml.example.com/datasets.json
assets_url: https://yaml.example.com/samples
cache:
  duration: 1m
retry:
  max_retries: 7
  base_delay: 2s
  exponential: false
server:
  port: "9000"
`), 0o644))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("# local overrides\nCATALOG_SERVER_PORT=\"9100\"\n"), 0o644))

	t.Run("YAMLOverDefaults", func(t *testing.T) {
		opts := isolate(t)
		opts.ConfigFile = &yamlFile
		cfg, err := Load(opts)
		require.NoError(t, err)
		assert.Equal(t, "https://yaml.example.com/datasets.json", cfg.CollectionURL)
		assert.Equal(t, time.Minute, cfg.CacheDuration)
		assert.Equal(t, 7, cfg.MaxRetries)
		assert.Equal(t, 2*time.Second, cfg.RetryBaseDelay)
		assert.False(t, cfg.ExponentialBackoff)
		assert.Equal(t, "9000", cfg.ServerPort)
	})

	t.Run("EnvFileOverYAML", func(t *testing.T) {
		opts := isolate(t)
		opts.ConfigFile = &yamlFile
		opts.EnvFile = &envFile
		cfg, err := Load(opts)
		require.NoError(t, err)
		assert.Equal(t, "9100", cfg.ServerPort)
	})

	t.Run("EnvOverEnvFile", func(t *testing.T) {
		opts := isolate(t)
		opts.EnvFile = &envFile
		t.Setenv(EnvServerPort, "9200")
		cfg, err := Load(opts)
		require.NoError(t, err)
		assert.Equal(t, "9200", cfg.ServerPort)
	})

	t.Run("OptionsOverEverything", func(t *testing.T) {
		opts := isolate(t)
		opts.ConfigFile = &yamlFile
		t.Setenv(EnvMaxRetries, "4")
		retries := 1
		port := "9300"
		opts.MaxRetries = &retries
		opts.ServerPort = &port
		cfg, err := Load(opts)
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.MaxRetries)
		assert.Equal(t, "9300", cfg.ServerPort)
	})
}

func TestLoadRejectsBadYAML(t *testing.T) {
	opts := isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry:\n  base_delay: fast\n"), 0o644))
	opts.ConfigFile = &path

	_, err := Load(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry.base_delay")
}

func TestLoadRejectsEmptyOverrides(t *testing.T) {
	opts := isolate(t)
	empty := "  "
	opts.CollectionURL = &empty
	_, err := Load(opts)
	require.Error(t, err)

	opts = isolate(t)
	zero := time.Duration(0)
	opts.FetchTimeout = &zero
	_, err = Load(opts)
	require.Error(t, err)
}

func TestLoadBackendNoneNeedsNoURL(t *testing.T) {
	opts := isolate(t)
	backend := BackendNone
	url := ""
	opts.EmergencyBackend = &backend
	opts.EmergencyURL = &url

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, BackendNone, cfg.EmergencyBackend)
}

func TestConfigLogValueRedactsEmergencyURL(t *testing.T) {
	cfg := Config{
		EmergencyBackend: BackendPostgres,
		EmergencyURL:     "postgres://catalog:hunter2@db:5432/catalog",
	}
	var b strings.Builder
	logger := slog.New(slog.NewTextHandler(&b, nil))
	logger.Info("config", "config", cfg)

	assert.NotContains(t, b.String(), "hunter2")
	assert.Contains(t, b.String(), "db:5432")
}
