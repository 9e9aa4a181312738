package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/logging"
)

const (
	EnvCollectionURL      = "CATALOG_COLLECTION_URL"
	EnvAssetsURL          = "CATALOG_ASSETS_URL"
	EnvFetchTimeout       = "CATALOG_FETCH_TIMEOUT"
	EnvProbeTimeout       = "CATALOG_PROBE_TIMEOUT"
	EnvProbeCacheTTL      = "CATALOG_PROBE_CACHE_TTL"
	EnvCacheDuration      = "CATALOG_CACHE_DURATION"
	EnvMaxRetries         = "CATALOG_MAX_RETRIES"
	EnvRetryBaseDelay     = "CATALOG_RETRY_BASE_DELAY"
	EnvExponentialBackoff = "CATALOG_EXPONENTIAL_BACKOFF"
	EnvEmergencyBackend   = "CATALOG_EMERGENCY_BACKEND"
	EnvEmergencyURL       = "CATALOG_EMERGENCY_URL"
	EnvServerPort         = "CATALOG_SERVER_PORT"
)

const (
	DefaultCollectionURL      = "http://localhost:8080/data/datasets.json"
	DefaultAssetsURL          = "http://localhost:8080/samples"
	DefaultFetchTimeout       = 10 * time.Second
	DefaultProbeTimeout       = 5 * time.Second
	DefaultProbeCacheTTL      = 30 * time.Second
	DefaultCacheDuration      = 5 * time.Minute
	DefaultMaxRetries         = 3
	DefaultRetryBaseDelay     = time.Second
	DefaultExponentialBackoff = true
	DefaultEmergencyBackend   = "sqlite"
	DefaultEmergencyURL       = "./catalog-cache.db"
	DefaultServerPort         = "8080"
)

// Emergency cache backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendNone     = "none"
)

type Config struct {
	CollectionURL      string
	AssetsURL          string
	FetchTimeout       time.Duration
	ProbeTimeout       time.Duration
	ProbeCacheTTL      time.Duration
	CacheDuration      time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	ExponentialBackoff bool
	EmergencyBackend   string
	EmergencyURL       string
	ServerPort         string
	Debug              bool
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("collection_url", c.CollectionURL),
		slog.String("assets_url", c.AssetsURL),
		slog.String("fetch_timeout", c.FetchTimeout.String()),
		slog.String("cache_duration", c.CacheDuration.String()),
		slog.Int("max_retries", c.MaxRetries),
		slog.String("retry_base_delay", c.RetryBaseDelay.String()),
		slog.Bool("exponential_backoff", c.ExponentialBackoff),
		slog.String("emergency_backend", c.EmergencyBackend),
		slog.String("emergency_url", logging.RedactURL(c.EmergencyURL)),
	)
}

// Options carries explicit overrides, typically from command-line flags.
// Nil fields leave the lower-priority value in place.
type Options struct {
	CollectionURL      *string
	AssetsURL          *string
	FetchTimeout       *time.Duration
	ProbeTimeout       *time.Duration
	CacheDuration      *time.Duration
	MaxRetries         *int
	RetryBaseDelay     *time.Duration
	ExponentialBackoff *bool
	EmergencyBackend   *string
	EmergencyURL       *string
	ServerPort         *string
	// ConfigFile is an optional YAML file.
	ConfigFile *string
	// EnvFile defaults to ".env".
	EnvFile *string
	Debug   bool
}

// Load resolves configuration with increasing priority: defaults, YAML file,
// .env file and environment, options.
func Load(opts Options) (Config, error) {
	cfg := Config{
		CollectionURL:      DefaultCollectionURL,
		AssetsURL:          DefaultAssetsURL,
		FetchTimeout:       DefaultFetchTimeout,
		ProbeTimeout:       DefaultProbeTimeout,
		ProbeCacheTTL:      DefaultProbeCacheTTL,
		CacheDuration:      DefaultCacheDuration,
		MaxRetries:         DefaultMaxRetries,
		RetryBaseDelay:     DefaultRetryBaseDelay,
		ExponentialBackoff: DefaultExponentialBackoff,
		EmergencyBackend:   DefaultEmergencyBackend,
		EmergencyURL:       DefaultEmergencyURL,
		ServerPort:         DefaultServerPort,
	}

	if opts.ConfigFile != nil && strings.TrimSpace(*opts.ConfigFile) != "" {
		if err := applyYAMLFile(&cfg, strings.TrimSpace(*opts.ConfigFile)); err != nil {
			return Config{}, err
		}
	}

	envFile := ".env"
	if opts.EnvFile != nil && *opts.EnvFile != "" {
		envFile = *opts.EnvFile
	}
	if err := LoadEnvFile(envFile); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := applyOptions(&cfg, opts); err != nil {
		return Config{}, err
	}
	cfg.Debug = opts.Debug

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v, ok := lookupEnvNonEmpty(EnvCollectionURL); ok {
		cfg.CollectionURL = v
	}
	if v, ok := lookupEnvNonEmpty(EnvAssetsURL); ok {
		cfg.AssetsURL = strings.TrimRight(v, "/")
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvFetchTimeout, &cfg.FetchTimeout},
		{EnvProbeTimeout, &cfg.ProbeTimeout},
		{EnvProbeCacheTTL, &cfg.ProbeCacheTTL},
		{EnvCacheDuration, &cfg.CacheDuration},
		{EnvRetryBaseDelay, &cfg.RetryBaseDelay},
	}
	for _, d := range durations {
		v, ok := lookupEnvNonEmpty(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	if v, ok := lookupEnvNonEmpty(EnvMaxRetries); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxRetries, err)
		}
		cfg.MaxRetries = n
	}
	if v, ok := lookupEnvNonEmpty(EnvExponentialBackoff); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvExponentialBackoff, err)
		}
		cfg.ExponentialBackoff = b
	}
	if v, ok := lookupEnvNonEmpty(EnvEmergencyBackend); ok {
		cfg.EmergencyBackend = strings.ToLower(v)
	}
	if v, ok := lookupEnvNonEmpty(EnvEmergencyURL); ok {
		cfg.EmergencyURL = v
	}
	if v, ok := lookupEnvNonEmpty(EnvServerPort); ok {
		cfg.ServerPort = v
	}
	return nil
}

func applyOptions(cfg *Config, opts Options) error {
	if opts.CollectionURL != nil {
		v := strings.TrimSpace(*opts.CollectionURL)
		if v == "" {
			return fmt.Errorf("collection URL must not be empty")
		}
		cfg.CollectionURL = v
	}
	if opts.AssetsURL != nil {
		v := strings.TrimSpace(*opts.AssetsURL)
		if v == "" {
			return fmt.Errorf("assets URL must not be empty")
		}
		cfg.AssetsURL = strings.TrimRight(v, "/")
	}
	if opts.FetchTimeout != nil {
		if *opts.FetchTimeout <= 0 {
			return fmt.Errorf("fetch timeout must be positive")
		}
		cfg.FetchTimeout = *opts.FetchTimeout
	}
	if opts.ProbeTimeout != nil {
		if *opts.ProbeTimeout <= 0 {
			return fmt.Errorf("probe timeout must be positive")
		}
		cfg.ProbeTimeout = *opts.ProbeTimeout
	}
	if opts.CacheDuration != nil {
		cfg.CacheDuration = *opts.CacheDuration
	}
	if opts.MaxRetries != nil {
		cfg.MaxRetries = *opts.MaxRetries
	}
	if opts.RetryBaseDelay != nil {
		cfg.RetryBaseDelay = *opts.RetryBaseDelay
	}
	if opts.ExponentialBackoff != nil {
		cfg.ExponentialBackoff = *opts.ExponentialBackoff
	}
	if opts.EmergencyBackend != nil {
		cfg.EmergencyBackend = strings.ToLower(strings.TrimSpace(*opts.EmergencyBackend))
	}
	if opts.EmergencyURL != nil {
		cfg.EmergencyURL = strings.TrimSpace(*opts.EmergencyURL)
	}
	if opts.ServerPort != nil {
		v := strings.TrimSpace(*opts.ServerPort)
		if v == "" {
			return fmt.Errorf("server port must not be empty")
		}
		cfg.ServerPort = v
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.CollectionURL) == "" {
		return fmt.Errorf("%s must not be empty", EnvCollectionURL)
	}
	if err := validateHTTPURL(c.AssetsURL); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvAssetsURL, err)
	}
	if c.FetchTimeout <= 0 || c.ProbeTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.CacheDuration < 0 || c.ProbeCacheTTL < 0 {
		return fmt.Errorf("cache durations must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.RetryBaseDelay <= 0 {
		return fmt.Errorf("retry base delay must be positive")
	}
	switch c.EmergencyBackend {
	case BackendSQLite, BackendPostgres, BackendRedis:
		if strings.TrimSpace(c.EmergencyURL) == "" {
			return fmt.Errorf("%s is required for backend %s", EnvEmergencyURL, c.EmergencyBackend)
		}
	case BackendNone, "":
	default:
		return fmt.Errorf("invalid %s: %q (must be sqlite, postgres, redis or none)", EnvEmergencyBackend, c.EmergencyBackend)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func lookupEnvNonEmpty(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

// LoadEnvFile sets variables from a dotenv file without overriding ones
// already set to a non-empty value. A missing file is not an error.
func LoadEnvFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	lines := strings.Split(string(content), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if key != "" {
			if _, ok := lookupEnvNonEmpty(key); !ok {
				os.Setenv(key, value)
			}
		}
	}
	return nil
}
