package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/config"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/output"
)

type rootFlagValues struct {
	format           string
	configFile       string
	envFile          string
	collectionURL    string
	assetsURL        string
	timeout          string
	maxRetries       int
	emergencyBackend string
	emergencyURL     string
	debug            bool
}

var rootFlags rootFlagValues

var rootCmd = &cobra.Command{
	Use:          "catalog",
	Short:        "Postal-code dataset catalog",
	Long:         `Browse the postal-code dataset collection, check sample availability, download samples and serve the catalog over HTTP.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

func RootCmd() *cobra.Command {
	return rootCmd
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.format, "format", string(output.FormatText), "Output format: text|json")
	rootCmd.PersistentFlags().StringVar(&rootFlags.configFile, "config", "", "Optional YAML config file")
	rootCmd.PersistentFlags().StringVar(&rootFlags.envFile, "env-file", ".env", "Dotenv file read before the environment")
	rootCmd.PersistentFlags().StringVar(&rootFlags.collectionURL, "collection-url", "", fmt.Sprintf("Collection document URL or path (overrides %s)", config.EnvCollectionURL))
	rootCmd.PersistentFlags().StringVar(&rootFlags.assetsURL, "assets-url", "", fmt.Sprintf("Base URL of the sample files (overrides %s)", config.EnvAssetsURL))
	rootCmd.PersistentFlags().StringVar(&rootFlags.timeout, "timeout", "", fmt.Sprintf("Collection fetch timeout, e.g. 10s (overrides %s)", config.EnvFetchTimeout))
	rootCmd.PersistentFlags().IntVar(&rootFlags.maxRetries, "max-retries", config.DefaultMaxRetries, fmt.Sprintf("Retries after a recoverable load failure (overrides %s)", config.EnvMaxRetries))
	rootCmd.PersistentFlags().StringVar(&rootFlags.emergencyBackend, "emergency-backend", "", fmt.Sprintf("Emergency cache backend: sqlite|postgres|redis|none (overrides %s)", config.EnvEmergencyBackend))
	rootCmd.PersistentFlags().StringVar(&rootFlags.emergencyURL, "emergency-url", "", fmt.Sprintf("Emergency cache DSN or address (overrides %s)", config.EnvEmergencyURL))
	rootCmd.PersistentFlags().BoolVar(&rootFlags.debug, "debug", false, "Enable debug logging")
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Changed
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil {
		return f.Changed
	}
	if f := cmd.PersistentFlags().Lookup(name); f != nil {
		return f.Changed
	}
	return false
}

func newFormatterFromRootFlags() (*output.Formatter, error) {
	f, err := output.ParseFormat(rootFlags.format)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(f), nil
}

func loadConfigFromRootFlags(cmd *cobra.Command) (config.Config, error) {
	var opts config.Options

	if flagChanged(cmd, "config") {
		opts.ConfigFile = &rootFlags.configFile
	}
	if flagChanged(cmd, "env-file") {
		opts.EnvFile = &rootFlags.envFile
	}
	if flagChanged(cmd, "collection-url") {
		opts.CollectionURL = &rootFlags.collectionURL
	}
	if flagChanged(cmd, "assets-url") {
		opts.AssetsURL = &rootFlags.assetsURL
	}
	if flagChanged(cmd, "timeout") {
		raw := strings.TrimSpace(rootFlags.timeout)
		if raw == "" {
			return config.Config{}, fmt.Errorf("--timeout must not be empty")
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --timeout: %w", err)
		}
		opts.FetchTimeout = &d
	}
	if flagChanged(cmd, "max-retries") {
		if rootFlags.maxRetries < 0 {
			return config.Config{}, fmt.Errorf("--max-retries must not be negative")
		}
		opts.MaxRetries = &rootFlags.maxRetries
	}
	if flagChanged(cmd, "emergency-backend") {
		opts.EmergencyBackend = &rootFlags.emergencyBackend
	}
	if flagChanged(cmd, "emergency-url") {
		opts.EmergencyURL = &rootFlags.emergencyURL
	}

	opts.Debug = rootFlags.debug

	return config.Load(opts)
}
