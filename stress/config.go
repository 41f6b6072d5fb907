package stress

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/benz9527/xavl/observability"
	"github.com/benz9527/xavl/xlog"
)

// Sentinel validation errors.
var (
	ErrInvalidIterations = errors.New("iterations must be positive")
	ErrInvalidMaxNodes   = errors.New("max nodes must be positive")
	ErrInvalidWorkers    = errors.New("workers must be positive")
	ErrInvalidProgress   = errors.New("progress interval must not be negative")
)

// Default configuration values.
const (
	defaultIterations    = 100000
	defaultMaxNodes      = 50
	defaultProgressEvery = 1024
	defaultMetricsAddr   = ":9464"
	envPrefix            = "XAVL"
)

// Config holds the stress run configuration.
type Config struct {
	Iterations int64 `mapstructure:"iterations"`
	MaxNodes   int   `mapstructure:"max_nodes"`
	Workers    int   `mapstructure:"workers"`
	// Seed 0 picks a seed from the clock, the report keeps the one used.
	Seed          int64         `mapstructure:"seed"`
	Verify        bool          `mapstructure:"verify"`
	ProgressEvery int64         `mapstructure:"progress_every"`
	ReportDB      string        `mapstructure:"report_db"`
	Metrics       MetricsConfig `mapstructure:"metrics"`
	Logging       LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Exporter string        `mapstructure:"exporter"`
	Address  string        `mapstructure:"address"`
	Interval time.Duration `mapstructure:"interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps the command line flags to the config keys.
var flagKeys = map[string]string{
	"iterations":       "iterations",
	"max-nodes":        "max_nodes",
	"workers":          "workers",
	"seed":             "seed",
	"verify":           "verify",
	"progress-every":   "progress_every",
	"report-db":        "report_db",
	"metrics-exporter": "metrics.exporter",
	"metrics-address":  "metrics.address",
	"log-level":        "logging.level",
	"log-format":       "logging.format",
}

// RegisterFlags adds the config flags. Unset flags leave the file, env
// and default values in place.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.Int64("iterations", defaultIterations, "number of rounds")
	flags.Int("max-nodes", defaultMaxNodes, "upper bound (exclusive) of the nodes in a round")
	flags.Int("workers", runtime.GOMAXPROCS(0), "independent trees run in parallel")
	flags.Int64("seed", 0, "random seed, 0 for a clock based one")
	flags.Bool("verify", true, "check the whole tree after every step")
	flags.Int64("progress-every", defaultProgressEvery, "log progress every N rounds, 0 to disable")
	flags.String("report-db", "", "sqlite file to keep run reports in")
	flags.String("metrics-exporter", string(observability.NoneExporter), "none, console or prometheus")
	flags.String("metrics-address", defaultMetricsAddr, "prometheus scrape address")
	flags.String("log-level", xlog.LogLevelInfo.String(), "debug, info, warn or error")
	flags.String("log-format", "json", "json or text")
}

// LoadConfig loads configuration from file, XAVL_ environment variables
// and flags, in increasing priority.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("xavl")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := viperCfg.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	if config.Seed == 0 {
		config.Seed = time.Now().UnixNano()
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("iterations", defaultIterations)
	viperCfg.SetDefault("max_nodes", defaultMaxNodes)
	viperCfg.SetDefault("workers", runtime.GOMAXPROCS(0))
	viperCfg.SetDefault("seed", 0)
	viperCfg.SetDefault("verify", true)
	viperCfg.SetDefault("progress_every", defaultProgressEvery)
	viperCfg.SetDefault("report_db", "")

	viperCfg.SetDefault("metrics.exporter", string(observability.NoneExporter))
	viperCfg.SetDefault("metrics.address", defaultMetricsAddr)
	viperCfg.SetDefault("metrics.interval", "10s")

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
}

func validateConfig(config *Config) error {
	if config.Iterations <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidIterations, config.Iterations)
	}

	if config.MaxNodes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxNodes, config.MaxNodes)
	}

	if config.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Workers)
	}

	if config.ProgressEvery < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidProgress, config.ProgressEvery)
	}

	if _, err := observability.ParseMetricsExporter(config.Metrics.Exporter); err != nil {
		return err
	}

	return nil
}
