// Package config loads the appcache server configuration from a file,
// APPCACHE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dmitrymomot/appcache/pkg/logger"
)

// EnvPrefix is prepended to environment variable names, e.g. APPCACHE_SERVER_ADDRESS.
const EnvPrefix = "APPCACHE"

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete server configuration.
type Config struct {
	Server ServerConfig  `mapstructure:"server"`
	Log    logger.Config `mapstructure:"log"`
	Cache  CacheConfig   `mapstructure:"cache"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// CacheConfig controls the cache manager and its catalog.
type CacheConfig struct {
	// CatalogFile is an optional YAML file merged over the default namespaces.
	CatalogFile      string        `mapstructure:"catalog_file"`
	SweepSchedule    string        `mapstructure:"sweep_schedule"`
	MetricsNamespace string        `mapstructure:"metrics_namespace"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	RefreshTimeout   time.Duration `mapstructure:"refresh_timeout"`
	ParallelMGet     int           `mapstructure:"parallel_mget"`
	CoalesceFetches  bool          `mapstructure:"coalesce_fetches"`
	// FetchLatency simulates a slow backing store in the demo repository.
	FetchLatency time.Duration `mapstructure:"fetch_latency"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.sentry.dsn", "")
	v.SetDefault("log.sentry.environment", "production")
	v.SetDefault("log.sentry.min_level", "warn")

	v.SetDefault("cache.catalog_file", "")
	v.SetDefault("cache.sweep_interval", "5m")
	v.SetDefault("cache.sweep_schedule", "")
	v.SetDefault("cache.refresh_timeout", "30s")
	v.SetDefault("cache.parallel_mget", 0)
	v.SetDefault("cache.coalesce_fetches", false)
	v.SetDefault("cache.metrics_namespace", "appcache")
	v.SetDefault("cache.fetch_latency", "50ms")
}

// flagBindings maps command-line flags to configuration keys.
var flagBindings = map[string]string{
	"addr":       "server.address",
	"log-level":  "log.level",
	"log-format": "log.format",
	"log-file":   "log.file",
	"catalog":    "cache.catalog_file",
	"sweep":      "cache.sweep_interval",
}

// Load parses args and builds the configuration. Precedence from lowest to
// highest: defaults, config file (--config), environment, flags.
// Returns pflag.ErrHelp when --help is requested.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("appcache", pflag.ContinueOnError)
	configFile := fs.StringP("config", "c", "", "path to a YAML, TOML or JSON config file")
	fs.String("addr", "", "HTTP listen address")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-format", "", "log format: json or text")
	fs.String("log-file", "", "write logs to a rotated file instead of stdout")
	fs.String("catalog", "", "YAML file with cache namespace definitions")
	fs.Duration("sweep", 0, "expired entry sweep interval (0 disables)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagBindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
		}
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", *configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Address != "", "server.address is required")
	check(c.Server.ShutdownTimeout > 0, "server.shutdown_timeout must be positive")
	check(c.Server.ReadTimeout >= 0, "server.read_timeout must not be negative")
	check(c.Server.WriteTimeout >= 0, "server.write_timeout must not be negative")

	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		check(false, "log.format %q must be json or text", c.Log.Format)
	}

	check(c.Cache.SweepInterval >= 0, "cache.sweep_interval must not be negative")
	check(c.Cache.RefreshTimeout > 0, "cache.refresh_timeout must be positive")
	check(c.Cache.ParallelMGet >= 0, "cache.parallel_mget must not be negative")
	check(c.Cache.FetchLatency >= 0, "cache.fetch_latency must not be negative")

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
}
