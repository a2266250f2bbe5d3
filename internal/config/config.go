package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	LogLevel       string `mapstructure:"log_level"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Verbose        bool   `mapstructure:"verbose"`
	RequestsFile   string `mapstructure:"requests_file"`
	SinksFile      string `mapstructure:"sinks_file"`

	WatchIntervalSeconds int64         `mapstructure:"watch_interval"`
	WatchInterval        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

const envPrefix = "CURLKIT"

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	return load(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("app_name", "curlkit")
	v.SetDefault("log_level", "info")
	v.SetDefault("timeout_seconds", 3)
	v.SetDefault("verbose", false)
	v.SetDefault("requests_file", "./configs/requests.yaml")
	v.SetDefault("sinks_file", "./configs/sinks.yaml")
	v.SetDefault("watch_interval", 0) // seconds; 0 runs a single pass
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/digests.db")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return v
}

func load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("invalid timeout_seconds (must not be negative)")
	}
	if cfg.WatchIntervalSeconds < 0 {
		return nil, fmt.Errorf("invalid watch_interval (must not be negative seconds)")
	}
	cfg.WatchInterval = time.Duration(cfg.WatchIntervalSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return &cfg, nil
}
