package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// EnumsConfig holds configuration for the enum reflection tool.
type EnumsConfig struct {
	DatabaseFile    string   `mapstructure:"database_file"`
	SkippedProjects []string `mapstructure:"skipped_projects"`
	ProjectGlob     string   `mapstructure:"project_glob"`
	GeneratedDir    string   `mapstructure:"generated_dir"`
	TelemetryFile   string   `mapstructure:"telemetry_file"`
}

// PackagesConfig holds configuration for the package manager.
type PackagesConfig struct {
	ConfigFile             string        `mapstructure:"config_file"`
	ManifestFile           string        `mapstructure:"manifest_file"`
	DownloadDir            string        `mapstructure:"download_dir"`
	UnpackDir              string        `mapstructure:"unpack_dir"`
	MaxConcurrentDownloads int           `mapstructure:"max_concurrent_downloads"`
	MaxHashWorkers         int           `mapstructure:"max_hash_workers"`
	HashBatchBytes         int64         `mapstructure:"hash_batch_bytes"`
	PollInterval           time.Duration `mapstructure:"poll_interval"`
	CleanRetries           int           `mapstructure:"clean_retries"`
	CleanBackoff           time.Duration `mapstructure:"clean_backoff"`
	TelemetryFile          string        `mapstructure:"telemetry_file"`
}

// Config holds all runtime configuration for a ccgtools invocation.
// Values are populated from .ccgtools.yaml, CCGTOOLS_* env vars, and CLI flags.
type Config struct {
	DataDir   string         `mapstructure:"data_dir"`
	LogDir    string         `mapstructure:"log_dir"`
	LogLevel  string         `mapstructure:"log_level"`
	LogMaxAge time.Duration  `mapstructure:"log_max_age"`
	LockDir   string         `mapstructure:"lock_dir"`
	Verbose   bool           `mapstructure:"verbose"`
	Enums     EnumsConfig    `mapstructure:"enums"`
	Packages  PackagesConfig `mapstructure:"packages"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("data_dir", "Run/Tools/Data")
	viper.SetDefault("log_dir", "Run/Tools/Logs")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_max_age", time.Hour)
	viper.SetDefault("lock_dir", os.TempDir())
	viper.SetDefault("verbose", false)

	viper.SetDefault("enums.database_file", "EnumReflectionDB.toml")
	viper.SetDefault("enums.skipped_projects", []string{"GTEST-MD", "PLATFORM", "PLATFORMTEST", "PUGIXML"})
	viper.SetDefault("enums.project_glob", "*.vcxproj")
	viper.SetDefault("enums.generated_dir", "GeneratedCode")
	viper.SetDefault("enums.telemetry_file", "")

	viper.SetDefault("packages.config_file", "PackageManagerConfig.yaml")
	viper.SetDefault("packages.manifest_file", "OutputManifest.db")
	viper.SetDefault("packages.download_dir", "Run/Tools/Temp/PackageManager/Downloads")
	viper.SetDefault("packages.unpack_dir", "Run/Tools/Temp/PackageManager/Unpack")
	viper.SetDefault("packages.max_concurrent_downloads", 3)
	viper.SetDefault("packages.max_hash_workers", 8)
	viper.SetDefault("packages.hash_batch_bytes", 2_000_000)
	viper.SetDefault("packages.poll_interval", 2*time.Millisecond)
	viper.SetDefault("packages.clean_retries", 20)
	viper.SetDefault("packages.clean_backoff", time.Second)
	viper.SetDefault("packages.telemetry_file", "")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the tools cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Packages.MaxConcurrentDownloads < 1 {
		errs = append(errs, fmt.Errorf("packages.max_concurrent_downloads must be positive, got %d", c.Packages.MaxConcurrentDownloads))
	}
	if c.Packages.MaxHashWorkers < 1 {
		errs = append(errs, fmt.Errorf("packages.max_hash_workers must be positive, got %d", c.Packages.MaxHashWorkers))
	}
	if c.Packages.HashBatchBytes < 1 {
		errs = append(errs, fmt.Errorf("packages.hash_batch_bytes must be positive, got %d", c.Packages.HashBatchBytes))
	}
	if c.Packages.CleanRetries < 1 {
		errs = append(errs, fmt.Errorf("packages.clean_retries must be positive, got %d", c.Packages.CleanRetries))
	}
	if c.Enums.DatabaseFile == "" {
		errs = append(errs, errors.New("enums.database_file must not be empty"))
	}
	return errors.Join(errs...)
}
