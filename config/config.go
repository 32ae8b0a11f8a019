// Package config contains vdfcache configuration definitions.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/spacemeshos/vdfcache/api"
	"github.com/spacemeshos/vdfcache/common/types"
	"github.com/spacemeshos/vdfcache/metrics"
	"github.com/spacemeshos/vdfcache/vdf"
)

const (
	defaultDataDirName  = ".vdfcache"
	defaultSnapshotName = "state.json"
	defaultLockName     = "vdfcache.lock"
)

// Config defines the top level configuration of the service.
type Config struct {
	BaseConfig `mapstructure:"main"`
	Pool       PoolConfig     `mapstructure:"pool"`
	Worker     WorkerConfig   `mapstructure:"worker"`
	API        api.Config     `mapstructure:"api"`
	Metrics    metrics.Config `mapstructure:"metrics"`
	LOGGING    LoggerConfig   `mapstructure:"logging"`
}

// BaseConfig defines where the service keeps its files.
type BaseConfig struct {
	DataDir string `mapstructure:"data-folder"`

	ConfigFile string `mapstructure:"config"`

	// FileLock guards against two instances sharing a data directory.
	// Relative paths are resolved against DataDir.
	FileLock string `mapstructure:"filelock"`

	// Snapshot is the state file. Relative paths are resolved against DataDir.
	Snapshot string `mapstructure:"snapshot"`
}

// PoolConfig controls how many solutions are precomputed.
type PoolConfig struct {
	// Capacity is the number of ready solutions kept per (n, t) pair.
	Capacity int `mapstructure:"capacity"`
	// Modulus is used when there is no usable snapshot. A snapshot made for a
	// different modulus is set aside.
	Modulus *big.Int `mapstructure:"modulus"`
}

// WorkerConfig configures the proving worker process.
type WorkerConfig struct {
	// Command is the worker executable. Empty runs this binary's worker command.
	Command string `mapstructure:"worker-command"`
	// Slice is how long the worker proves before reporting resumable progress.
	Slice time.Duration `mapstructure:"worker-slice"`
	// ReportInterval is the number of squarings between cancellation checks.
	ReportInterval uint64 `mapstructure:"report-interval"`
	// VerifySolutions checks every completed proof before it is cached.
	VerifySolutions bool `mapstructure:"verify-solutions"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseConfig: defaultBaseConfig(),
		Pool: PoolConfig{
			Capacity: types.Capacity,
			Modulus:  types.DefaultModulus(),
		},
		Worker: WorkerConfig{
			Slice:          5 * time.Second,
			ReportInterval: vdf.DefaultReportInterval,
		},
		API:     api.DefaultConfig(),
		Metrics: metrics.DefaultConfig(),
		LOGGING: defaultLoggingConfig(),
	}
}

func defaultBaseConfig() BaseConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return BaseConfig{
		DataDir:  filepath.Join(home, defaultDataDirName),
		FileLock: defaultLockName,
		Snapshot: defaultSnapshotName,
	}
}

// SnapshotPath returns the absolute location of the snapshot file.
func (cfg *BaseConfig) SnapshotPath() string {
	return cfg.resolve(cfg.Snapshot)
}

// LockPath returns the absolute location of the lock file.
func (cfg *BaseConfig) LockPath() string {
	return cfg.resolve(cfg.FileLock)
}

func (cfg *BaseConfig) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cfg.DataDir, path)
}

// Validate checks the whole configuration.
func (cfg *Config) Validate() error {
	if cfg.DataDir == "" {
		return errors.New("data-folder must be set")
	}
	if cfg.Snapshot == "" || cfg.FileLock == "" {
		return errors.New("snapshot and filelock must be set")
	}
	if cfg.Pool.Capacity < 1 || cfg.Pool.Capacity > types.Capacity {
		return fmt.Errorf("pool capacity must be between 1 and %d, got %d", types.Capacity, cfg.Pool.Capacity)
	}
	if !types.ValidN(cfg.Pool.Modulus) {
		return errors.New("pool modulus must be an integer greater than 1")
	}
	if cfg.Worker.Slice <= 0 {
		return fmt.Errorf("worker-slice must be positive, got %v", cfg.Worker.Slice)
	}
	if cfg.Worker.ReportInterval == 0 {
		return errors.New("report-interval must be positive")
	}
	if err := cfg.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return errors.New("metrics-listen must be set when metrics are enabled")
	}
	if cfg.Metrics.PushURL != "" && cfg.Metrics.PushPeriod <= 0 {
		return fmt.Errorf("metrics-push-period must be positive, got %v", cfg.Metrics.PushPeriod)
	}
	if err := cfg.LOGGING.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// LoadConfig reads the config file at path from fs into cfg. Values missing from
// the file keep what cfg already holds.
func LoadConfig(fs afero.Fs, path string, cfg *Config) error {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %v: %w", path, err)
	}

	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		BigIntDecodeFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	opts := []viper.DecoderConfigOption{
		viper.DecodeHook(hook),
		WithIgnoreUntagged(),
		WithErrorUnused(),
	}
	if err := v.Unmarshal(cfg, opts...); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// WithIgnoreUntagged skips struct fields without a mapstructure tag.
func WithIgnoreUntagged() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.IgnoreUntaggedFields = true
	}
}

// WithErrorUnused fails on keys that do not map to any field.
func WithErrorUnused() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	}
}
