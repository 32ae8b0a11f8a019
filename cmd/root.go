// Package cmd holds the build info and the command line flags of vdfcache executables.
package cmd

import (
	"fmt"
	"math/big"

	"github.com/spf13/pflag"

	"github.com/spacemeshos/vdfcache/common/types"
	"github.com/spacemeshos/vdfcache/config"
)

var (
	// Version is the app's semantic version. Designed to be overwritten by make.
	Version string

	// Branch is the git branch used to build the App. Designed to be overwritten by make.
	Branch string

	// Commit is the git commit used to build the app. Designed to be overwritten by make.
	Commit string
)

// AddFlags adds the config flags to the flag set. Flags are bound to the fields of
// cfg and take precedence over the config file. It returns the config file path.
func AddFlags(flagSet *pflag.FlagSet, cfg *config.Config) (configPath *string) {
	configPath = flagSet.StringP("config", "c", "", "load configuration from file")

	/** ======================== BaseConfig Flags ========================== **/
	flagSet.StringVarP(&cfg.DataDir, "data-folder", "d",
		cfg.DataDir, "directory for the snapshot and the lock file")
	flagSet.StringVar(&cfg.Snapshot, "snapshot",
		cfg.Snapshot, "snapshot file, relative to the data folder")
	flagSet.StringVar(&cfg.FileLock, "filelock",
		cfg.FileLock, "lock file, relative to the data folder")

	/** ======================== Pool Flags ========================== **/
	flagSet.IntVar(&cfg.Pool.Capacity, "capacity",
		cfg.Pool.Capacity, "number of solutions to precompute for every (n, t)")
	flagSet.Var(bigIntValue{&cfg.Pool.Modulus}, "modulus",
		"modulus of a fresh state, decimal or 0x-prefixed hex")

	/** ======================== Worker Flags ========================== **/
	flagSet.StringVar(&cfg.Worker.Command, "worker-command",
		cfg.Worker.Command, "worker executable; this binary when empty")
	flagSet.DurationVar(&cfg.Worker.Slice, "worker-slice",
		cfg.Worker.Slice, "how long the worker proves before it reports progress")
	flagSet.Uint64Var(&cfg.Worker.ReportInterval, "report-interval",
		cfg.Worker.ReportInterval, "squarings between checks for the end of a slice")
	flagSet.BoolVar(&cfg.Worker.VerifySolutions, "verify-solutions",
		cfg.Worker.VerifySolutions, "verify every proof before caching it")

	/** ======================== API Flags ========================== **/
	flagSet.StringVar(&cfg.API.Listen, "api-listen",
		cfg.API.Listen, "loopback address of the http api")
	flagSet.StringVar(&cfg.API.Origin, "api-origin",
		cfg.API.Origin, "the only origin allowed to call the api from a browser")

	/** ======================== Metrics Flags ========================== **/
	flagSet.BoolVar(&cfg.Metrics.Enabled, "metrics",
		cfg.Metrics.Enabled, "serve prometheus metrics")
	flagSet.StringVar(&cfg.Metrics.Listen, "metrics-listen",
		cfg.Metrics.Listen, "address of the metrics endpoint")
	flagSet.StringVar(&cfg.Metrics.PushURL, "metrics-push",
		cfg.Metrics.PushURL, "push metrics to this pushgateway url")
	flagSet.DurationVar(&cfg.Metrics.PushPeriod, "metrics-push-period",
		cfg.Metrics.PushPeriod, "push period")

	/** ======================== Logging Flags ========================== **/
	flagSet.StringVar(&cfg.LOGGING.Encoder, "log-encoder",
		cfg.LOGGING.Encoder, "console or json")
	flagSet.StringVar(&cfg.LOGGING.VDFLoggerLevel, "vdf-log-level",
		cfg.LOGGING.VDFLoggerLevel, "log level of the proving engine")
	return configPath
}

// bigIntValue is a pflag.Value for big integers.
type bigIntValue struct {
	v **big.Int
}

func (b bigIntValue) String() string {
	if *b.v == nil {
		return ""
	}
	return (*b.v).String()
}

func (b bigIntValue) Set(s string) error {
	n, err := types.ParseInt(s)
	if err != nil {
		return fmt.Errorf("parse modulus: %w", err)
	}
	*b.v = n
	return nil
}

func (b bigIntValue) Type() string {
	return "bigint"
}
