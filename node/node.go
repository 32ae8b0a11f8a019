// Package node wires the vdfcache service together and provides its commands.
package node

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/vdfcache/api"
	"github.com/spacemeshos/vdfcache/cmd"
	"github.com/spacemeshos/vdfcache/config"
	"github.com/spacemeshos/vdfcache/events"
	"github.com/spacemeshos/vdfcache/hash"
	"github.com/spacemeshos/vdfcache/log"
	"github.com/spacemeshos/vdfcache/metrics"
	"github.com/spacemeshos/vdfcache/scheduler"
	"github.com/spacemeshos/vdfcache/snapshot"
	"github.com/spacemeshos/vdfcache/state"
	"github.com/spacemeshos/vdfcache/vdf"
	"github.com/spacemeshos/vdfcache/worker"
)

// WorkerCommand is the subcommand that runs the proving worker.
const WorkerCommand = "worker"

// GetCommand returns the root command. It runs the service; subcommands run the
// worker process and print the version.
func GetCommand() *cobra.Command {
	conf := config.DefaultConfig()
	var configPath *string
	c := &cobra.Command{
		Use:   "vdfcache",
		Short: "precompute VDF proofs and serve them locally",
		RunE: func(c *cobra.Command, args []string) error {
			if err := configure(c.Flags(), afero.NewOsFs(), *configPath, &conf); err != nil {
				return err
			}
			app := New(WithConfig(&conf))
			if err := app.Initialize(); err != nil {
				return fmt.Errorf("initializing app: %w", err)
			}

			// stop on ctrl-c and when the session or service manager terminates the daemon
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := os.MkdirAll(conf.DataDir, 0o700); err != nil {
				return fmt.Errorf("ensure data folder exists: %w", err)
			}
			if err := app.Lock(); err != nil {
				return fmt.Errorf("getting exclusive file lock: %w", err)
			}
			defer app.Unlock()

			// Don't print usage on error from this point forward
			c.SilenceUsage = true
			return app.Start(ctx)
		},
	}

	configPath = cmd.AddFlags(c.PersistentFlags(), &conf)

	// versionCmd returns the current version of vdfcache.
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(c *cobra.Command, args []string) {
			fmt.Fprintln(c.OutOrStdout(), cmd.Version)
		},
	}
	c.AddCommand(versionCmd)

	workerCmd := &cobra.Command{
		Use:          WorkerCommand,
		Short:        "Run the proving worker on stdin and stdout",
		Hidden:       true,
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			if err := configure(c.Flags(), afero.NewOsFs(), *configPath, &conf); err != nil {
				return err
			}
			return runWorker(c.Context(), &conf, c.InOrStdin(), c.OutOrStdout(), c.ErrOrStderr())
		},
	}
	c.AddCommand(workerCmd)

	return c
}

// configure loads the config file and applies the flags given on the command
// line on top of it.
func configure(flags *pflag.FlagSet, fs afero.Fs, configPath string, conf *config.Config) error {
	if configPath != "" {
		changed := map[string]string{}
		flags.Visit(func(f *pflag.Flag) {
			changed[f.Name] = f.Value.String()
		})
		if err := config.LoadConfig(fs, configPath, conf); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		for name, value := range changed {
			if err := flags.Set(name, value); err != nil {
				return fmt.Errorf("apply flag %v: %w", name, err)
			}
		}
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Option to modify an App instance.
type Option func(app *App)

// WithConfig overwrites default App config.
func WithConfig(conf *config.Config) Option {
	return func(app *App) {
		app.Config = conf
	}
}

// WithLog sets the root logger. Module loggers are derived from it.
func WithLog(logger *zap.Logger) Option {
	return func(app *App) {
		app.log = logger
	}
}

// New creates an instance of the vdfcache app.
func New(opts ...Option) *App {
	defaultConfig := config.DefaultConfig()
	app := &App{
		Config:  &defaultConfig,
		loggers: make(map[string]*zap.Logger),
		started: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.log == nil {
		// NOTE this needs to be max level so that child loggers can be at the current level or below.
		app.log = log.NewWithLevel("vdfcache",
			zap.NewAtomicLevelAt(zap.DebugLevel), log.Encoder(app.Config.LOGGING.Encoder))
	}
	app.levels = log.NewLevels(app.log)
	return app
}

// App is the vdfcache service: the state store with its subscribers, the worker
// process and the http api.
type App struct {
	Config *config.Config

	log      *zap.Logger
	levels   *log.Levels
	loggers  map[string]*zap.Logger
	fileLock *flock.Flock

	store   *state.Store
	api     *api.Server
	metrics *metrics.Server

	started chan struct{}
}

// Initialize validates the configuration and logs the build info.
func (app *App) Initialize() error {
	if err := app.Config.Validate(); err != nil {
		return err
	}
	app.addLogger(config.AppLogger).Info("starting vdfcache",
		zap.String("version", cmd.Version),
		zap.String("branch", cmd.Branch),
		zap.String("commit", cmd.Commit),
		zap.String("go", runtime.Version()),
		zap.String("os", runtime.GOOS+"-"+runtime.GOARCH),
	)
	version.WithLabelValues(cmd.Version).Set(1)
	return nil
}

// Lock locks the data folder for exclusive use. It returns an error if another
// instance holds the lock.
func (app *App) Lock() error {
	path := app.Config.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating dir for lock %s: %w", path, err)
	}
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("flock %s: %w", path, err)
	} else if !locked {
		return fmt.Errorf("only one vdfcache instance should be running (locking file %s)", fl.Path())
	}
	app.fileLock = fl
	return nil
}

// Unlock unlocks the data folder. It is a no-op if the app is not locked.
func (app *App) Unlock() {
	if app.fileLock == nil {
		return
	}
	if err := app.fileLock.Unlock(); err != nil {
		app.log.Error("failed to unlock file",
			zap.String("path", app.fileLock.Path()),
			zap.Error(err),
		)
	}
}

// Started is closed once the api accepts connections.
func (app *App) Started() <-chan struct{} {
	return app.started
}

// APIAddr is the bound api address. Only valid after Started.
func (app *App) APIAddr() net.Addr {
	return app.api.Addr()
}

// MetricsAddr is the bound metrics address, nil when metrics are disabled.
// Only valid after Started.
func (app *App) MetricsAddr() net.Addr {
	if app.metrics == nil {
		return nil
	}
	return app.metrics.Addr()
}

// SetLogLevel updates the log level of an existing module logger.
func (app *App) SetLogLevel(name, level string) error {
	return app.levels.Set(name, level)
}

// addLogger returns the module logger, creating it at the configured level.
//
// This method is not safe to be called concurrently.
func (app *App) addLogger(name string) *zap.Logger {
	if logger, ok := app.loggers[name]; ok {
		return logger
	}
	level, err := app.Config.LOGGING.Level(name)
	if err == nil {
		var logger *zap.Logger
		if logger, err = app.levels.Named(name, level); err == nil {
			app.loggers[name] = logger
			return logger
		}
	}
	app.log.Panic("unable to decode logger level", zap.String("logger", name), zap.Error(err))
	return nil
}

// Start runs the service until ctx is canceled or the worker process exits.
func (app *App) Start(ctx context.Context) error {
	logger := app.addLogger(config.AppLogger)
	base := app.Config.Pool.Modulus

	initial, outcome := snapshot.Load(app.addLogger(config.SnapshotLogger), app.Config.SnapshotPath(), base)
	startups.WithLabelValues(string(outcome)).Inc()
	app.store = state.New(initial, state.WithLogger(app.addLogger(config.StoreLogger)))

	writer := snapshot.NewWriter(app.Config.SnapshotPath(), base,
		snapshot.WithLogger(app.addLogger(config.SnapshotLogger)))
	reporter := events.NewReporter(events.WithLogger(app.addLogger(config.EventsLogger)))

	proc, err := app.startWorker()
	if err != nil {
		return err
	}

	var sched *scheduler.Scheduler
	bridgeOpts := []worker.BridgeOpt{
		worker.WithLogger(app.addLogger(config.WorkerLogger)),
		worker.WithCapacity(app.Config.Pool.Capacity),
		worker.WithIdleHook(func() { sched.Wake() }),
	}
	if app.Config.Worker.VerifySolutions {
		bridgeOpts = append(bridgeOpts, worker.WithVerifier(vdf.Verify))
	}
	bridge := worker.NewBridge(app.store, proc.Stdout(), proc.Stdin(), bridgeOpts...)
	sched = scheduler.New(app.store, bridge,
		scheduler.WithLogger(app.addLogger(config.SchedulerLogger)),
		scheduler.WithCapacity(app.Config.Pool.Capacity),
	)

	app.store.Subscribe(writer)
	app.store.Subscribe(sched)
	app.store.Subscribe(reporter)

	app.api, err = api.NewServer(app.Config.API, app.store, reporter,
		api.WithLogger(app.addLogger(config.APILogger)))
	if err != nil {
		proc.Stop()
		proc.Wait()
		return err
	}
	if app.Config.Metrics.Enabled {
		app.metrics, err = metrics.NewServer(app.addLogger(config.MetricsLogger), app.Config.Metrics.Listen)
		if err != nil {
			proc.Stop()
			proc.Wait()
			return err
		}
	}

	// the writer outlives the other services so that the final state is saved.
	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writer.Run(writerCtx)
	}()
	app.store.Refresh()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return ignoreCanceled(bridge.Run(ctx)) })
	eg.Go(func() error { return ignoreCanceled(sched.Run(ctx)) })
	eg.Go(func() error { return app.api.Run(ctx) })
	if app.metrics != nil {
		eg.Go(func() error { return app.metrics.Run(ctx) })
	}
	if url := app.Config.Metrics.PushURL; url != "" {
		eg.Go(func() error {
			metrics.PushMetrics(ctx, app.addLogger(config.MetricsLogger), url,
				app.Config.Metrics.PushPeriod, app.instance())
			return nil
		})
	}
	eg.Go(func() error {
		<-ctx.Done()
		return proc.Stop()
	})
	close(app.started)
	logger.Info("vdfcache started",
		zap.String("snapshot", string(outcome)),
		zap.Stringer("api", app.api.Addr()),
		zap.Int("worker", proc.Pid()),
	)

	err = eg.Wait()
	if werr := proc.Wait(); werr != nil {
		logger.Debug("worker exit status", zap.Error(werr))
	}
	stopWriter()
	<-writerDone
	if err != nil {
		logger.Error("vdfcache stopped", zap.Error(err))
		return err
	}
	logger.Info("vdfcache stopped")
	return nil
}

// startWorker runs this executable's worker command unless another command is
// configured.
func (app *App) startWorker() (*worker.Process, error) {
	path := app.Config.Worker.Command
	if path == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("find worker executable: %w", err)
		}
		path = self
	}
	level, err := app.Config.LOGGING.Level(config.VDFLogger)
	if err != nil {
		return nil, err
	}
	return worker.StartProcess(app.addLogger(config.WorkerLogger), path,
		WorkerCommand,
		"--worker-slice", app.Config.Worker.Slice.String(),
		"--report-interval", strconv.FormatUint(app.Config.Worker.ReportInterval, 10),
		"--log-encoder", app.Config.LOGGING.Encoder,
		"--vdf-log-level", level,
	)
}

// instance identifies this installation to the metrics pushgateway.
func (app *App) instance() string {
	host, _ := os.Hostname()
	id := hash.Sum([]byte(host), []byte(app.Config.DataDir))
	return hex.EncodeToString(id[:4])
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
