package node

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/vdfcache/config"
	"github.com/spacemeshos/vdfcache/log"
	"github.com/spacemeshos/vdfcache/vdf"
	"github.com/spacemeshos/vdfcache/worker"
)

// runWorker serves proving requests from in until it is closed. Stdout carries the
// protocol, so the worker logs to errOut where the service picks the lines up.
func runWorker(ctx context.Context, conf *config.Config, in io.Reader, out, errOut io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level, err := conf.LOGGING.Level(config.VDFLogger)
	if err != nil {
		return err
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("worker log level: %w", err)
	}
	logger := log.NewWithWriter(zapcore.AddSync(errOut), "", lvl, log.Encoder(conf.LOGGING.Encoder))
	defer logger.Sync()

	prover := vdf.NewProver(
		vdf.WithLogger(logger.Named(config.VDFLogger)),
		vdf.WithReportInterval(conf.Worker.ReportInterval),
	)
	logger.Info("worker ready",
		zap.Int("pid", os.Getpid()),
		zap.Duration("slice", conf.Worker.Slice),
		zap.Uint64("report_interval", conf.Worker.ReportInterval),
	)
	return worker.Serve(ctx, prover, in, out,
		worker.WithServeLogger(logger),
		worker.WithSlice(conf.Worker.Slice),
	)
}
