// Package worker runs proofs in a separate process and folds the results into the state.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spacemeshos/vdfcache/common/types"
	"github.com/spacemeshos/vdfcache/log"
	"github.com/spacemeshos/vdfcache/state"
	"github.com/spacemeshos/vdfcache/worker/wire"
)

var (
	// ErrBusy is returned by Dispatch while a request is in flight.
	ErrBusy = errors.New("worker: request in flight")
	// ErrWorkerExited is returned by Run when the worker process went away.
	ErrWorkerExited = errors.New("worker: process exited")
)

// VerifyFunc checks a completed proof before it is cached.
type VerifyFunc func(x *big.Int, t int, n *big.Int, y *big.Int, u []*big.Int) error

// BridgeOpt configures the Bridge.
type BridgeOpt func(*Bridge)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) BridgeOpt {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithVerifier makes the bridge verify every completed proof.
func WithVerifier(verify VerifyFunc) BridgeOpt {
	return func(b *Bridge) {
		b.verify = verify
	}
}

// WithCapacity sets the maximum number of solutions kept per pool.
// It is clamped to [1, types.Capacity].
func WithCapacity(capacity int) BridgeOpt {
	return func(b *Bridge) {
		b.capacity = max(1, min(capacity, types.Capacity))
	}
}

// WithIdleHook sets a function called after every response, once the bridge
// accepts a new request again.
func WithIdleHook(hook func()) BridgeOpt {
	return func(b *Bridge) {
		b.onIdle = hook
	}
}

// Bridge talks to the worker process. It owns the in-flight flag: at most one
// request is outstanding, and the flag is cleared only by the matching response.
type Bridge struct {
	logger   *zap.Logger
	store    *state.Store
	capacity int
	verify   VerifyFunc
	onIdle   func()

	enc  *wire.Encoder
	dec  *wire.Decoder
	busy atomic.Bool
}

// NewBridge creates a bridge that writes requests to w and reads responses from r.
func NewBridge(store *state.Store, r io.Reader, w io.Writer, opts ...BridgeOpt) *Bridge {
	b := &Bridge{
		logger:   zap.NewNop(),
		store:    store,
		capacity: types.Capacity,
		enc:      wire.NewEncoder(w),
		dec:      wire.NewDecoder(r),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Busy reports whether a request is in flight.
func (b *Bridge) Busy() bool {
	return b.busy.Load()
}

// Dispatch sends a request to the worker.
func (b *Bridge) Dispatch(req wire.Request) error {
	if !b.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	if err := b.enc.Encode(req); err != nil {
		b.busy.Store(false)
		return fmt.Errorf("dispatch %s: %w", req.Kind, err)
	}
	inFlight.Set(1)
	requests.WithLabelValues(string(req.Kind)).Inc()
	b.logger.Debug("request dispatched",
		zap.String("kind", string(req.Kind)),
		zap.String("x", log.Shorten(req.X, 8)),
		zap.Int("t", req.T),
		zap.String("n", log.Shorten(req.N, 8)),
	)
	return nil
}

// Run reads responses until the worker closes its output. It always returns an
// error: ErrWorkerExited if the worker went away while ctx is alive.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		var resp wire.Response
		err := b.dec.Decode(&resp)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case errors.Is(err, io.EOF):
			return ErrWorkerExited
		case err != nil:
			return fmt.Errorf("%w: %w", ErrWorkerExited, err)
		}
		b.handle(resp)
	}
}

func (b *Bridge) handle(resp wire.Response) {
	defer func() {
		b.busy.Store(false)
		inFlight.Set(0)
		if b.onIdle != nil {
			b.onIdle()
		}
	}()
	responses.WithLabelValues(string(resp.Kind)).Inc()
	if !b.busy.Load() {
		b.logger.Warn("response without request", zap.String("kind", string(resp.Kind)))
	}
	x, n, err := resp.Params()
	if err != nil {
		b.logger.Error("invalid response", zap.String("kind", string(resp.Kind)), zap.Error(err))
		return
	}
	logger := b.logger.With(
		log.ZShortBigInt("x", x),
		zap.Int("t", resp.T),
		log.ZShortBigInt("n", n),
	)
	switch resp.Kind {
	case wire.KindProgress:
		b.onProgress(logger, x, n, resp)
	case wire.KindComplete:
		b.onComplete(logger, x, n, resp)
	case wire.KindFailed:
		logger.Warn("worker rejected request, discarding job", zap.String("error", resp.Error))
		b.discard(x, n, resp.T)
	default:
		logger.Error("unknown response kind", zap.String("kind", string(resp.Kind)))
	}
}

func (b *Bridge) onProgress(logger *zap.Logger, x, n *big.Int, resp wire.Response) {
	job := &types.Job{
		X:            x,
		T:            resp.T,
		State:        resp.State,
		Step:         resp.Step,
		Steps:        resp.Steps,
		ElapsedNanos: resp.Elapsed,
	}
	if resp.Steps > 0 && resp.Step <= resp.Steps {
		job.Progress = float64(resp.Step) / float64(resp.Steps)
		if resp.Step > 0 {
			secondsPerStep := float64(resp.Elapsed) / 1e9 / float64(resp.Step)
			job.ETA = float64(resp.Steps-resp.Step) * secondsPerStep
		}
	}
	b.store.Mutate(func(s *types.State) {
		s.Pool(n, resp.T).Working = job
	})
	logger.Debug("progress",
		zap.Float64("progress", job.Progress),
		zap.Duration("eta", time.Duration(job.ETA*float64(time.Second))),
	)
}

func (b *Bridge) onComplete(logger *zap.Logger, x, n *big.Int, resp wire.Response) {
	sol, err := resp.Solution()
	if err != nil {
		logger.Error("invalid solution, discarding job", zap.Error(err))
		b.discard(x, n, resp.T)
		return
	}
	if b.verify != nil {
		if err := b.verify(sol.X, resp.T, n, sol.Y, sol.U); err != nil {
			verifyFailures.Inc()
			logger.Error("solution failed verification, discarding job", zap.Error(err))
			b.discard(x, n, resp.T)
			return
		}
	}
	var outcome string
	b.store.Mutate(func(s *types.State) {
		p := s.Pool(n, resp.T)
		if p.Working != nil && p.Working.X.Cmp(x) == 0 {
			p.Working = nil
		}
		switch _, dup := p.Find(x); {
		case dup:
			outcome = "duplicate"
		case p.Full(b.capacity):
			outcome = "full"
		default:
			outcome = "cached"
			p.Solved = append(p.Solved, sol)
		}
	})
	solutions.WithLabelValues(outcome).Inc()
	proofDuration.Observe(time.Duration(resp.Elapsed).Seconds())
	logger.Info("proof completed",
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Duration(resp.Elapsed)),
	)
}

// discard drops the job for x so that a fresh seed is started instead.
func (b *Bridge) discard(x, n *big.Int, t int) {
	b.store.Mutate(func(s *types.State) {
		if p, ok := s.Lookup(n, t); ok && p.Working != nil && p.Working.X.Cmp(x) == 0 {
			p.Working = nil
		}
	})
}
