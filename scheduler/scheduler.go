// Package scheduler decides what the worker computes next.
package scheduler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"go.uber.org/zap"

	"github.com/spacemeshos/vdfcache/common/types"
	"github.com/spacemeshos/vdfcache/log"
	"github.com/spacemeshos/vdfcache/state"
	"github.com/spacemeshos/vdfcache/worker"
	"github.com/spacemeshos/vdfcache/worker/wire"
)

// SeedBytes is the size of a random seed.
const SeedBytes = 32

// Opt configures the Scheduler.
type Opt func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithCapacity sets the number of solutions after which a pool stops growing.
// It is clamped to [1, types.Capacity].
func WithCapacity(capacity int) Opt {
	return func(s *Scheduler) {
		s.capacity = max(1, min(capacity, types.Capacity))
	}
}

// WithRandom sets the source of seeds.
func WithRandom(r io.Reader) Opt {
	return func(s *Scheduler) {
		s.rand = r
	}
}

// Scheduler keeps the worker busy with the pool of the current parameters.
//
// It evaluates once when started and again after every state change or wake-up:
// a parked job for the current parameters is resumed, otherwise a fresh seed is
// started while the pool has room. Evaluations run on a single goroutine.
type Scheduler struct {
	logger     *zap.Logger
	store      *state.Store
	dispatcher Dispatcher
	capacity   int
	rand       io.Reader

	kick chan struct{}
}

// New creates a scheduler.
func New(store *state.Store, dispatcher Dispatcher, opts ...Opt) *Scheduler {
	s := &Scheduler{
		logger:     zap.NewNop(),
		store:      store,
		dispatcher: dispatcher,
		capacity:   types.Capacity,
		rand:       rand.Reader,
		kick:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ state.Subscriber = (*Scheduler)(nil)

// OnChange implements state.Subscriber.
func (s *Scheduler) OnChange(state.Event) {
	s.Wake()
}

// Wake requests an evaluation. It never blocks.
func (s *Scheduler) Wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run evaluates until ctx is canceled or the worker cannot be reached.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := s.evaluate(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.kick:
		}
	}
}

func (s *Scheduler) evaluate() error {
	if s.dispatcher.Busy() {
		evaluations.WithLabelValues("busy").Inc()
		return nil
	}
	var (
		req     wire.Request
		seedErr error
	)
	s.store.Mutate(func(st *types.State) {
		if p, ok := st.Lookup(st.N, st.T); ok {
			if job := p.Working; job != nil && job.T == st.T {
				if len(job.State) == 0 {
					// no progress was reported before the restart
					req = wire.NewStart(job.X, st.T, st.N)
				} else {
					req = wire.NewResume(job.X, st.T, st.N, job.State)
				}
				return
			}
			if p.Full(s.capacity) {
				return
			}
		}
		seed, err := s.seed()
		if err != nil {
			seedErr = err
			return
		}
		st.Pool(st.N, st.T).Working = &types.Job{X: seed, T: st.T}
		req = wire.NewStart(seed, st.T, st.N)
	})
	if seedErr != nil {
		return seedErr
	}
	if req.Kind == "" {
		evaluations.WithLabelValues("full").Inc()
		s.logger.Debug("pool is full, idling")
		return nil
	}

	err := s.dispatcher.Dispatch(req)
	switch {
	case errors.Is(err, worker.ErrBusy):
		evaluations.WithLabelValues("busy").Inc()
		return nil
	case err != nil:
		return fmt.Errorf("dispatch %s: %w", req.Kind, err)
	}
	evaluations.WithLabelValues(string(req.Kind)).Inc()
	s.logger.Info("job dispatched",
		zap.String("kind", string(req.Kind)),
		zap.String("x", log.Shorten(req.X, 8)),
		zap.Int("t", req.T),
		zap.String("n", log.Shorten(req.N, 8)),
	)
	return nil
}

// seed draws a uniformly random 256-bit integer.
func (s *Scheduler) seed() (*big.Int, error) {
	buf := make([]byte, SeedBytes)
	if _, err := io.ReadFull(s.rand, buf); err != nil {
		return nil, fmt.Errorf("draw seed: %w", err)
	}
	return new(big.Int).SetBytes(buf), nil
}
