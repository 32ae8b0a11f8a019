package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spacemeshos/vdfcache/common/types"
	"github.com/spacemeshos/vdfcache/vdf"
	"github.com/spacemeshos/vdfcache/worker/wire"
)

// DefaultSlice is how long the worker computes before it reports progress.
const DefaultSlice = 5 * time.Second

// sliceState is the opaque state handed to the service. It carries the engine state
// and the computation time spent on the proof so far.
type sliceState struct {
	Engine  json.RawMessage `json:"engine"`
	Elapsed int64           `json:"elapsed"`
}

// ServeOpt configures Serve.
type ServeOpt func(*server)

// WithServeLogger sets the logger of the worker process.
func WithServeLogger(logger *zap.Logger) ServeOpt {
	return func(s *server) {
		s.logger = logger
	}
}

// WithClock sets the clock used to measure time slices.
func WithClock(clock clockwork.Clock) ServeOpt {
	return func(s *server) {
		s.clock = clock
	}
}

// WithSlice sets the duration of a time slice.
func WithSlice(slice time.Duration) ServeOpt {
	return func(s *server) {
		if slice > 0 {
			s.slice = slice
		}
	}
}

type server struct {
	logger *zap.Logger
	clock  clockwork.Clock
	slice  time.Duration
	engine Engine
	enc    *wire.Encoder
}

// Serve is the worker process side of the protocol. It answers every request read
// from r with exactly one response on w: the proof if it finished within one time
// slice, or a progress report to resume from otherwise.
// It returns nil when r is closed.
func Serve(ctx context.Context, engine Engine, r io.Reader, w io.Writer, opts ...ServeOpt) error {
	s := &server{
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
		slice:  DefaultSlice,
		engine: engine,
		enc:    wire.NewEncoder(w),
	}
	for _, opt := range opts {
		opt(s)
	}
	dec := wire.NewDecoder(r)
	for {
		var req wire.Request
		err := dec.Decode(&req)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		resp, err := s.handle(ctx, req)
		if err != nil {
			return err
		}
		if err := s.enc.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *server) handle(ctx context.Context, req wire.Request) (*wire.Response, error) {
	resp := &wire.Response{X: req.X, T: req.T, N: req.N}
	failed := func(err error) (*wire.Response, error) {
		s.logger.Warn("request failed", zap.String("kind", string(req.Kind)), zap.Error(err))
		resp.Kind = wire.KindFailed
		resp.Error = err.Error()
		return resp, nil
	}

	x, n, err := req.Params()
	if err != nil {
		return failed(err)
	}
	var prev sliceState
	switch req.Kind {
	case wire.KindStart:
	case wire.KindResume:
		if err := json.Unmarshal(req.State, &prev); err != nil {
			return failed(fmt.Errorf("read resume state: %w", err))
		}
		if len(prev.Engine) == 0 || prev.Elapsed < 0 {
			return failed(errors.New("read resume state: incomplete"))
		}
	default:
		return failed(fmt.Errorf("unknown request kind %q", req.Kind))
	}

	var (
		start = s.clock.Now()
		last  sliceState
	)
	y, u, err := s.engine.Prove(ctx, x, req.T, n, func(state json.RawMessage, step, steps uint64) bool {
		last.Engine = state
		resp.Step, resp.Steps = step, steps
		return s.clock.Since(start) >= s.slice
	}, prev.Engine)
	elapsed := prev.Elapsed + int64(s.clock.Since(start))
	resp.Elapsed = elapsed

	switch {
	case err == nil:
		resp.Kind = wire.KindComplete
		resp.Y = y.String()
		resp.U = types.Decimals(u)
		resp.Step, resp.Steps = 0, 0
		s.logger.Info("proof completed",
			zap.Int("t", req.T),
			zap.Duration("elapsed", time.Duration(elapsed)),
		)
		return resp, nil
	case errors.Is(err, vdf.ErrInterrupted):
		last.Elapsed = elapsed
		state, err := json.Marshal(last)
		if err != nil {
			return nil, fmt.Errorf("encode slice state: %w", err)
		}
		resp.Kind = wire.KindProgress
		resp.State = state
		return resp, nil
	case errors.Is(err, vdf.ErrInvalidState), errors.Is(err, vdf.ErrInvalidParams):
		return failed(err)
	default:
		return nil, err
	}
}
