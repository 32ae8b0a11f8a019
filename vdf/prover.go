// Package vdf implements a resumable Pietrzak verifiable delay function over Z_n^*.
//
// For difficulty t the prover performs T = 2^t sequential squarings of x and outputs
// y = x^(2^T) mod n together with a proof u of t midpoints. The squaring phase yields
// the first midpoint for free; each following midpoint costs half of the previous one,
// so a proof takes T + T/2 - 1 steps in total.
package vdf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"
)

var (
	// ErrInterrupted is returned when the progress callback asked the prover to stop.
	ErrInterrupted = errors.New("vdf: interrupted")
	// ErrInvalidState is returned when a resume state cannot be used for the requested proof.
	ErrInvalidState = errors.New("vdf: invalid resume state")
	// ErrInvalidParams is returned for parameters no proof can be computed for.
	ErrInvalidParams = errors.New("vdf: invalid parameters")
	// ErrInvalidProof is returned by Verify.
	ErrInvalidProof = errors.New("vdf: invalid proof")
)

const (
	// MaxT is the largest supported difficulty.
	MaxT = 62
	// DefaultReportInterval is the number of steps between progress callbacks.
	DefaultReportInterval = 1 << 12
)

// ProgressFunc receives a resumable state after every report interval.
// Returning true stops the prover with ErrInterrupted; the state passed to the last
// call is the one to resume from.
type ProgressFunc func(state json.RawMessage, step, steps uint64) (stop bool)

// Steps returns the number of steps a proof of difficulty t takes.
func Steps(t int) uint64 {
	T := uint64(1) << t
	return T + T/2 - 1
}

// Opt configures the Prover.
type Opt func(*Prover)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(p *Prover) {
		p.logger = logger
	}
}

// WithReportInterval sets the number of steps between progress callbacks.
func WithReportInterval(steps uint64) Opt {
	return func(p *Prover) {
		if steps > 0 {
			p.interval = steps
		}
	}
}

// Prover computes proofs. It holds no per-proof state and can be reused.
type Prover struct {
	logger   *zap.Logger
	interval uint64
}

// NewProver creates a prover.
func NewProver(opts ...Opt) *Prover {
	p := &Prover{
		logger:   zap.NewNop(),
		interval: DefaultReportInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prove computes y and the proof u for seed x, difficulty t and modulus n. When resume
// is not empty the computation continues from a state previously passed to progress.
func (p *Prover) Prove(
	ctx context.Context,
	x *big.Int,
	t int,
	n *big.Int,
	progress ProgressFunc,
	resume json.RawMessage,
) (*big.Int, []*big.Int, error) {
	if err := checkParams(x, t, n); err != nil {
		return nil, nil, err
	}
	var (
		st  *proverState
		err error
	)
	if len(resume) > 0 {
		st, err = decodeState(resume, x, t, n)
		if err != nil {
			return nil, nil, err
		}
		p.logger.Debug("resuming proof",
			zap.Int("t", t),
			zap.Uint64("step", st.step),
			zap.Int("midpoints", len(st.mu)),
		)
	} else {
		st = newState(x, t, n)
	}

	steps := Steps(t)
	for !st.done() {
		st.advance(p.interval)
		if st.done() {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if progress != nil {
			raw, err := st.encode()
			if err != nil {
				return nil, nil, err
			}
			if progress(raw, st.step, steps) {
				return nil, nil, ErrInterrupted
			}
		}
	}
	return st.y, st.mu, nil
}

func checkParams(x *big.Int, t int, n *big.Int) error {
	switch {
	case n == nil || n.Cmp(big.NewInt(1)) <= 0:
		return fmt.Errorf("%w: modulus must be greater than 1", ErrInvalidParams)
	case x == nil || x.Sign() < 0:
		return fmt.Errorf("%w: seed must be a non-negative integer", ErrInvalidParams)
	case t < 1 || t > MaxT:
		return fmt.Errorf("%w: difficulty %d out of range [1, %d]", ErrInvalidParams, t, MaxT)
	}
	return nil
}

// proverState is the position of a proof computation.
//
// While step < T the prover squares x; acc = x^(2^step). Afterwards it runs one
// round per remaining midpoint: starting from the reduced statement (xi, yi) it
// squares acc = xi for T/2^round times to obtain the next midpoint.
type proverState struct {
	x, n *big.Int
	t    int

	step  uint64
	acc   *big.Int
	y     *big.Int
	xi    *big.Int
	yi    *big.Int
	mu    []*big.Int
	sq    uint64 // squarings done in the current round
	final bool
}

func newState(x *big.Int, t int, n *big.Int) *proverState {
	return &proverState{
		x:   x,
		n:   n,
		t:   t,
		acc: new(big.Int).Mod(x, n),
		mu:  make([]*big.Int, 0, t),
	}
}

func (s *proverState) bigT() uint64 {
	return uint64(1) << s.t
}

func (s *proverState) done() bool {
	return s.final
}

// advance runs at most limit steps.
func (s *proverState) advance(limit uint64) {
	T := s.bigT()
	for i := uint64(0); i < limit && !s.final; i++ {
		s.acc.Mul(s.acc, s.acc)
		s.acc.Mod(s.acc, s.n)
		s.step++
		if s.step <= T {
			if s.step == T/2 {
				s.mu = append(s.mu, new(big.Int).Set(s.acc))
			}
			if s.step == T {
				s.y = new(big.Int).Set(s.acc)
				s.xi, s.yi = reduce(new(big.Int).Mod(s.x, s.n), s.y, s.mu[0], s.n, 1)
				s.startRound()
			}
			continue
		}
		s.sq++
		if s.sq == T>>(len(s.mu)+1) {
			mu := new(big.Int).Set(s.acc)
			s.mu = append(s.mu, mu)
			s.xi, s.yi = reduce(s.xi, s.yi, mu, s.n, len(s.mu))
			s.startRound()
		}
	}
}

// startRound prepares the squaring of the next midpoint, or finishes the proof.
func (s *proverState) startRound() {
	if len(s.mu) == s.t {
		s.final = true
		return
	}
	s.acc = new(big.Int).Set(s.xi)
	s.sq = 0
}
