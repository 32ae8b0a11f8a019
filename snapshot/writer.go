package snapshot

import (
	"context"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spacemeshos/vdfcache/state"
)

// Opt configures the Writer.
type Opt func(*Writer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(w *Writer) {
		w.logger = logger
	}
}

// Writer is a state subscriber that saves snapshots in the background.
//
// Events that arrive while a snapshot is being written are coalesced: only the
// newest one is written next. A failed write is retried with the next change and
// the pending snapshot is written when Run returns.
type Writer struct {
	logger *zap.Logger
	path   string
	base   *big.Int

	mu      sync.Mutex
	pending *state.Event
	written uint64

	wake chan struct{}
}

// NewWriter creates a writer for the snapshot at path.
func NewWriter(path string, base *big.Int, opts ...Opt) *Writer {
	w := &Writer{
		logger: zap.NewNop(),
		path:   path,
		base:   new(big.Int).Set(base),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

var _ state.Subscriber = (*Writer)(nil)

// OnChange implements state.Subscriber.
func (w *Writer) OnChange(ev state.Event) {
	w.mu.Lock()
	if w.pending == nil || ev.Version > w.pending.Version {
		w.pending = &ev
	}
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Written returns the version of the last snapshot on disk.
func (w *Writer) Written() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Run writes snapshots until ctx is canceled, then writes the pending one.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case <-w.wake:
			w.flush()
		}
	}
}

func (w *Writer) flush() {
	w.mu.Lock()
	ev := w.pending
	w.pending = nil
	written := w.written
	w.mu.Unlock()
	if ev == nil || ev.Version <= written {
		return
	}

	start := time.Now()
	err := Save(w.path, ev.State, w.base)
	saveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		saves.WithLabelValues("failed").Inc()
		w.logger.Error("failed to save snapshot", zap.Uint64("version", ev.Version), zap.Error(err))
		w.mu.Lock()
		if w.pending == nil {
			w.pending = ev
		}
		w.mu.Unlock()
		return
	}
	saves.WithLabelValues("ok").Inc()
	savedVersion.Set(float64(ev.Version))
	w.mu.Lock()
	w.written = ev.Version
	w.mu.Unlock()
	w.logger.Debug("snapshot saved", zap.Uint64("version", ev.Version))
}
