// Package events turns state changes into a status feed for external observers.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spacemeshos/vdfcache/common/types"
	"github.com/spacemeshos/vdfcache/state"
)

// Status is what observers see of the service.
type Status struct {
	Solved   int     `json:"solved"`
	N        string  `json:"n"`
	T        int     `json:"t"`
	Progress float64 `json:"progress"`
	// ETA in seconds. Zero when no job is running for the current parameters.
	ETA float64 `json:"eta"`
}

// StatusOf summarizes the current parameters of a state.
func StatusOf(s *types.State) Status {
	st := Status{N: s.N.String(), T: s.T}
	if p, ok := s.Lookup(s.N, s.T); ok {
		st.Solved = len(p.Solved)
		if p.Working != nil && p.Working.T == s.T {
			st.Progress = p.Working.Progress
			st.ETA = p.Working.ETA
		}
	}
	return st
}

// Subscription receives statuses until it is closed.
type Subscription struct {
	r  *Reporter
	ch chan Status
}

// Out returns the channel statuses are delivered on. It is closed by Close.
func (s *Subscription) Out() <-chan Status {
	return s.ch
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.r.remove(s)
}

// Reporter is a state subscriber that fans statuses out to any number of
// subscriptions. Delivery never blocks the store: a subscription that has not
// consumed the previous status gets it replaced by the newest one.
type Reporter struct {
	logger *zap.Logger

	mu   sync.Mutex
	last *Status
	subs map[*Subscription]struct{}
}

// Opt configures the Reporter.
type Opt func(*Reporter)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// NewReporter creates a reporter with no subscriptions.
func NewReporter(opts ...Opt) *Reporter {
	r := &Reporter{
		logger: zap.NewNop(),
		subs:   make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ state.Subscriber = (*Reporter)(nil)

// OnChange implements state.Subscriber.
func (r *Reporter) OnChange(ev state.Event) {
	r.Publish(StatusOf(ev.State))
}

// Publish delivers a status to every subscription.
func (r *Reporter) Publish(st Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last != nil && *r.last == st {
		return
	}
	r.last = &st
	for sub := range r.subs {
		deliver(sub.ch, st)
	}
	reported.Inc()
}

// Subscribe returns a subscription. The latest known status, if any, is
// delivered immediately.
func (r *Reporter) Subscribe() *Subscription {
	sub := &Subscription{r: r, ch: make(chan Status, 1)}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub] = struct{}{}
	if r.last != nil {
		sub.ch <- *r.last
	}
	subscribers.Set(float64(len(r.subs)))
	r.logger.Debug("observer subscribed", zap.Int("subscribers", len(r.subs)))
	return sub
}

// Last returns the most recent status.
func (r *Reporter) Last() (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Status{}, false
	}
	return *r.last, true
}

func (r *Reporter) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub]; !ok {
		return
	}
	delete(r.subs, sub)
	close(sub.ch)
	subscribers.Set(float64(len(r.subs)))
}

// deliver replaces a pending value in a channel of capacity one.
// Callers hold the reporter lock, so there is a single producer.
func deliver(ch chan Status, st Status) {
	for {
		select {
		case ch <- st:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
