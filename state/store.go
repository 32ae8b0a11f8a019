// Package state holds the canonical in-memory model of the service.
//
// Every read and write goes through the Store. A write is applied to a copy of the
// owned state, compared with it and, if and only if something changed, published to
// all subscribers as an immutable deep copy.
package state

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spacemeshos/vdfcache/common/types"
)

// Event is published after every mutation that changed the state.
type Event struct {
	// Version increases by one with every published event.
	Version uint64
	// State is a deep copy owned by nobody. Subscribers must not modify it.
	State *types.State
}

// Subscriber receives change events synchronously, in version order.
// Implementations must return quickly and must not call back into the Store.
type Subscriber interface {
	OnChange(Event)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(Event)

func (f SubscriberFunc) OnChange(ev Event) { f(ev) }

// Opt configures the Store.
type Opt func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is the single owner of the state model.
type Store struct {
	logger *zap.Logger

	mu      sync.Mutex // serializes mutations and reads.
	state   *types.State
	version uint64

	// notifyMu is taken before mu is released so that events reach subscribers in
	// the order they were produced.
	notifyMu    sync.Mutex
	subscribers []Subscriber
}

// New returns a store that owns a copy of the initial state.
func New(initial *types.State, opts ...Opt) *Store {
	s := &Store{
		logger: zap.NewNop(),
		state:  initial.Clone(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a subscriber. All subscribers are expected to be registered
// before the first mutation.
func (s *Store) Subscribe(sub Subscriber) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// Mutate applies fn to a private copy of the state and reports whether it changed
// anything. The copy replaces the state only if it differs. fn must not retain
// references into the copy after it returns.
func (s *Store) Mutate(fn func(*types.State)) bool {
	ev, changed := s.apply(fn)
	if !changed {
		mutations.WithLabelValues("unchanged").Inc()
		return false
	}
	defer s.notifyMu.Unlock()

	mutations.WithLabelValues("changed").Inc()
	version.Set(float64(ev.Version))
	s.publish(ev)
	return true
}

// apply returns with notifyMu held when the state changed, so that events are
// published in version order.
func (s *Store) apply(fn func(*types.State)) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.Clone()
	fn(next)
	if next.DeepEqual(s.state) {
		return Event{}, false
	}
	s.state = next
	s.version++
	s.notifyMu.Lock()
	return Event{Version: s.version, State: next.Clone()}, true
}

// View gives fn read access to the state. fn must not modify it or retain references.
func (s *Store) View(fn func(*types.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *types.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Refresh publishes the current state even though nothing changed. It is used once at
// startup so that subscribers observe the initial state.
func (s *Store) Refresh() {
	s.mu.Lock()
	s.version++
	ev := Event{Version: s.version, State: s.state.Clone()}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	s.publish(ev)
}

func (s *Store) publish(ev Event) {
	s.logger.Debug("state changed", zap.Uint64("version", ev.Version))
	for _, sub := range s.subscribers {
		sub.OnChange(ev)
	}
}
