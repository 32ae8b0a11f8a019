package state

import (
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spacemeshos/vdfcache/common/types"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnChange(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) get() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newStore(t *testing.T) (*Store, *recorder) {
	st := New(types.NewState(big.NewInt(7), 21), WithLogger(zaptest.NewLogger(t)))
	rec := &recorder{}
	st.Subscribe(rec)
	return st, rec
}

func TestMutateNotifiesOnChange(t *testing.T) {
	st, rec := newStore(t)

	changed := st.Mutate(func(s *types.State) {
		s.T = 30
	})
	require.True(t, changed)
	events := rec.get()
	require.Len(t, events, 1)
	require.Equal(t, uint64(1), events[0].Version)
	require.Equal(t, 30, events[0].State.T)
}

func TestMutateNoopIsSilent(t *testing.T) {
	st, rec := newStore(t)

	require.False(t, st.Mutate(func(s *types.State) {}))
	require.False(t, st.Mutate(func(s *types.State) { s.T = 21 }))
	require.False(t, st.Mutate(func(s *types.State) {
		if p, ok := s.Lookup(big.NewInt(7), 21); ok {
			p.Delete(big.NewInt(5))
		}
	}))
	require.Empty(t, rec.get())
}

func TestEventIsImmutableCopy(t *testing.T) {
	st, rec := newStore(t)
	st.Mutate(func(s *types.State) {
		s.Current().Solved = append(s.Current().Solved, types.Solution{
			X: big.NewInt(5), Y: big.NewInt(9), U: []*big.Int{big.NewInt(1)},
		})
	})
	ev := rec.get()[0]
	st.Mutate(func(s *types.State) {
		s.Current().Solved[0].Y.SetInt64(100)
	})
	require.Equal(t, "9", ev.State.Current().Solved[0].Y.String())
	require.Len(t, rec.get(), 2)
}

func TestMutatePanicLeavesStateIntact(t *testing.T) {
	st, rec := newStore(t)
	before := st.Snapshot()

	require.Panics(t, func() {
		st.Mutate(func(s *types.State) {
			s.T = 30
			panic("half applied")
		})
	})
	require.True(t, before.DeepEqual(st.Snapshot()))
	require.Empty(t, rec.get())

	require.True(t, st.Mutate(func(s *types.State) { s.T = 40 }))
	events := rec.get()
	require.Len(t, events, 1)
	require.Equal(t, uint64(1), events[0].Version)
}

func TestRefreshPublishesCurrentState(t *testing.T) {
	st, rec := newStore(t)
	st.Refresh()
	events := rec.get()
	require.Len(t, events, 1)
	require.True(t, events[0].State.DeepEqual(st.Snapshot()))
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	st, rec := newStore(t)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				st.Mutate(func(s *types.State) {
					p := s.Current()
					p.Solved = append(p.Solved, types.Solution{
						X: big.NewInt(int64(w*perWorker + i)),
						Y: big.NewInt(1),
					})
				})
			}
		}(w)
	}
	wg.Wait()

	var count int
	st.View(func(s *types.State) {
		count = len(s.Current().Solved)
	})
	require.Equal(t, workers*perWorker, count)

	events := rec.get()
	require.Len(t, events, workers*perWorker)
	for i, ev := range events {
		require.Equal(t, uint64(i+1), ev.Version, "events are delivered in order")
		require.Len(t, ev.State.Current().Solved, i+1)
	}
}
