package events

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spacemeshos/vdfcache/common/types"
	"github.com/spacemeshos/vdfcache/state"
)

func TestStatusOf(t *testing.T) {
	s := types.NewState(big.NewInt(7), 21)
	require.Equal(t, Status{N: "7", T: 21}, StatusOf(s))

	p := s.Current()
	p.Solved = append(p.Solved, types.Solution{X: big.NewInt(5), Y: big.NewInt(4)})
	p.Working = &types.Job{X: big.NewInt(6), T: 21, Progress: 0.5, ETA: 3}
	require.Equal(t, Status{Solved: 1, N: "7", T: 21, Progress: 0.5, ETA: 3}, StatusOf(s))

	p.Working.T = 30
	require.Equal(t, Status{Solved: 1, N: "7", T: 21}, StatusOf(s))
}

func TestReporterLatestWins(t *testing.T) {
	r := NewReporter(WithLogger(zaptest.NewLogger(t)))
	sub := r.Subscribe()
	defer sub.Close()

	for i := 1; i <= 5; i++ {
		r.Publish(Status{Solved: i, N: "7", T: 21})
	}
	got := <-sub.Out()
	require.Equal(t, 5, got.Solved)
	select {
	case st := <-sub.Out():
		t.Fatalf("unexpected status %v", st)
	default:
	}
}

func TestReporterSubscribeReceivesLast(t *testing.T) {
	r := NewReporter()
	r.OnChange(state.Event{Version: 1, State: types.NewState(big.NewInt(11), 25)})

	sub := r.Subscribe()
	got := <-sub.Out()
	require.Equal(t, Status{N: "11", T: 25}, got)

	last, ok := r.Last()
	require.True(t, ok)
	require.Equal(t, got, last)
}

func TestReporterClose(t *testing.T) {
	r := NewReporter()
	sub := r.Subscribe()
	sub.Close()
	sub.Close()

	_, ok := <-sub.Out()
	require.False(t, ok)
	r.Publish(Status{Solved: 1})
}

func TestReporterSkipsDuplicates(t *testing.T) {
	r := NewReporter()
	sub := r.Subscribe()
	defer sub.Close()

	r.Publish(Status{Solved: 1})
	<-sub.Out()
	r.Publish(Status{Solved: 1})
	select {
	case st := <-sub.Out():
		t.Fatalf("unexpected status %v", st)
	default:
	}
}
