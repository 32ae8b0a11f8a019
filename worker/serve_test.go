package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/spacemeshos/vdfcache/vdf"
	"github.com/spacemeshos/vdfcache/worker/wire"
)

func encodeRequests(t *testing.T, reqs ...wire.Request) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf)
	for _, req := range reqs {
		require.NoError(t, enc.Encode(req))
	}
	return &buf
}

func decodeResponses(t *testing.T, buf *bytes.Buffer) []wire.Response {
	t.Helper()
	var out []wire.Response
	dec := wire.NewDecoder(buf)
	for {
		var resp wire.Response
		err := dec.Decode(&resp)
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, resp)
	}
}

func TestServeSlices(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := NewMockEngine(ctrl)
	clock := clockwork.NewFakeClock()
	opts := []ServeOpt{WithServeLogger(zaptest.NewLogger(t)), WithClock(clock)}

	engine.EXPECT().
		Prove(gomock.Any(), big.NewInt(5), 21, big.NewInt(7), gomock.Any(), gomock.Nil()).
		DoAndReturn(func(
			_ context.Context, _ *big.Int, _ int, _ *big.Int, progress vdf.ProgressFunc, _ json.RawMessage,
		) (*big.Int, []*big.Int, error) {
			for i := uint64(1); ; i++ {
				clock.Advance(2 * time.Second)
				if progress(json.RawMessage(`{"i":`+strings.Repeat("1", int(i))+`}`), i*10, 100) {
					return nil, nil, vdf.ErrInterrupted
				}
			}
		})

	var out bytes.Buffer
	in := encodeRequests(t, wire.NewStart(big.NewInt(5), 21, big.NewInt(7)))
	require.NoError(t, Serve(context.Background(), engine, in, &out, opts...))

	responses := decodeResponses(t, &out)
	require.Len(t, responses, 1)
	progress := responses[0]
	require.Equal(t, wire.KindProgress, progress.Kind)
	require.Equal(t, "5", progress.X)
	require.Equal(t, 21, progress.T)
	require.Equal(t, "7", progress.N)
	require.EqualValues(t, 30, progress.Step)
	require.EqualValues(t, 100, progress.Steps)
	require.Equal(t, int64(6*time.Second), progress.Elapsed)

	var st sliceState
	require.NoError(t, json.Unmarshal(progress.State, &st))
	require.JSONEq(t, `{"i":111}`, string(st.Engine))
	require.Equal(t, int64(6*time.Second), st.Elapsed)

	engine.EXPECT().
		Prove(gomock.Any(), big.NewInt(5), 21, big.NewInt(7), gomock.Any(), gomock.Any()).
		DoAndReturn(func(
			_ context.Context, _ *big.Int, _ int, _ *big.Int, _ vdf.ProgressFunc, resume json.RawMessage,
		) (*big.Int, []*big.Int, error) {
			require.JSONEq(t, `{"i":111}`, string(resume))
			clock.Advance(time.Second)
			return big.NewInt(9), []*big.Int{big.NewInt(1), big.NewInt(2)}, nil
		})

	out.Reset()
	in = encodeRequests(t, wire.NewResume(big.NewInt(5), 21, big.NewInt(7), progress.State))
	require.NoError(t, Serve(context.Background(), engine, in, &out, opts...))

	responses = decodeResponses(t, &out)
	require.Len(t, responses, 1)
	complete := responses[0]
	require.Equal(t, wire.KindComplete, complete.Kind)
	require.Equal(t, "9", complete.Y)
	require.Equal(t, []string{"1", "2"}, complete.U)
	require.Equal(t, int64(7*time.Second), complete.Elapsed)
}

func TestServeRejectsUnreadableState(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := NewMockEngine(ctrl)
	engine.EXPECT().
		Prove(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil, vdf.ErrInvalidState)

	var out bytes.Buffer
	in := encodeRequests(t,
		wire.NewResume(big.NewInt(5), 21, big.NewInt(7), json.RawMessage(`"not a state"`)),
		wire.NewResume(big.NewInt(5), 21, big.NewInt(7), json.RawMessage(`{"engine":{"v":9},"elapsed":1}`)),
		wire.Request{Kind: "unknown", X: "5", T: 21, N: "7"},
		wire.Request{Kind: wire.KindStart, X: "five", T: 21, N: "7"},
	)
	require.NoError(t, Serve(context.Background(), engine, in, &out, WithServeLogger(zaptest.NewLogger(t))))

	responses := decodeResponses(t, &out)
	require.Len(t, responses, 4)
	for _, resp := range responses {
		require.Equal(t, wire.KindFailed, resp.Kind)
		require.NotEmpty(t, resp.Error)
	}
}

func TestServeWithProver(t *testing.T) {
	n := big.NewInt(1000003 * 999983)
	prover := vdf.NewProver(vdf.WithReportInterval(1))
	clock := clockwork.NewFakeClock()

	// the fake clock never advances, so the slice ends only with the proof
	var out bytes.Buffer
	in := encodeRequests(t, wire.NewStart(big.NewInt(1234), 6, n))
	require.NoError(t, Serve(context.Background(), prover, in, &out, WithClock(clock)))

	responses := decodeResponses(t, &out)
	require.Len(t, responses, 1)
	sol, err := responses[0].Solution()
	require.NoError(t, err)
	require.NoError(t, vdf.Verify(sol.X, 6, n, sol.Y, sol.U))
}
