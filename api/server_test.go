package api

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spacemeshos/vdfcache/common/types"
	"github.com/spacemeshos/vdfcache/events"
	"github.com/spacemeshos/vdfcache/state"
)

const testOrigin = "http://localhost:3000"

type testServer struct {
	*Server
	store    *state.Store
	reporter *events.Reporter
}

func newTestServer(t *testing.T, initial *types.State) *testServer {
	t.Helper()
	store := state.New(initial)
	reporter := events.NewReporter()
	store.Subscribe(reporter)
	srv, err := NewServer(Config{Listen: "127.0.0.1:0", Origin: testOrigin}, store, reporter,
		WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { srv.lis.Close() })
	return &testServer{Server: srv, store: store, reporter: reporter}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func addSolution(store *state.Store, n int64, difficulty int, x, y int64, u ...int64) {
	store.Mutate(func(s *types.State) {
		p := s.Pool(big.NewInt(n), difficulty)
		sol := types.Solution{X: big.NewInt(x), Y: big.NewInt(y), U: []*big.Int{}}
		for _, v := range u {
			sol.U = append(sol.U, big.NewInt(v))
		}
		p.Solved = append(p.Solved, sol)
	})
}

func TestConsumeScenario(t *testing.T) {
	ts := newTestServer(t, types.NewState(big.NewInt(7), 21))
	addSolution(ts.store, 7, 21, 5, 9, 1, 2)

	rec := ts.do(t, http.MethodGet, "/vdf/7/21/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"n":"7","t":"21","x":"5","y":"9","u":["1","2"]}`, rec.Body.String())

	rec = ts.do(t, http.MethodDelete, "/vdf/7/21/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{}`, rec.Body.String())
	after := ts.store.Snapshot()

	rec = ts.do(t, http.MethodGet, "/vdf/7/21/5", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/vdf/7/21/5", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.True(t, after.DeepEqual(ts.store.Snapshot()))
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t, types.NewState(big.NewInt(7), 21))
	rec := ts.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"solved":0,"n":"7","t":21}`, rec.Body.String())

	addSolution(ts.store, 7, 21, 5, 9)
	addSolution(ts.store, 7, 21, 6, 9)
	addSolution(ts.store, 7, 30, 8, 9)
	rec = ts.do(t, http.MethodGet, "/status", "")
	require.JSONEq(t, `{"solved":2,"n":"7","t":21}`, rec.Body.String())
}

func TestListSolutions(t *testing.T) {
	ts := newTestServer(t, types.NewState(big.NewInt(7), 21))
	addSolution(ts.store, 7, 21, 5, 9, 1)
	addSolution(ts.store, 7, 30, 6, 4)
	addSolution(ts.store, 11, 21, 3, 2)

	rec := ts.do(t, http.MethodGet, "/vdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{
		"7": {
			"21": {"5": {"n":"7","t":"21","x":"5","y":"9","u":["1"]}},
			"30": {"6": {"n":"7","t":"30","x":"6","y":"4","u":[]}}
		},
		"11": {
			"21": {"3": {"n":"11","t":"21","x":"3","y":"2","u":[]}}
		}
	}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/vdf/11", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"21": {"3": {"n":"11","t":"21","x":"3","y":"2","u":[]}}}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/vdf/0x7/30", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"6": {"n":"7","t":"30","x":"6","y":"4","u":[]}}`, rec.Body.String())

	for _, path := range []string{"/vdf/8", "/vdf/7/22", "/vdf/seven", "/vdf/7/x", "/vdf/7/21/6", "/vdf/7/21/abc"} {
		rec = ts.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestSolutionByPosition(t *testing.T) {
	ts := newTestServer(t, types.NewState(big.NewInt(7), 21))
	addSolution(ts.store, 7, 21, 500, 1)
	addSolution(ts.store, 7, 21, 1, 2)
	addSolution(ts.store, 7, 21, 600, 3)

	// seed 1 exists, so it wins over position 1
	rec := ts.do(t, http.MethodGet, "/vdf/7/21/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"n":"7","t":"21","x":"1","y":"2","u":[]}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/vdf/7/21/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"n":"7","t":"21","x":"500","y":"1","u":[]}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/vdf/7/21/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"n":"7","t":"21","x":"600","y":"3","u":[]}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/vdf/7/21/3", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateDifficulty(t *testing.T) {
	ts := newTestServer(t, types.NewState(big.NewInt(7), 21))

	for _, body := range []string{`10`, `50`, `"10"`, `9`, `51`, `-1`, `21.5`, `"abc"`, ``, `{}`, `[21]`, `21 22`} {
		before := ts.store.Snapshot()
		rec := ts.do(t, http.MethodPost, "/t", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.True(t, before.DeepEqual(ts.store.Snapshot()), body)
	}

	for body, expected := range map[string]int{`11`: 11, `49`: 49, `"30"`: 30, ` 25 `: 25} {
		rec := ts.do(t, http.MethodPost, "/t", body)
		require.Equal(t, http.StatusOK, rec.Code, body)
		rec = ts.do(t, http.MethodGet, "/t", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, strconv.Itoa(expected), rec.Body.String())
	}
}

func TestUpdateModulus(t *testing.T) {
	ts := newTestServer(t, types.NewState(big.NewInt(7), 21))

	for _, body := range []string{`1`, `0`, `-7`, `"abc"`, `"0x"`, `7.5`, `true`, `null`} {
		before := ts.store.Snapshot()
		rec := ts.do(t, http.MethodPost, "/n", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.True(t, before.DeepEqual(ts.store.Snapshot()), body)
	}

	rec := ts.do(t, http.MethodPost, "/n", `"0x10"`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/n", "")
	require.JSONEq(t, `"16"`, rec.Body.String())

	huge := types.DefaultModulus().String()
	rec = ts.do(t, http.MethodPost, "/n", huge)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/n", "")
	require.JSONEq(t, `"`+huge+`"`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/status", "")
	require.JSONEq(t, `{"solved":0,"n":"`+huge+`","t":21}`, rec.Body.String())
}

func TestOriginCheck(t *testing.T) {
	ts := newTestServer(t, types.NewState(big.NewInt(7), 21))

	rec := ts.do(t, http.MethodGet, "/status", "", "Origin", "http://evil.example")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	before := ts.store.Snapshot()
	rec = ts.do(t, http.MethodPost, "/t", "30", "Origin", "http://evil.example")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.True(t, before.DeepEqual(ts.store.Snapshot()))

	rec = ts.do(t, http.MethodGet, "/status", "", "Origin", testOrigin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = ts.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = ts.do(t, http.MethodOptions, "/vdf/7/21/5", "",
		"Origin", testOrigin,
		"Access-Control-Request-Method", http.MethodDelete,
	)
	require.Less(t, rec.Code, 300)
	require.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}

func TestLoopbackOnly(t *testing.T) {
	for _, addr := range []string{"0.0.0.0:0", ":0", "10.0.0.1:3000", "example.com:3000", "3000"} {
		_, err := NewServer(Config{Listen: addr, Origin: testOrigin}, state.New(types.DefaultState()), nil)
		require.Error(t, err, addr)
	}
	for _, addr := range []string{"127.0.0.1:3000", "[::1]:3000", "localhost:3000"} {
		require.NoError(t, ValidateLoopback(addr), addr)
	}
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t, types.NewState(big.NewInt(7), 21))
	ts.store.Refresh()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	url := "ws://" + ts.Addr().String() + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{testOrigin}})
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var st events.Status
	require.NoError(t, conn.ReadJSON(&st))
	require.Equal(t, events.Status{N: "7", T: 21}, st)

	ts.store.Mutate(func(s *types.State) {
		s.Current().Working = &types.Job{X: big.NewInt(5), T: 21, Progress: 0.5, ETA: 10}
	})
	require.NoError(t, conn.ReadJSON(&st))
	require.Equal(t, events.Status{N: "7", T: 21, Progress: 0.5, ETA: 10}, st)

	_, _, err = websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
}
