package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPushMetricsRetries(t *testing.T) {
	var calls, pushed atomic.Int32
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/metrics/job/vdfcache/instance/abcd") {
			pushed.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	testCounter.WithLabelValues("push").Inc()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		PushMetrics(ctx, zaptest.NewLogger(t), gateway.URL, 20*time.Millisecond, "abcd")
	}()

	require.Eventually(t, func() bool { return pushed.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
