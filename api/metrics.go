package api

import (
	metricsprom "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"

	"github.com/spacemeshos/vdfcache/metrics"
)

const subsystem = "api"

var (
	requests = metrics.NewCounter(
		"requests",
		subsystem,
		"number of served requests",
		[]string{"method", "status"},
	)
	consumed = metrics.NewCounter(
		"consumed",
		subsystem,
		"number of solutions deleted by consumers",
		[]string{},
	).WithLabelValues()
	streams = metrics.NewGauge(
		"event_streams",
		subsystem,
		"number of open event streams",
		[]string{},
	).WithLabelValues()
)

// routeMetrics records latency and response size per route template. The recorder
// registers with the default registry, so it is shared by all servers.
var routeMetrics = middleware.New(middleware.Config{
	Recorder: metricsprom.NewRecorder(metricsprom.Config{
		Prefix: metrics.Namespace + "_" + subsystem,
	}),
})
