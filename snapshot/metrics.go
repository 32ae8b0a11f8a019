package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/vdfcache/metrics"
)

const subsystem = "snapshot"

var (
	saves = metrics.NewCounter(
		"saves",
		subsystem,
		"number of snapshot writes by result",
		[]string{"result"},
	)
	saveDuration = metrics.NewHistogramWithBuckets(
		"save_duration_seconds",
		subsystem,
		"time to write a snapshot",
		[]string{},
		prometheus.ExponentialBuckets(0.0005, 4, 10),
	).WithLabelValues()
	savedVersion = metrics.NewGauge(
		"saved_version",
		subsystem,
		"state version of the last snapshot on disk",
		[]string{},
	).WithLabelValues()
)
