package events

import "github.com/spacemeshos/vdfcache/metrics"

const subsystem = "events"

var (
	reported = metrics.NewCounter(
		"reported",
		subsystem,
		"number of statuses reported to observers",
		[]string{},
	).WithLabelValues()
	subscribers = metrics.NewGauge(
		"subscribers",
		subsystem,
		"number of connected observers",
		[]string{},
	).WithLabelValues()
)
