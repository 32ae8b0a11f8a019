package state

import (
	"github.com/spacemeshos/vdfcache/metrics"
)

const subsystem = "state"

var (
	mutations = metrics.NewCounter(
		"mutations_total",
		subsystem,
		"number of state mutations by outcome",
		[]string{"outcome"},
	)
	version = metrics.NewGauge(
		"version",
		subsystem,
		"version of the last published state",
		[]string{},
	).WithLabelValues()
)
