package node

import "github.com/spacemeshos/vdfcache/metrics"

const subsystem = "node"

var (
	version = metrics.NewGauge(
		"version",
		subsystem,
		"Running version of vdfcache",
		[]string{"version"},
	)
	startups = metrics.NewCounter(
		"startups",
		subsystem,
		"Number of starts by how the state was obtained",
		[]string{"snapshot"},
	)
)
