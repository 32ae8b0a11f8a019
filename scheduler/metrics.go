package scheduler

import "github.com/spacemeshos/vdfcache/metrics"

const subsystem = "scheduler"

var evaluations = metrics.NewCounter(
	"evaluations",
	subsystem,
	"number of scheduling decisions by outcome",
	[]string{"outcome"},
)
