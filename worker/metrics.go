package worker

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/vdfcache/metrics"
)

const subsystem = "worker"

var (
	requests = metrics.NewCounter(
		"requests",
		subsystem,
		"number of requests dispatched to the worker",
		[]string{"kind"},
	)
	responses = metrics.NewCounter(
		"responses",
		subsystem,
		"number of responses received from the worker",
		[]string{"kind"},
	)
	solutions = metrics.NewCounter(
		"solutions",
		subsystem,
		"completed proofs by what happened to them",
		[]string{"outcome"},
	)
	verifyFailures = metrics.NewCounter(
		"verify_failures",
		subsystem,
		"number of completed proofs that failed verification",
		[]string{},
	).WithLabelValues()
	inFlight = metrics.NewGauge(
		"in_flight",
		subsystem,
		"1 while a request is outstanding",
		[]string{},
	).WithLabelValues()
	proofDuration = metrics.NewHistogramWithBuckets(
		"proof_duration_seconds",
		subsystem,
		"computation time of completed proofs",
		[]string{},
		prometheus.ExponentialBuckets(1, 4, 12),
	).WithLabelValues()
)
