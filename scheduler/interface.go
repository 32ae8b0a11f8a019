package scheduler

import "github.com/spacemeshos/vdfcache/worker/wire"

//go:generate mockgen -typed -package=scheduler -destination=./mocks.go -source=./interface.go

// Dispatcher sends requests to the worker. It holds at most one request in flight.
type Dispatcher interface {
	Busy() bool
	Dispatch(req wire.Request) error
}
