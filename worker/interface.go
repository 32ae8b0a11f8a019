package worker

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/spacemeshos/vdfcache/vdf"
)

//go:generate mockgen -typed -package=worker -destination=./mocks.go -source=./interface.go

// Engine computes proofs inside the worker process.
type Engine interface {
	Prove(
		ctx context.Context,
		x *big.Int,
		t int,
		n *big.Int,
		progress vdf.ProgressFunc,
		resume json.RawMessage,
	) (*big.Int, []*big.Int, error)
}

var _ Engine = (*vdf.Prover)(nil)
