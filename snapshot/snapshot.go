// Package snapshot persists the state model to a single JSON file.
//
// A snapshot is always replaced as a whole: it is written to a temporary file that is
// then renamed over the previous one, so a reader observes either the old or the new
// snapshot. All big integers are decimal strings.
package snapshot

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/spacemeshos/vdfcache/common/types"
)

// Version of the snapshot layout.
const Version = 1

const schemaFile = "schema.json"

//go:embed schema.json
var Schema string

// ErrInvalid is returned for snapshots that do not describe a usable state.
var ErrInvalid = errors.New("invalid snapshot")

type file struct {
	Version int    `json:"version"`
	Base    string `json:"base"`
	T       int    `json:"t"`
	N       string `json:"n"`
	// Pools are keyed by modulus and difficulty.
	Pools map[string]map[int]pool `json:"pools"`
}

type pool struct {
	Working *job       `json:"working"`
	Solved  []solution `json:"solved"`
}

type job struct {
	X        string          `json:"x"`
	T        int             `json:"t"`
	State    json.RawMessage `json:"state,omitempty"`
	Step     uint64          `json:"step"`
	Steps    uint64          `json:"steps"`
	Elapsed  int64           `json:"elapsed"`
	Progress float64         `json:"progress"`
	ETA      float64         `json:"eta"`
}

type solution struct {
	X string   `json:"x"`
	Y string   `json:"y"`
	U []string `json:"u"`
}

// Encode renders a state. base is the compiled default modulus the state was
// derived from.
func Encode(s *types.State, base *big.Int) ([]byte, error) {
	f := file{
		Version: Version,
		Base:    base.String(),
		T:       s.T,
		N:       s.N.String(),
		Pools:   make(map[string]map[int]pool, len(s.Pools)),
	}
	for n, byT := range s.Pools {
		pools := make(map[int]pool, len(byT))
		for t, p := range byT {
			pools[t] = encodePool(p)
		}
		f.Pools[n] = pools
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func encodePool(p *types.Pool) pool {
	out := pool{Solved: make([]solution, 0, len(p.Solved))}
	if w := p.Working; w != nil {
		out.Working = &job{
			X:        w.X.String(),
			T:        w.T,
			State:    w.State,
			Step:     w.Step,
			Steps:    w.Steps,
			Elapsed:  w.ElapsedNanos,
			Progress: w.Progress,
			ETA:      w.ETA,
		}
	}
	for _, s := range p.Solved {
		out.Solved = append(out.Solved, solution{
			X: s.X.String(),
			Y: s.Y.String(),
			U: types.Decimals(s.U),
		})
	}
	return out
}

// Decode parses and validates a snapshot. It returns the state and the base modulus
// recorded in it.
func Decode(data []byte) (*types.State, *big.Int, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	base, err := types.ParseDecimal(f.Base)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: base: %w", ErrInvalid, err)
	}
	n, err := types.ParseDecimal(f.N)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: n: %w", ErrInvalid, err)
	}
	if !types.ValidN(n) || !types.ValidT(f.T) {
		return nil, nil, fmt.Errorf("%w: parameters out of range", ErrInvalid)
	}
	s := types.NewState(n, f.T)
	for key, byT := range f.Pools {
		modulus, err := types.ParseDecimal(key)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: pool key: %w", ErrInvalid, err)
		}
		for t, encoded := range byT {
			p, err := decodePool(encoded)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: pool %s/%d: %w", ErrInvalid, key, t, err)
			}
			*s.Pool(modulus, t) = *p
		}
	}
	return s, base, nil
}

func decodePool(in pool) (*types.Pool, error) {
	out := &types.Pool{Solved: make([]types.Solution, 0, len(in.Solved))}
	if w := in.Working; w != nil {
		x, err := types.ParseDecimal(w.X)
		if err != nil {
			return nil, fmt.Errorf("working: %w", err)
		}
		job := &types.Job{
			X:            x,
			T:            w.T,
			Step:         w.Step,
			Steps:        w.Steps,
			ElapsedNanos: w.Elapsed,
			Progress:     w.Progress,
			ETA:          w.ETA,
		}
		if len(w.State) > 0 && !bytes.Equal(w.State, []byte("null")) {
			var buf bytes.Buffer
			if err := json.Compact(&buf, w.State); err != nil {
				return nil, fmt.Errorf("working state: %w", err)
			}
			job.State = buf.Bytes()
		}
		out.Working = job
	}
	for i, s := range in.Solved {
		x, err := types.ParseDecimal(s.X)
		if err != nil {
			return nil, fmt.Errorf("solution %d: %w", i, err)
		}
		if _, ok := out.Find(x); ok {
			return nil, fmt.Errorf("solution %d: duplicate seed", i)
		}
		y, err := types.ParseDecimal(s.Y)
		if err != nil {
			return nil, fmt.Errorf("solution %d: %w", i, err)
		}
		u, err := types.ParseDecimals(s.U)
		if err != nil {
			return nil, fmt.Errorf("solution %d: %w", i, err)
		}
		out.Solved = append(out.Solved, types.Solution{X: x, Y: y, U: u})
	}
	return out, nil
}

// ValidateSchema checks data against the snapshot schema.
func ValidateSchema(data []byte) error {
	sch, err := jsonschema.CompileString(schemaFile, Schema)
	if err != nil {
		return fmt.Errorf("compile snapshot json schema: %w", err)
	}
	var v any
	if err = json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal snapshot data: %w", err)
	}
	if err = sch.Validate(v); err != nil {
		return fmt.Errorf("validate snapshot data: %w", err)
	}
	return nil
}
