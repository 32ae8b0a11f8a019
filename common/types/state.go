package types

import (
	"bytes"
	"encoding/json"
	"math/big"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const (
	// DefaultT is the difficulty targeted by a fresh state.
	DefaultT = 21
	// MinT and MaxT bound the valid difficulty range, both exclusive.
	MinT = 10
	MaxT = 50
	// Capacity is the number of ready solutions kept per (n, t) pair.
	Capacity = 10
)

// defaultModulusHex is the 2048-bit RSA modulus the service ships with.
const defaultModulusHex = "0xc7970ceedcc3b0754490201a7aa613cd73911081c790f5f1a8726f463550bb5b7ff0db8e1ea1189ec72f93d1650011bd721aeeacc2acde32a04107f0648c2813a31f5b0b7765ff8b44b4b6ffc93384b646eb09c7cf5e8592d40ea33c80039f35b4f14a04b51f7bfd781be4d1673164ba8eb991c2c4d730bbbe35f592bdef524af7e8daefd26c66fc02c479af89d64d373f442709439de66ceb955f3ea37d5159f6135809f85334b5cb1813addc80cd05609f10ac6a95ad65872c909525bdad32bc729592642920f24c61dc5b3c3b7923e56b16a4d9d373d8721f24a3fc0f1b3131f55615172866bccc30f95054c824e733a5eb6817f7bc16399d48c6361cc7e5"

var defaultModulus = MustParseInt(defaultModulusHex)

// DefaultModulus returns a copy of the compiled default modulus.
func DefaultModulus() *big.Int {
	return new(big.Int).Set(defaultModulus)
}

// ValidT reports whether t lies strictly between MinT and MaxT.
func ValidT(t int) bool {
	return t > MinT && t < MaxT
}

// ValidN reports whether n can be used as a modulus.
func ValidN(n *big.Int) bool {
	return n != nil && n.Cmp(big.NewInt(1)) > 0
}

// Solution is a completed proof for a seed. It is never modified once created.
type Solution struct {
	X *big.Int
	Y *big.Int
	U []*big.Int
}

// Clone returns a deep copy of the solution.
func (s Solution) Clone() Solution {
	return Solution{X: cloneInt(s.X), Y: cloneInt(s.Y), U: cloneInts(s.U)}
}

// Job is a proof computation that has been started but not completed.
type Job struct {
	X *big.Int
	// T is the difficulty the job was started with. A job is only resumed when it
	// matches the targeted difficulty.
	T int
	// State is the opaque resumable state last reported by the worker.
	State        json.RawMessage
	Step         uint64
	Steps        uint64
	ElapsedNanos int64
	Progress     float64
	// ETA in seconds.
	ETA float64
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.X = cloneInt(j.X)
	if j.State != nil {
		c.State = bytes.Clone(j.State)
	}
	return &c
}

// Pool holds the ready solutions and at most one job for a (n, t) pair.
type Pool struct {
	Working *Job
	Solved  []Solution
}

// Full reports whether no more solutions should be computed for the pool.
func (p *Pool) Full(capacity int) bool {
	return len(p.Solved) >= capacity
}

// Find returns the solution with the given seed.
func (p *Pool) Find(x *big.Int) (Solution, bool) {
	for _, s := range p.Solved {
		if s.X.Cmp(x) == 0 {
			return s, true
		}
	}
	return Solution{}, false
}

// At returns the solution at position i in computation order.
func (p *Pool) At(i int) (Solution, bool) {
	if i < 0 || i >= len(p.Solved) {
		return Solution{}, false
	}
	return p.Solved[i], true
}

// Delete removes the solution with the given seed and reports whether it existed.
func (p *Pool) Delete(x *big.Int) bool {
	for i, s := range p.Solved {
		if s.X.Cmp(x) == 0 {
			p.Solved = append(p.Solved[:i:i], p.Solved[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	c := &Pool{Working: p.Working.Clone()}
	if p.Solved != nil {
		c.Solved = make([]Solution, len(p.Solved))
		for i, s := range p.Solved {
			c.Solved[i] = s.Clone()
		}
	}
	return c
}

// State is the full model: the current parameters and all pools ever referenced.
// Pools are keyed by the decimal form of the modulus and then by difficulty.
type State struct {
	T     int
	N     *big.Int
	Pools map[string]map[int]*Pool
}

// NewState returns a state targeting (n, t) with no pools.
func NewState(n *big.Int, t int) *State {
	return &State{T: t, N: cloneInt(n), Pools: make(map[string]map[int]*Pool)}
}

// DefaultState returns the state a fresh installation starts with.
func DefaultState() *State {
	return NewState(defaultModulus, DefaultT)
}

// Pool returns the pool for (n, t), creating it if it does not exist.
func (s *State) Pool(n *big.Int, t int) *Pool {
	if s.Pools == nil {
		s.Pools = make(map[string]map[int]*Pool)
	}
	key := n.String()
	byT, ok := s.Pools[key]
	if !ok {
		byT = make(map[int]*Pool)
		s.Pools[key] = byT
	}
	p, ok := byT[t]
	if !ok {
		p = &Pool{Solved: []Solution{}}
		byT[t] = p
	}
	return p
}

// Current returns the pool for the current parameters, creating it if needed.
func (s *State) Current() *Pool {
	return s.Pool(s.N, s.T)
}

// Lookup returns the pool for (n, t) without creating it.
func (s *State) Lookup(n *big.Int, t int) (*Pool, bool) {
	byT, ok := s.Pools[n.String()]
	if !ok {
		return nil, false
	}
	p, ok := byT[t]
	return p, ok
}

// Difficulties returns the pools of a modulus, if any were ever referenced.
func (s *State) Difficulties(n *big.Int) (map[int]*Pool, bool) {
	byT, ok := s.Pools[n.String()]
	return byT, ok
}

// Moduli returns the decimal keys of all moduli in ascending numeric order.
func (s *State) Moduli() []string {
	keys := make([]string, 0, len(s.Pools))
	for k := range s.Pools {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// SolvedCount returns the number of ready solutions for the current parameters.
func (s *State) SolvedCount() int {
	if p, ok := s.Lookup(s.N, s.T); ok {
		return len(p.Solved)
	}
	return 0
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := &State{T: s.T, N: cloneInt(s.N)}
	if s.Pools != nil {
		c.Pools = make(map[string]map[int]*Pool, len(s.Pools))
		for n, byT := range s.Pools {
			cbyT := make(map[int]*Pool, len(byT))
			for t, p := range byT {
				cbyT[t] = p.Clone()
			}
			c.Pools[n] = cbyT
		}
	}
	return c
}

var stateCmpOpts = cmp.Options{
	cmp.Comparer(func(a, b *big.Int) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Cmp(b) == 0
	}),
	cmpopts.EquateEmpty(),
}

// DeepEqual reports deep structural equality. Not named Equal: cmp would call it.
func (s *State) DeepEqual(other *State) bool {
	return cmp.Equal(s, other, stateCmpOpts)
}

// Diff returns a human readable difference, for tests and debug logs.
func (s *State) Diff(other *State) string {
	return cmp.Diff(s, other, stateCmpOpts)
}
