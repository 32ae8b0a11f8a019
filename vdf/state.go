package vdf

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/spacemeshos/vdfcache/common/types"
	"github.com/spacemeshos/vdfcache/hash"
)

const stateVersion = 1

// encodedState is the wire form of a proverState. Integers are decimal strings.
type encodedState struct {
	Version int      `json:"v"`
	ID      string   `json:"id"`
	Step    uint64   `json:"step"`
	Acc     string   `json:"acc"`
	Y       string   `json:"y,omitempty"`
	Xi      string   `json:"xi,omitempty"`
	Yi      string   `json:"yi,omitempty"`
	Mu      []string `json:"mu"`
	Sq      uint64   `json:"sq"`
}

// fingerprint binds a state to the proof parameters it was produced for.
func fingerprint(x *big.Int, t int, n *big.Int) string {
	sum := hash.Sum(
		[]byte(x.String()), []byte{0},
		[]byte(strconv.Itoa(t)), []byte{0},
		[]byte(n.String()),
	)
	return hex.EncodeToString(sum[:16])
}

func (s *proverState) encode() (json.RawMessage, error) {
	enc := encodedState{
		Version: stateVersion,
		ID:      fingerprint(s.x, s.t, s.n),
		Step:    s.step,
		Acc:     s.acc.String(),
		Mu:      types.Decimals(s.mu),
		Sq:      s.sq,
	}
	if s.y != nil {
		enc.Y = s.y.String()
		enc.Xi = s.xi.String()
		enc.Yi = s.yi.String()
	}
	raw, err := json.Marshal(enc)
	if err != nil {
		return nil, fmt.Errorf("encode prover state: %w", err)
	}
	return raw, nil
}

func decodeState(raw json.RawMessage, x *big.Int, t int, n *big.Int) (*proverState, error) {
	var enc encodedState
	if err := json.Unmarshal(raw, &enc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if enc.Version != stateVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidState, enc.Version)
	}
	if enc.ID != fingerprint(x, t, n) {
		return nil, fmt.Errorf("%w: state belongs to different parameters", ErrInvalidState)
	}
	st := newState(x, t, n)
	st.step = enc.Step
	st.sq = enc.Sq
	var err error
	if st.acc, err = parseResidue(enc.Acc, n); err != nil {
		return nil, err
	}
	for _, m := range enc.Mu {
		v, err := parseResidue(m, n)
		if err != nil {
			return nil, err
		}
		st.mu = append(st.mu, v)
	}

	T := st.bigT()
	expected := expectedStep(T, len(st.mu), st.sq)
	switch {
	case st.step < T && enc.Y != "":
		return nil, fmt.Errorf("%w: output before squaring finished", ErrInvalidState)
	case st.step < T:
		if st.sq != 0 || len(st.mu) > 1 || (st.step < T/2) != (len(st.mu) == 0) {
			return nil, fmt.Errorf("%w: step %d inconsistent with midpoints", ErrInvalidState, st.step)
		}
		return st, nil
	case len(st.mu) >= t:
		return nil, fmt.Errorf("%w: state of a finished proof", ErrInvalidState)
	case st.step != expected || st.sq >= T>>(len(st.mu)+1):
		return nil, fmt.Errorf("%w: step %d inconsistent with round progress", ErrInvalidState, st.step)
	}
	if st.y, err = parseResidue(enc.Y, n); err != nil {
		return nil, err
	}
	if st.xi, err = parseResidue(enc.Xi, n); err != nil {
		return nil, err
	}
	if st.yi, err = parseResidue(enc.Yi, n); err != nil {
		return nil, err
	}
	return st, nil
}

// expectedStep is the step count after the squaring phase once rounds midpoints are
// known and sq squarings of the current round are done.
func expectedStep(T uint64, rounds int, sq uint64) uint64 {
	step := T
	for i := 2; i <= rounds; i++ {
		step += T >> i
	}
	return step + sq
}

func parseResidue(s string, n *big.Int) (*big.Int, error) {
	v, err := types.ParseDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if v.Sign() < 0 || v.Cmp(n) >= 0 {
		return nil, fmt.Errorf("%w: value out of range", ErrInvalidState)
	}
	return v, nil
}
