package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/spacemeshos/vdfcache/common/types"
	"github.com/spacemeshos/vdfcache/log"
)

const maxBodySize = 1 << 16

var (
	// ErrInvalidT is returned for difficulties outside of the accepted range.
	ErrInvalidT = fmt.Errorf("t must be an integer strictly between %d and %d", types.MinT, types.MaxT)
	// ErrInvalidN is returned for moduli that are not integers greater than one.
	ErrInvalidN = errors.New("n must be an integer greater than 1")
)

// Status summarizes the pool of the current parameters.
type Status struct {
	Solved int    `json:"solved"`
	N      string `json:"n"`
	T      int    `json:"t"`
}

// Solution is a cached proof. Numbers are decimal strings.
type Solution struct {
	N string   `json:"n"`
	T string   `json:"t"`
	X string   `json:"x"`
	Y string   `json:"y"`
	U []string `json:"u"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func newSolution(n string, t int, s types.Solution) Solution {
	return Solution{
		N: n,
		T: strconv.Itoa(t),
		X: s.X.String(),
		Y: s.Y.String(),
		U: types.Decimals(s.U),
	}
}

// bySeed renders the solutions of a pool keyed by seed.
func bySeed(n string, t int, p *types.Pool) map[string]Solution {
	out := make(map[string]Solution, len(p.Solved))
	for _, s := range p.Solved {
		out[s.X.String()] = newSolution(n, t, s)
	}
	return out
}

func byDifficulty(n string, pools map[int]*types.Pool) map[string]map[string]Solution {
	out := make(map[string]map[string]Solution, len(pools))
	for t, p := range pools {
		out[strconv.Itoa(t)] = bySeed(n, t, p)
	}
	return out
}

// modulus parses the {n} path variable. Decimal and hex forms address the same pools.
func modulus(r *http.Request) (*big.Int, bool) {
	n, err := types.ParseInt(mux.Vars(r)["n"])
	if err != nil || n.Sign() <= 0 {
		return nil, false
	}
	return n, true
}

func difficulty(r *http.Request) (int, bool) {
	t, err := strconv.Atoi(mux.Vars(r)["t"])
	return t, err == nil
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	var st Status
	s.store.View(func(state *types.State) {
		st = Status{Solved: state.SolvedCount(), N: state.N.String(), T: state.T}
	})
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) all(w http.ResponseWriter, _ *http.Request) {
	var out map[string]map[string]map[string]Solution
	s.store.View(func(state *types.State) {
		out = make(map[string]map[string]map[string]Solution, len(state.Pools))
		for n, pools := range state.Pools {
			out[n] = byDifficulty(n, pools)
		}
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) byModulus(w http.ResponseWriter, r *http.Request) {
	n, ok := modulus(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var out map[string]map[string]Solution
	s.store.View(func(state *types.State) {
		if pools, ok := state.Difficulties(n); ok {
			out = byDifficulty(n.String(), pools)
		}
	})
	if out == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) byPair(w http.ResponseWriter, r *http.Request) {
	n, ok := modulus(r)
	t, tok := difficulty(r)
	if !ok || !tok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var out map[string]Solution
	s.store.View(func(state *types.State) {
		if p, ok := state.Lookup(n, t); ok {
			out = bySeed(n.String(), t, p)
		}
	})
	if out == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// solution looks a solution up by seed first and then by its position in the pool,
// oldest first.
func (s *Server) solution(w http.ResponseWriter, r *http.Request) {
	n, ok := modulus(r)
	t, tok := difficulty(r)
	x, err := types.ParseInt(mux.Vars(r)["x"])
	if !ok || !tok || err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var (
		out   Solution
		found bool
	)
	s.store.View(func(state *types.State) {
		p, ok := state.Lookup(n, t)
		if !ok {
			return
		}
		sol, ok := p.Find(x)
		if !ok && x.IsInt64() && x.Int64() < int64(len(p.Solved)) {
			sol, ok = p.At(int(x.Int64()))
		}
		if ok {
			out, found = newSolution(n.String(), t, sol), true
		}
	})
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// consume deletes a solution so that it is never served again.
func (s *Server) consume(w http.ResponseWriter, r *http.Request) {
	n, ok := modulus(r)
	t, tok := difficulty(r)
	x, err := types.ParseInt(mux.Vars(r)["x"])
	if !ok || !tok || err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	deleted := s.store.Mutate(func(state *types.State) {
		if p, ok := state.Lookup(n, t); ok {
			p.Delete(x)
		}
	})
	if !deleted {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	consumed.Inc()
	s.logger.Info("solution consumed",
		log.ZContext(r.Context()),
		log.ZShortBigInt("n", n),
		zap.Int("t", t),
		log.ZShortBigInt("x", x),
	)
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) getT(w http.ResponseWriter, _ *http.Request) {
	var t int
	s.store.View(func(state *types.State) { t = state.T })
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) setT(w http.ResponseWriter, r *http.Request) {
	raw, err := readScalar(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidT.Error())
		return
	}
	t, err := strconv.Atoi(raw)
	if err != nil || !types.ValidT(t) {
		writeError(w, http.StatusBadRequest, ErrInvalidT.Error())
		return
	}
	s.store.Mutate(func(state *types.State) { state.T = t })
	s.logger.Info("difficulty updated", log.ZContext(r.Context()), zap.Int("t", t))
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) getN(w http.ResponseWriter, _ *http.Request) {
	var n string
	s.store.View(func(state *types.State) { n = state.N.String() })
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) setN(w http.ResponseWriter, r *http.Request) {
	raw, err := readScalar(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidN.Error())
		return
	}
	n, err := types.ParseInt(raw)
	if err != nil || !types.ValidN(n) {
		writeError(w, http.StatusBadRequest, ErrInvalidN.Error())
		return
	}
	s.store.Mutate(func(state *types.State) { state.N = n })
	s.logger.Info("modulus updated", log.ZContext(r.Context()), log.ZShortBigInt("n", n))
	writeJSON(w, http.StatusOK, n.String())
}

// readScalar reads a body holding a single JSON number or string.
func readScalar(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return "", err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	if dec.More() {
		return "", errors.New("trailing data")
	}
	switch v := v.(type) {
	case json.Number:
		return v.String(), nil
	case string:
		return strings.TrimSpace(v), nil
	default:
		return "", fmt.Errorf("unexpected %T", v)
	}
}
