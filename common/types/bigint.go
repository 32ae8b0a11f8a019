package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrNotInteger is returned when a string does not hold an integer.
var ErrNotInteger = errors.New("not an integer")

// ParseInt parses a decimal or 0x-prefixed hexadecimal integer.
func ParseInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrNotInteger)
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotInteger, s)
	}
	return v, nil
}

// MustParseInt is ParseInt for constants; it panics on malformed input.
func MustParseInt(s string) *big.Int {
	v, err := ParseInt(s)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseDecimal parses the canonical decimal form used at every boundary.
func ParseDecimal(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotInteger, s)
	}
	return v, nil
}

// Decimals renders a list of integers as decimal strings.
func Decimals(vs []*big.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

// ParseDecimals is the inverse of Decimals.
func ParseDecimals(ss []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(ss))
	for i, s := range ss {
		v, err := ParseDecimal(s)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func cloneInts(vs []*big.Int) []*big.Int {
	if vs == nil {
		return nil
	}
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = cloneInt(v)
	}
	return out
}
