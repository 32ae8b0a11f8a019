package vdf

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/spacemeshos/vdfcache/hash"
)

// challengeBits is the size of the Fiat-Shamir challenges.
const challengeBits = 128

// Verify checks that y = x^(2^(2^t)) mod n using the proof u.
func Verify(x *big.Int, t int, n *big.Int, y *big.Int, u []*big.Int) error {
	if err := checkParams(x, t, n); err != nil {
		return err
	}
	if len(u) != t {
		return fmt.Errorf("%w: expected %d midpoints, got %d", ErrInvalidProof, t, len(u))
	}
	if !inRange(y, n) {
		return fmt.Errorf("%w: output out of range", ErrInvalidProof)
	}
	xi := new(big.Int).Mod(x, n)
	yi := new(big.Int).Set(y)
	for i, mu := range u {
		if !inRange(mu, n) {
			return fmt.Errorf("%w: midpoint %d out of range", ErrInvalidProof, i)
		}
		xi, yi = reduce(xi, yi, mu, n, i+1)
	}
	expected := new(big.Int).Mul(xi, xi)
	expected.Mod(expected, n)
	if expected.Cmp(yi) != 0 {
		return ErrInvalidProof
	}
	return nil
}

func inRange(v, n *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(n) < 0
}

// reduce halves the statement xi^(2^Ti) = yi with the midpoint mu = xi^(2^(Ti/2)).
func reduce(xi, yi, mu, n *big.Int, round int) (*big.Int, *big.Int) {
	r := challenge(xi, yi, mu, n, round)
	x := new(big.Int).Exp(xi, r, n)
	x.Mul(x, mu).Mod(x, n)
	y := new(big.Int).Exp(mu, r, n)
	y.Mul(y, yi).Mod(y, n)
	return x, y
}

func challenge(xi, yi, mu, n *big.Int, round int) *big.Int {
	width := (n.BitLen() + 7) / 8
	sum := hash.Sum(
		[]byte(strconv.Itoa(round)),
		xi.FillBytes(make([]byte, width)),
		yi.FillBytes(make([]byte, width)),
		mu.FillBytes(make([]byte, width)),
	)
	return new(big.Int).SetBytes(sum[:challengeBits/8])
}
