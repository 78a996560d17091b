// Package air implements the constraint compositor: fixed selector
// columns combined with k streamed wire columns into the algebraic
// constraint, the grand-product permutation accumulator Z (and its
// optional lookup-argument twin Z_L), and the quotient polynomial Q
// obtained by evaluating the combined identity on a coset and dividing by
// the vanishing polynomial.
//
// The permutation/copy-constraint machinery below generalizes
// BaoNinh2808-gnark/backend/plonk/bls12-377/setup.go's
// buildPermutation/computePermutationPolynomials/getSupportPermutation —
// written there for the fixed 3-wire (l, r, o) PLONK layout — to the
// spec's arbitrary k-wire AIR: the "support" <g> ∥ u<g> ∥ u²<g> becomes k
// cosets g^i·<g>, one per wire column.
package air

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"

	"github.com/logannye/tinyzkp/internal/curve"
)

// PermutationTables holds the setup-time copy-constraint data for a
// k-wire AIR: for each wire column, the "identity" values id_j(x) = g^j·x
// for x ranging over the domain, and the permuted values sigma which
// implement the wiring between cells that must be equal.
type PermutationTables struct {
	K       uint32
	N       uint64
	Sigma   [][]curve.Fr // Sigma[j][i] = the permuted identity value for wire j, row i
	support []curve.Fr   // flattened k*N identity support, kept for sigma construction
}

// BuildSupport computes <g> ∥ g·<g> ∥ g²·<g> ∥ ... ∥ g^{k-1}·<g>, the
// coset-offset identity support each wire column's copy constraints act
// on, generalizing getSupportPermutation from 3 wires to k.
func BuildSupport(d *fft.Domain, k uint32) []curve.Fr {
	n := d.Cardinality
	res := make([]curve.Fr, uint64(k)*n)

	var cosetBase curve.Fr
	cosetBase.SetOne()
	for j := uint32(0); j < k; j++ {
		base := j * uint32(n)
		res[base] = cosetBase
		for i := uint64(1); i < n; i++ {
			res[uint64(base)+i].Mul(&res[uint64(base)+i-1], &d.Generator)
		}
		cosetBase.Mul(&cosetBase, &d.FrMultiplicativeGen)
	}
	return res
}

// Permutation is the setup-time wiring: Perm[j*N+i] is the flat index
// (into the same j*N+i numbering) that cell (j,i) is copy-constrained to.
// BuildPermutationFromCells constructs it the way buildPermutation does:
// cells sharing the same underlying variable ID form one cycle.
func BuildPermutationFromCells(k uint32, n uint64, cellVarID func(wire uint32, row uint64) int64, nbVariables int) []int64 {
	size := uint64(k) * n
	perm := make([]int64, size)
	for i := range perm {
		perm[i] = -1
	}

	varOf := make([]int64, size)
	idx := uint64(0)
	for j := uint32(0); j < k; j++ {
		for i := uint64(0); i < n; i++ {
			varOf[idx] = cellVarID(j, i)
			idx++
		}
	}

	lastSeen := make([]int64, nbVariables)
	for i := range lastSeen {
		lastSeen[i] = -1
	}
	for i := uint64(0); i < size; i++ {
		v := varOf[i]
		if v < 0 {
			continue
		}
		if lastSeen[v] != -1 {
			perm[i] = lastSeen[v]
		}
		lastSeen[v] = int64(i)
	}
	for i := uint64(0); i < size; i++ {
		if perm[i] == -1 && varOf[i] >= 0 {
			perm[i] = lastSeen[varOf[i]]
		} else if perm[i] == -1 {
			perm[i] = int64(i)
		}
	}
	return perm
}

// ComputePermutationTables turns a flat permutation array into the
// per-wire Sigma polynomials (Lagrange/evaluation basis), mirroring
// computePermutationPolynomials.
func ComputePermutationTables(d *fft.Domain, k uint32, perm []int64) PermutationTables {
	n := d.Cardinality
	support := BuildSupport(d, k)
	sigma := make([][]curve.Fr, k)
	for j := uint32(0); j < k; j++ {
		sigma[j] = make([]curve.Fr, n)
		base := uint64(j) * n
		for i := uint64(0); i < n; i++ {
			sigma[j][i] = support[perm[base+i]]
		}
	}
	return PermutationTables{K: k, N: n, Sigma: sigma, support: support}
}
