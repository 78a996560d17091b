// Package testutil builds deterministic, non-production SRS fixtures for
// the test suites of internal/kzg, internal/srs and engine.
//
// Grounded on mimoo-gnark-crypto's own kzg.NewSRS("returns a new SRS using
// alpha as randomness source ... In production, a SRS generated through
// MPC should be used"): a fixed, non-secret toxic-waste scalar alpha
// derives every G1 power and the single G2 power tau*G2 the same way, the
// difference being that tests need a *repeatable* alpha rather than a
// cryptographically random one.
package testutil

import (
	"math/big"

	"github.com/logannye/tinyzkp/internal/curve"
	"github.com/logannye/tinyzkp/internal/srs"
)

// NewSRS builds a toxic-waste SRS of the given size (number of G1 powers,
// i.e. supports polynomials of degree < size) using a fixed seed. Tests
// that need independent SRS instances (e.g. the SrsDigestMismatch
// scenario) should pass different seeds.
func NewSRS(size uint64, seed int64) *srs.SRS {
	g1, g2 := curve.Generators()

	var alpha big.Int
	alpha.SetInt64(seed)
	alpha.Add(&alpha, big.NewInt(0x5a4b5347)) // nudge away from small/degenerate seeds

	var alphaFr curve.Fr
	alphaFr.SetBigInt(&alpha)

	out := &srs.SRS{G1: make([]curve.G1Affine, size)}
	out.G1[0] = g1

	var power curve.Fr
	power.SetOne()
	for i := uint64(1); i < size; i++ {
		power.Mul(&power, &alphaFr)
		var pBig big.Int
		power.BigInt(&pBig)
		out.G1[i].ScalarMultiplication(&g1, &pBig)
	}

	out.G2[0] = g2
	out.G2[1].ScalarMultiplication(&g2, &alpha)

	return out
}

// TrivialPermutation returns a k*n-length identity permutation (every cell
// its own cycle), the shape ComputePermutationTables needs when a test AIR
// has no copy constraints between cells and wants the grand product Z to
// reduce to the constant polynomial 1.
func TrivialPermutation(k uint32, n uint64) []int64 {
	perm := make([]int64, uint64(k)*n)
	for i := range perm {
		perm[i] = int64(i)
	}
	return perm
}
