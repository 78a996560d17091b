// Grand-product accumulator Z (and its optional lookup twin Z_L).
//
// gnark's own prove.go delegates this step to the unexported
// iop.BuildRatioCopyConstraint helper inside gnark-crypto (see
// other_examples/f2b4a078_VolodymyrBg-gnark__internal-backend-bn254-plonk-prove.go.go,
// "compute the copy constraint's ratio"); that helper is internal to
// gnark-crypto and not part of the retrieved corpus, so the accumulation
// recursion itself is written out directly here from the standard PLONK
// permutation argument the teacher's own doc comment on buildPermutation
// describes: Z(g^0)=1, Z(g^{i+1}) = Z(g^i) * Π_j(w_j(g^i)+β·id_j(g^i)+γ)
// / Π_j(w_j(g^i)+β·σ_j(g^i)+γ).
package air

import (
	"github.com/logannye/tinyzkp/internal/curve"
)

// GrandProductZ computes the permutation accumulator evaluations over the
// whole domain given the k wire columns (evaluation basis, length N
// each), the setup-time identity/support values and Sigma permutation
// tables, and the Fiat-Shamir challenges beta/gamma.
//
// Returns the N evaluations of Z in the same (regular, Lagrange) basis
// the wires are in: Z[0] = 1, and for i < N-1,
// Z[i+1] = Z[i] * num_i / den_i.
func GrandProductZ(wires [][]curve.Fr, support []curve.Fr, tables PermutationTables, beta, gamma curve.Fr) []curve.Fr {
	n := tables.N
	k := tables.K
	z := make([]curve.Fr, n)
	z[0].SetOne()

	var num, den, running curve.Fr
	running.SetOne()

	for i := uint64(0); i < n-1; i++ {
		num.SetOne()
		den.SetOne()
		for j := uint32(0); j < k; j++ {
			base := uint64(j) * n
			var numTerm, denTerm, t curve.Fr
			t.Mul(&beta, &support[base+i])
			numTerm.Add(&wires[j][i], &t)
			numTerm.Add(&numTerm, &gamma)

			t.Mul(&beta, &tables.Sigma[j][i])
			denTerm.Add(&wires[j][i], &t)
			denTerm.Add(&denTerm, &gamma)

			num.Mul(&num, &numTerm)
			den.Mul(&den, &denTerm)
		}
		var frac curve.Fr
		frac.Inverse(&den)
		frac.Mul(&frac, &num)
		running.Mul(&running, &frac)
		z[i+1] = running
	}
	return z
}

// LookupZ computes a lookup-argument accumulator Z_L: a structurally
// identical ratio accumulator over (f_i + theta) against a table column
// (t_i + theta), with the single challenge theta on both sides. The
// prover does not call it, so enable_lookups adds no Z_L to a proof.
func LookupZ(values, table []curve.Fr, theta curve.Fr) []curve.Fr {
	n := len(values)
	z := make([]curve.Fr, n)
	z[0].SetOne()

	var running curve.Fr
	running.SetOne()
	for i := 0; i < n-1; i++ {
		var num, den curve.Fr
		num.Add(&values[i], &theta)
		den.Add(&table[i], &theta)
		den.Inverse(&den)
		num.Mul(&num, &den)
		running.Mul(&running, &num)
		z[i+1] = running
	}
	return z
}
