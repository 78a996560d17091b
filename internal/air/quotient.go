// Quotient computation: evaluate the combined gate + copy-constraint +
// boundary identity on an extended coset domain (rho times the size of
// the execution domain, rho chosen so the combined identity's degree fits
// — exactly the blowup fflonk's prove.go picks: "domain1 = 8*sizeSystem"
// for configurations with a commitment/lookup argument, "4*sizeSystem"
// without one, see famouswizard-gnark/backend/fflonk/bn254/prove.go), then
// divide pointwise by the vanishing polynomial (nonzero everywhere on
// that coset by construction) and interpolate back to get Q's
// coefficients.
package air

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"

	"github.com/logannye/tinyzkp/internal/curve"
)

// Blowup picks the coset blow-up factor rho for the quotient domain.
func Blowup(hasLookups bool) uint64 {
	if hasLookups {
		return 8
	}
	return 4
}

// EvalSet bundles the per-row constraint inputs in Lagrange (evaluation)
// basis over the execution domain: the k wire columns, the fixed
// selector columns (gate coefficients q_l..q_k-ary plus any custom
// selectors), the permutation support/Sigma and Z, and the challenges.
type EvalSet struct {
	Wires     [][]curve.Fr // k columns, length N
	Selectors [][]curve.Fr // gate-coefficient columns, length N each
	Support   []curve.Fr   // k*N, from BuildSupport
	Tables    PermutationTables
	Z         []curve.Fr // length N
	Beta      curve.Fr
	Gamma     curve.Fr
	Alpha     curve.Fr
	// GateIdentity evaluates the user-supplied AIR gate polynomial at row
	// i given the wire values and selector values at that row; spec's
	// constraint compositor is parameterized by this function so the
	// same quotient machinery serves any AIR, not just a fixed PLONK gate.
	GateIdentity func(wireVals, selectorVals []curve.Fr) curve.Fr
}

// ComputeQuotient evaluates the combined identity on the coset domain,
// divides by the vanishing polynomial, and returns Q's coefficients in
// canonical form (length rho·N, the size of the extended domain).
func ComputeQuotient(d *domainAdapter, es *EvalSet, c curve.Fr, rho uint64) ([]curve.Fr, error) {
	n := es.Tables.N
	bigN := n * rho

	bigDomain := fft.NewDomain(bigN, fft.WithoutPrecompute())

	numerator := make([]curve.Fr, bigN)

	// L1, the Lagrange basis polynomial that is 1 at row 0 and 0
	// elsewhere, needed for the Z(1)=1 boundary check.
	lOne := make([]curve.Fr, n)
	lOne[0].SetOne()

	// Work column-by-column: extend every input column (wires, selectors,
	// Sigma, Z, identity support, L1) from Lagrange(N) to the coset
	// evaluations on bigDomain, by going through canonical form on the
	// execution domain and then forward-transforming the (zero-padded,
	// coset-shifted) coefficients on bigDomain.
	extend := func(col []curve.Fr) ([]curve.Fr, error) {
		canon, err := toCanonical(d.small, col)
		if err != nil {
			return nil, err
		}
		return evalOnCoset(bigDomain, canon, c, bigN)
	}

	wireExt := make([][]curve.Fr, len(es.Wires))
	for j, w := range es.Wires {
		ext, err := extend(w)
		if err != nil {
			return nil, err
		}
		wireExt[j] = ext
	}
	selExt := make([][]curve.Fr, len(es.Selectors))
	for j, s := range es.Selectors {
		ext, err := extend(s)
		if err != nil {
			return nil, err
		}
		selExt[j] = ext
	}
	sigmaExt := make([][]curve.Fr, len(es.Tables.Sigma))
	for j, s := range es.Tables.Sigma {
		ext, err := extend(s)
		if err != nil {
			return nil, err
		}
		sigmaExt[j] = ext
	}
	supportExt := make([][]curve.Fr, es.Tables.K)
	for j := uint32(0); j < es.Tables.K; j++ {
		base := uint64(j) * n
		ext, err := extend(es.Support[base : base+n])
		if err != nil {
			return nil, err
		}
		supportExt[j] = ext
	}
	zExt, err := extend(es.Z)
	if err != nil {
		return nil, err
	}
	zShiftExt := shiftByRho(zExt, rho)
	lOneExt, err := extend(lOne)
	if err != nil {
		return nil, err
	}
	zhInv, err := vanishingInverseOnCoset(bigDomain, c, n, bigN)
	if err != nil {
		return nil, err
	}

	var one curve.Fr
	one.SetOne()

	for i := uint64(0); i < bigN; i++ {
		wireVals := make([]curve.Fr, len(wireExt))
		for j := range wireExt {
			wireVals[j] = wireExt[j][i]
		}
		selVals := make([]curve.Fr, len(selExt))
		for j := range selExt {
			selVals[j] = selExt[j][i]
		}
		gate := es.GateIdentity(wireVals, selVals)

		var num, den curve.Fr
		num.SetOne()
		den.SetOne()
		for j := range wireExt {
			var nt, dt, t curve.Fr
			t.Mul(&es.Beta, &supportExt[j][i])
			nt.Add(&wireExt[j][i], &t)
			nt.Add(&nt, &es.Gamma)

			t.Mul(&es.Beta, &sigmaExt[j][i])
			dt.Add(&wireExt[j][i], &t)
			dt.Add(&dt, &es.Gamma)

			num.Mul(&num, &nt)
			den.Mul(&den, &dt)
		}
		var ordering curve.Fr
		ordering.Mul(&num, &zExt[i])
		var tmp curve.Fr
		tmp.Mul(&den, &zShiftExt[i])
		ordering.Sub(&ordering, &tmp)

		var boundary curve.Fr
		boundary.Sub(&zExt[i], &one)
		boundary.Mul(&boundary, &lOneExt[i])

		var combined curve.Fr
		combined.Mul(&boundary, &es.Alpha)
		combined.Add(&combined, &ordering)
		combined.Mul(&combined, &es.Alpha)
		combined.Add(&combined, &gate)

		numerator[i].Mul(&combined, &zhInv[i])
	}

	return cosetToCanonical(bigDomain, numerator, c, bigN)
}

// EvalPublicColumn evaluates, at x, the unique degree-(N-1) polynomial that
// takes the given N values on the execution domain. Both the verifier's
// permutation columns (Sigma) and its row-0 indicator L0 are "public"
// columns in exactly this sense — fixed at setup time, not committed, and
// cheap enough (O(N) here) for the verifier to interpolate and evaluate
// directly rather than requiring an opened commitment, mirroring how
// ThomasPiellard's verify.go computes the public-input Lagrange sum pi(zeta)
// in plain arithmetic instead of via a pairing.
func EvalPublicColumn(d *fft.Domain, col []curve.Fr, x curve.Fr) curve.Fr {
	canon, _ := toCanonical(d, col)
	var res curve.Fr
	for i := len(canon) - 1; i >= 0; i-- {
		res.Mul(&res, &x)
		res.Add(&res, &canon[i])
	}
	return res
}

// domainAdapter pairs the execution domain with its canonical fft.Domain
// handle, avoiding a second parallel "N" parameter threaded through every
// call in this file.
type domainAdapter struct {
	small *fft.Domain
}

// NewDomainAdapter wraps an execution-domain fft.Domain for quotient use.
func NewDomainAdapter(small *fft.Domain) *domainAdapter {
	return &domainAdapter{small: small}
}

func shiftByRho(ext []curve.Fr, rho uint64) []curve.Fr {
	out := make([]curve.Fr, len(ext))
	for i := range ext {
		out[i] = ext[(uint64(i)+rho)%uint64(len(ext))]
	}
	return out
}

// toCanonical interpolates N Lagrange-basis evaluations (at ω^0..ω^{N-1})
// to canonical coefficients via the inverse DFT, using the domain's
// inverse root of unity directly rather than gnark-crypto's
// Domain.FFTInverse to avoid depending on that method's coset-flag
// overload, which differs across gnark-crypto releases represented in
// the example corpus.
func toCanonical(d *fft.Domain, values []curve.Fr) ([]curve.Fr, error) {
	n := uint64(len(values))
	var omegaInv curve.Fr
	omegaInv.Inverse(&d.Generator)
	coeffs := dft(values, omegaInv)
	var nInv curve.Fr
	nInv.SetUint64(n)
	nInv.Inverse(&nInv)
	for i := range coeffs {
		coeffs[i].Mul(&coeffs[i], &nInv)
	}
	return coeffs, nil
}

// evalOnCoset zero-pads coeffs (length N, canonical basis) to bigN and
// evaluates the resulting polynomial on the coset c'·<ω_big>, where c' is
// a fixed representative satisfying c'^N == c — the same generalized
// vanishing-constant coset the domain planner resolves in
// internal/domain (nthRootViaSquareRoots), reused here for the quotient
// identity's evaluation coset.
func evalOnCoset(big *fft.Domain, coeffs []curve.Fr, shift curve.Fr, bigN uint64) ([]curve.Fr, error) {
	padded := make([]curve.Fr, bigN)
	copy(padded, coeffs)
	var power curve.Fr
	power.SetOne()
	for i := range padded {
		padded[i].Mul(&padded[i], &power)
		power.Mul(&power, &shift)
	}
	return dft(padded, big.Generator), nil
}

// vanishingInverseOnCoset returns 1/Zh(x) for every x in the rho-sized
// coset, where Zh(X) = X^N - c. Every coset point is, by construction,
// disjoint from the execution domain's roots (its rows are a different
// coset entirely when rho>1, shift^N==c, and gcd-free residues are
// picked by the caller), so Zh never vanishes there.
func vanishingInverseOnCoset(big *fft.Domain, c curve.Fr, n, bigN uint64) ([]curve.Fr, error) {
	out := make([]curve.Fr, bigN)
	var x curve.Fr
	x.SetOne()
	for i := uint64(0); i < bigN; i++ {
		var xn curve.Fr
		xn = x
		for k := n; k > 1; k >>= 1 {
			xn.Square(&xn)
		}
		xn.Sub(&xn, &c)
		out[i].Inverse(&xn)
		x.Mul(&x, &big.Generator)
	}
	return out, nil
}

// cosetToCanonical inverts evalOnCoset: interpolates bigN coset
// evaluations back to canonical coefficients, then removes the coset
// shift from the coefficients.
func cosetToCanonical(big *fft.Domain, evals []curve.Fr, shift curve.Fr, bigN uint64) ([]curve.Fr, error) {
	var omegaInv curve.Fr
	omegaInv.Inverse(&big.Generator)
	coeffs := dft(evals, omegaInv)
	var nInv curve.Fr
	nInv.SetUint64(bigN)
	nInv.Inverse(&nInv)

	var shiftInv, power curve.Fr
	shiftInv.Inverse(&shift)
	power.SetOne()
	for i := range coeffs {
		coeffs[i].Mul(&coeffs[i], &nInv)
		coeffs[i].Mul(&coeffs[i], &power)
		power.Mul(&power, &shiftInv)
	}
	return coeffs, nil
}

// dft is a direct (non-recursive) discrete Fourier transform over Fr: the
// evaluation-form bridge toCanonical/evalOnCoset/cosetToCanonical need.
// It runs in O(len(a)^2) and is applied to whole columns: N-length ones in
// toCanonical and rho·N-length ones in evalOnCoset/cosetToCanonical. No
// blocked or per-tile IFFT is used anywhere in the prover.
func dft(a []curve.Fr, root curve.Fr) []curve.Fr {
	n := len(a)
	out := make([]curve.Fr, n)
	powers := make([]curve.Fr, n)
	powers[0].SetOne()
	for i := 1; i < n; i++ {
		powers[i].Mul(&powers[i-1], &root)
	}
	for k := 0; k < n; k++ {
		var acc curve.Fr
		for j := 0; j < n; j++ {
			idx := (k * j) % n
			var term curve.Fr
			term.Mul(&a[j], &powers[idx])
			acc.Add(&acc, &term)
		}
		out[k] = acc
	}
	return out
}
