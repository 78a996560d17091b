// Package kzg implements streaming KZG commitment and opening over BN254,
// generalizing mimoo-gnark-crypto's
// ecc/bls12-377/fr/kzg/kzg.go (Commit/Open/BatchOpenSinglePoint/FoldProof/
// dividePolyByXminusA/fold) from a single-curve reference implementation
// into the tiled, SRS-backed commitment layer spec §4.4/§4.7 describes:
// commitments are accumulated tile-by-tile rather than from a
// fully-materialized polynomial, and openings support both the classic
// single-point batch and the shifted two-point (ζ, ωζ) variant the
// permutation argument needs for Z(ωζ).
package kzg

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"

	"github.com/logannye/tinyzkp/internal/curve"
	"github.com/logannye/tinyzkp/internal/srs"
)

var (
	ErrInvalidNbDigests      = errors.New("kzg: number of digests does not match number of polynomials")
	ErrInvalidPolynomialSize = errors.New("kzg: polynomial larger than SRS capacity or empty")
	ErrInvalidDomain         = errors.New("kzg: domain cardinality smaller than polynomial degree")
	ErrVerifyOpeningProof    = errors.New("kzg: opening proof failed to verify")
)

// Digest is a commitment to a polynomial: a single G1 point.
type Digest = curve.G1Affine

// Accumulator incrementally builds a KZG commitment across tiles, holding
// only a running G1 Jacobian sum: spec §4.4's "commit as you go" streaming
// requirement. AddTile is called once per tile with that tile's
// coefficients (already mapped to the correct SRS offset window by the
// caller) and the corresponding SRS slice.
type Accumulator struct {
	acc   curve.G1Jac
	ref   *srs.SRS
	count int
}

// NewAccumulator starts a fresh streaming commitment against ref.
func NewAccumulator(ref *srs.SRS) *Accumulator {
	return &Accumulator{ref: ref}
}

// AddTile folds in the contribution of coeffs[offset:offset+len(coeffs)]
// against the matching window of SRS G1 powers.
func (a *Accumulator) AddTile(offset int, coeffs []curve.Fr) error {
	if offset < 0 || offset+len(coeffs) > len(a.ref.G1) {
		return ErrInvalidPolynomialSize
	}
	if len(coeffs) == 0 {
		return nil
	}
	var part curve.G1Affine
	cfg := ecc.MultiExpConfig{ScalarsMont: true}
	if _, err := part.MultiExp(a.ref.G1[offset:offset+len(coeffs)], coeffs, cfg); err != nil {
		return err
	}
	var partJac curve.G1Jac
	partJac.FromAffine(&part)
	a.acc.AddAssign(&partJac)
	a.count += len(coeffs)
	return nil
}

// Digest finalizes the running sum into an affine commitment.
func (a *Accumulator) Digest() Digest {
	var out curve.G1Affine
	out.FromJacobian(&a.acc)
	return out
}

// Commit is the non-streaming convenience form, used by selector columns
// and any polynomial small enough to hold in full.
func Commit(p []curve.Fr, ref *srs.SRS) (Digest, error) {
	if len(p) == 0 || len(p) > len(ref.G1) {
		return Digest{}, ErrInvalidPolynomialSize
	}
	var res curve.G1Affine
	cfg := ecc.MultiExpConfig{ScalarsMont: true}
	if _, err := res.MultiExp(ref.G1[:len(p)], p, cfg); err != nil {
		return Digest{}, err
	}
	return res, nil
}

// OpeningProof is a single-point KZG opening (spec §4.7).
type OpeningProof struct {
	H            curve.G1Affine
	Point        curve.Fr
	ClaimedValue curve.Fr
}

// Open computes an opening proof of p at point.
func Open(p []curve.Fr, point curve.Fr, d *fft.Domain, ref *srs.SRS) (OpeningProof, error) {
	if len(p) == 0 || len(p) > len(ref.G1) {
		return OpeningProof{}, ErrInvalidPolynomialSize
	}
	if len(p) > int(d.Cardinality) {
		return OpeningProof{}, ErrInvalidDomain
	}
	res := OpeningProof{Point: point, ClaimedValue: evalPoly(p, point)}
	work := make([]curve.Fr, len(p), d.Cardinality)
	copy(work, p)
	h := dividePolyByXminusA(d, work, res.ClaimedValue, res.Point)
	hCommit, err := Commit(h, ref)
	if err != nil {
		return OpeningProof{}, err
	}
	res.H = hCommit
	return res, nil
}

// Verify checks a single-point opening proof via the standard pairing
// identity e(C - [v]G1, G2) == e(H, [τ]G2 - [z]G2).
func Verify(commitment *Digest, proof *OpeningProof, ref *srs.SRS) error {
	var claimedValueG1 curve.G1Affine
	claimedValueG1.ScalarMultiplication(&ref.G1[0], fr2big(&proof.ClaimedValue))

	var fMinusFa, tmp curve.G1Jac
	fMinusFa.FromAffine(commitment)
	tmp.FromAffine(&claimedValueG1)
	fMinusFa.SubAssign(&tmp)

	var negH curve.G1Affine
	negH.Neg(&proof.H)

	var alphaMinusA, genG2, alphaG2 curve.G2Jac
	genG2.FromAffine(&ref.G2[0])
	alphaG2.FromAffine(&ref.G2[1])
	alphaMinusA.ScalarMultiplication(&genG2, fr2big(&proof.Point)).
		Neg(&alphaMinusA).
		AddAssign(&alphaG2)

	var xMinusAAff curve.G2Affine
	xMinusAAff.FromJacobian(&alphaMinusA)

	var fMinusFaAff curve.G1Affine
	fMinusFaAff.FromJacobian(&fMinusFa)

	ok, err := curve.PairingCheck(
		[]curve.G1Affine{fMinusFaAff, negH},
		[]curve.G2Affine{ref.G2[0], xMinusAAff},
	)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVerifyOpeningProof
	}
	return nil
}

// BatchOpeningProof is a batched single-point opening of several
// polynomials (spec §4.7's "batched at ζ" step), folded with a
// transcript-derived γ exactly as mimoo-gnark-crypto's
// BatchOpenSinglePoint/FoldProof pair does.
type BatchOpeningProof struct {
	H             curve.G1Affine
	Point         curve.Fr
	ClaimedValues []curve.Fr
}

// BatchOpenSinglePoint opens polynomials at point, folding with gamma
// (already squeezed from the caller's transcript — this package has no
// transcript dependency of its own, keeping it reusable outside the
// proving pipeline).
func BatchOpenSinglePoint(polys [][]curve.Fr, point curve.Fr, gamma curve.Fr, d *fft.Domain, ref *srs.SRS) (BatchOpeningProof, error) {
	largest := -1
	for _, p := range polys {
		if len(p) == 0 || len(p) > len(ref.G1) {
			return BatchOpeningProof{}, ErrInvalidPolynomialSize
		}
		if len(p) > int(d.Cardinality) {
			return BatchOpeningProof{}, ErrInvalidDomain
		}
		if len(p) > largest {
			largest = len(p)
		}
	}

	res := BatchOpeningProof{Point: point}
	res.ClaimedValues = make([]curve.Fr, len(polys))
	for i, p := range polys {
		res.ClaimedValues[i] = evalPoly(p, point)
	}

	var sumGammaEval curve.Fr
	if n := len(res.ClaimedValues); n > 0 {
		sumGammaEval = res.ClaimedValues[n-1]
		for i := n - 2; i >= 0; i-- {
			sumGammaEval.Mul(&sumGammaEval, &gamma)
			sumGammaEval.Add(&sumGammaEval, &res.ClaimedValues[i])
		}
	}

	sumGammaPoly := make([]curve.Fr, largest, d.Cardinality)
	copy(sumGammaPoly, polys[0])
	gammaN := gamma
	for i := 1; i < len(polys); i++ {
		var term curve.Fr
		for j := range polys[i] {
			term.Mul(&polys[i][j], &gammaN)
			sumGammaPoly[j].Add(&sumGammaPoly[j], &term)
		}
		gammaN.Mul(&gammaN, &gamma)
	}

	h := dividePolyByXminusA(d, sumGammaPoly, sumGammaEval, point)
	hCommit, err := Commit(h, ref)
	if err != nil {
		return BatchOpeningProof{}, err
	}
	res.H = hCommit
	return res, nil
}

// BatchVerifySinglePoint folds digests with the same gamma and verifies
// the resulting single-point proof.
func BatchVerifySinglePoint(digests []Digest, proof *BatchOpeningProof, gamma curve.Fr, ref *srs.SRS) error {
	if len(digests) != len(proof.ClaimedValues) {
		return ErrInvalidNbDigests
	}
	gammai := make([]curve.Fr, len(digests))
	gammai[0].SetOne()
	for i := 1; i < len(digests); i++ {
		gammai[i].Mul(&gammai[i-1], &gamma)
	}
	foldedDigest, foldedEval := fold(digests, proof.ClaimedValues, gammai)
	folded := OpeningProof{H: proof.H, Point: proof.Point, ClaimedValue: foldedEval}
	return Verify(&foldedDigest, &folded, ref)
}

// ShiftedOpeningProof bundles the two-point (ζ, ωζ) opening spec §4.7
// requires for the permutation accumulator Z: one batched proof at ζ
// covering selectors/wires/Z/Q, and one proof at ωζ covering only Z.
type ShiftedOpeningProof struct {
	AtZeta    BatchOpeningProof
	AtZetaOmega OpeningProof
}

// OpenShifted produces both halves of a shifted two-point opening.
func OpenShifted(zetaPolys [][]curve.Fr, zOmega []curve.Fr, zeta, zetaOmega, gamma curve.Fr, d *fft.Domain, ref *srs.SRS) (ShiftedOpeningProof, error) {
	atZeta, err := BatchOpenSinglePoint(zetaPolys, zeta, gamma, d, ref)
	if err != nil {
		return ShiftedOpeningProof{}, err
	}
	atZetaOmega, err := Open(zOmega, zetaOmega, d, ref)
	if err != nil {
		return ShiftedOpeningProof{}, err
	}
	return ShiftedOpeningProof{AtZeta: atZeta, AtZetaOmega: atZetaOmega}, nil
}

// VerifyShifted checks both halves of a shifted two-point opening.
func VerifyShifted(zetaDigests []Digest, zDigest Digest, proof *ShiftedOpeningProof, gamma curve.Fr, ref *srs.SRS) error {
	if err := BatchVerifySinglePoint(zetaDigests, &proof.AtZeta, gamma, ref); err != nil {
		return err
	}
	return Verify(&zDigest, &proof.AtZetaOmega, ref)
}

func fold(digests []Digest, evaluations []curve.Fr, factors []curve.Fr) (Digest, curve.Fr) {
	var foldedEval, tmp curve.Fr
	for i := range digests {
		tmp.Mul(&evaluations[i], &factors[i])
		foldedEval.Add(&foldedEval, &tmp)
	}
	var foldedDigest Digest
	_, _ = foldedDigest.MultiExp(digests, factors, ecc.MultiExpConfig{ScalarsMont: true})
	return foldedDigest, foldedEval
}

// dividePolyByXminusA computes (f - f(a))/(x - a) via synthetic division;
// f's backing array is reused for the result. cap(f) must equal
// d.Cardinality.
func dividePolyByXminusA(d *fft.Domain, f []curve.Fr, fa, a curve.Fr) []curve.Fr {
	degree := len(f) - 1
	f = f[:d.Cardinality]
	f[0].Sub(&f[0], &fa)

	var c, t curve.Fr
	for i := len(f) - 1; i >= 0; i-- {
		t.Mul(&c, &a)
		f[i].Add(&f[i], &t)
		c, f[i] = f[i], c
	}
	return f[:degree]
}

func evalPoly(p []curve.Fr, x curve.Fr) curve.Fr {
	var res curve.Fr
	for i := len(p) - 1; i >= 0; i-- {
		res.Mul(&res, &x)
		res.Add(&res, &p[i])
	}
	return res
}

// fr2big converts a field element to its regular (non-Montgomery)
// big.Int representation, the form ScalarMultiplication expects.
func fr2big(e *curve.Fr) *big.Int {
	var out big.Int
	e.BigInt(&out)
	return &out
}
