// Package curve re-exports the BN254 field, group and pairing primitives
// the rest of the engine builds on. The field/curve layer is treated as an
// external library concern (gnark-crypto), not reimplemented here: this
// file only narrows gnark-crypto's bn254 API to the shapes tinyzkp needs,
// the way the teacher's plonk backend aliases curve types at the top of
// prove.go/setup.go.
package curve

import (
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

type (
	// Fr is an element of the BN254 scalar field.
	Fr = fr.Element
	// G1Affine is a compressed-representable point on the BN254 G1 curve.
	G1Affine = bn254.G1Affine
	// G1Jac is the Jacobian form of a G1 point, used for accumulation.
	G1Jac = bn254.G1Jac
	// G2Affine is a point on the BN254 G2 curve.
	G2Affine = bn254.G2Affine
	// G2Jac is the Jacobian form of a G2 point.
	G2Jac = bn254.G2Jac
)

// FrBytes is the canonical big-endian encoded size of an Fr element.
const FrBytes = fr.Bytes

// G1CompressedSize is the size in bytes of a compressed G1 affine point.
const G1CompressedSize = bn254.SizeOfG1AffineCompressed

// G2CompressedSize is the size in bytes of a compressed G2 affine point.
const G2CompressedSize = bn254.SizeOfG2AffineCompressed

// MultiExpConfig is the configuration passed to MultiExp calls.
type MultiExpConfig = ecc.MultiExpConfig

// Generators returns the canonical BN254 generators for G1 and G2.
func Generators() (g1 G1Affine, g2 G2Affine) {
	_, _, g1, g2 = bn254.Generators()
	return
}

// PairingCheck evaluates e(p0,q0)*e(p1,q1)*...==1 and reports whether the
// product is the identity in Gt.
func PairingCheck(p []G1Affine, q []G2Affine) (bool, error) {
	return bn254.PairingCheck(p, q)
}

// FrFromUint64 is a small convenience constructor used throughout the
// domain planner and quotient compositor.
func FrFromUint64(v uint64) Fr {
	var e Fr
	e.SetUint64(v)
	return e
}
