package curve_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/logannye/tinyzkp/internal/curve"
)

func TestGeneratorsPair(t *testing.T) {
	g1, g2 := curve.Generators()
	require.False(t, g1.IsInfinity())
	require.False(t, g2.IsInfinity())
}

func TestPairingCheckGeneratorIdentity(t *testing.T) {
	// e(G1, G2) * e(-G1, G2) == 1
	g1, g2 := curve.Generators()
	var negG1 curve.G1Affine
	negG1.Neg(&g1)

	ok, err := curve.PairingCheck([]curve.G1Affine{g1, negG1}, []curve.G2Affine{g2, g2})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPairingCheckDetectsMismatch(t *testing.T) {
	g1, g2 := curve.Generators()
	var twoG1 curve.G1Affine
	twoG1.ScalarMultiplication(&g1, big.NewInt(2))
	var negG1 curve.G1Affine
	negG1.Neg(&g1)

	ok, err := curve.PairingCheck([]curve.G1Affine{twoG1, negG1}, []curve.G2Affine{g2, g2})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFrFromUint64(t *testing.T) {
	a := curve.FrFromUint64(7)
	var b curve.Fr
	b.SetUint64(7)
	require.True(t, a.Equal(&b))
}
