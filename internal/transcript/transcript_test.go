package transcript_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/logannye/tinyzkp/internal/curve"
	"github.com/logannye/tinyzkp/internal/transcript"
)

func TestSqueezeIsDeterministic(t *testing.T) {
	build := func() curve.Fr {
		tr := transcript.New("sszkp-v2", "bn254/kzg")
		tr.AbsorbUint64(1024)
		tr.AbsorbUint32(4)
		return tr.SqueezeFr("alpha", nil)
	}
	a := build()
	b := build()
	require.True(t, a.Equal(&b))
}

func TestSqueezeDivergesOnDifferentAbsorption(t *testing.T) {
	tr1 := transcript.New("sszkp-v2", "bn254/kzg")
	tr1.AbsorbUint64(1024)
	a := tr1.SqueezeFr("alpha", nil)

	tr2 := transcript.New("sszkp-v2", "bn254/kzg")
	tr2.AbsorbUint64(2048)
	b := tr2.SqueezeFr("alpha", nil)

	require.False(t, a.Equal(&b))
}

func TestSuccessiveSqueezesDiffer(t *testing.T) {
	tr := transcript.New("sszkp-v2", "bn254/kzg")
	a := tr.SqueezeFr("zeta", nil)
	b := tr.SqueezeFr("zeta", nil)
	require.False(t, a.Equal(&b), "re-squeezing the same label must advance the duplex state")
}

func TestRejectZeroOrNthRoot(t *testing.T) {
	reject := transcript.RejectZeroOrNthRoot(8)

	var zero curve.Fr
	require.True(t, reject(zero))

	var one curve.Fr
	one.SetOne()
	require.True(t, reject(one), "1 is an 8th root of unity")

	var notRoot curve.Fr
	notRoot.SetUint64(3)
	require.False(t, reject(notRoot))
}

func TestSqueezeFrNeverReturnsRejected(t *testing.T) {
	tr := transcript.New("sszkp-v2", "bn254/kzg")
	reject := transcript.RejectZeroOrNthRoot(8)
	zeta := tr.SqueezeFr("zeta", reject)
	require.False(t, reject(zeta))
}
