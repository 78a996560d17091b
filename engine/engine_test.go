package engine_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"
	"github.com/stretchr/testify/require"

	"github.com/logannye/tinyzkp/engine"
	"github.com/logannye/tinyzkp/internal/air"
	"github.com/logannye/tinyzkp/internal/curve"
	"github.com/logannye/tinyzkp/internal/domain"
	"github.com/logannye/tinyzkp/internal/testutil"
	"github.com/logannye/tinyzkp/internal/witness"
	"github.com/logannye/tinyzkp/proof"
)

// multiplicationCircuit is spec §8's "tiny valid proof" AIR: every row
// must satisfy wire1 == 2*wire0 and wire2 == 3*wire0. There are no copy
// constraints between cells, so the identity permutation keeps the grand
// product Z pinned to the constant polynomial 1.
func multiplicationCircuit(n uint64) engine.AIR {
	k := uint32(3)
	d := fft.NewDomain(n, fft.WithoutPrecompute())
	tables := air.ComputePermutationTables(d, k, testutil.TrivialPermutation(k, n))
	gate := func(wireVals, selectorVals []curve.Fr) curve.Fr {
		var two, three, diff1, diff2, out curve.Fr
		two.SetUint64(2)
		three.SetUint64(3)
		diff1.Mul(&two, &wireVals[0])
		diff1.Sub(&wireVals[1], &diff1)
		diff2.Mul(&three, &wireVals[0])
		diff2.Sub(&wireVals[2], &diff2)
		out.Add(&diff1, &diff2)
		return out
	}
	return engine.AIR{Tables: tables, GateIdentity: gate}
}

func multiplicationWitness(t *testing.T, rows uint64) witness.Source {
	t.Helper()
	col0 := make([]curve.Fr, rows)
	col1 := make([]curve.Fr, rows)
	col2 := make([]curve.Fr, rows)
	for i := uint64(0); i < rows; i++ {
		v := i + 1
		col0[i].SetUint64(v)
		col1[i].SetUint64(2 * v)
		col2[i].SetUint64(3 * v)
	}
	src, err := witness.NewSliceSource([][]curve.Fr{col0, col1, col2})
	require.NoError(t, err)
	return src
}

func newTestEngine(t *testing.T, srsSize uint64, seed int64, opts ...engine.Option) *engine.Engine {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "srs.bin")
	s := testutil.NewSRS(srsSize, seed)
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = s.WriteTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	e, err := engine.New(append([]engine.Option{engine.WithSRSPath(path)}, opts...)...)
	require.NoError(t, err)
	waitReady(t, e)
	return e
}

func waitReady(t *testing.T, e *engine.Engine) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, err := e.DomainPlan(1, 1, 0)
		if err == nil {
			return
		}
		if kerr, ok := err.(*engine.Error); ok && kerr.Kind() == engine.KindSrsNotReady {
			time.Sleep(2 * time.Millisecond)
			continue
		}
		require.NoError(t, err)
	}
	t.Fatal("srs loader never became ready")
}

func proveAndSerialize(t *testing.T, e *engine.Engine, rows uint64, circuit engine.AIR, src witness.Source) []byte {
	t.Helper()
	p, err := e.Prove(context.Background(), rows, src, circuit)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = p.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestProveVerifyTinyValidProof(t *testing.T) {
	const rows = 8
	e := newTestEngine(t, 32, 1)

	circuit := multiplicationCircuit(rows)
	raw := proveAndSerialize(t, e, rows, circuit, multiplicationWitness(t, rows))

	var parsed proof.Proof
	_, err := parsed.ReadFrom(bytes.NewReader(raw))
	require.NoError(t, err)

	params, err := e.DomainPlan(rows, 3, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(8), params.N)
	require.Equal(t, uint32(2), params.BBlk)

	require.NoError(t, e.Verify(circuit, params, &parsed))
}

func TestProveVerifyFixedOddTileSize(t *testing.T) {
	// spec §8 scenario 2: an odd, non-dividing b_blk still plans cleanly
	// and the resulting proof still verifies.
	const rows = 8
	e := newTestEngine(t, 32, 2, engine.WithTileSizePolicy(domain.PolicyFixed, 3))

	circuit := multiplicationCircuit(rows)
	raw := proveAndSerialize(t, e, rows, circuit, multiplicationWitness(t, rows))

	var parsed proof.Proof
	_, err := parsed.ReadFrom(bytes.NewReader(raw))
	require.NoError(t, err)

	params, err := e.DomainPlan(rows, 3, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(3), params.BBlk)

	require.NoError(t, e.Verify(circuit, params, &parsed))
}

func TestVerifyRejectsTamperedProof(t *testing.T) {
	const rows = 8
	e := newTestEngine(t, 32, 3)
	circuit := multiplicationCircuit(rows)
	raw := proveAndSerialize(t, e, rows, circuit, multiplicationWitness(t, rows))

	params, err := e.DomainPlan(rows, 3, 0)
	require.NoError(t, err)

	for _, off := range []int{4, len(raw) / 2, len(raw) - 1} {
		mutant := append([]byte(nil), raw...)
		mutant[off] ^= 0xFF

		var parsed proof.Proof
		_, err := parsed.ReadFrom(bytes.NewReader(mutant))
		if err != nil {
			// CRC (or a structural decode) already caught it.
			continue
		}
		require.Error(t, e.Verify(circuit, params, &parsed), "offset %d should have been rejected", off)
	}
}

func TestVerifyRejectsSRSDigestMismatch(t *testing.T) {
	const rows = 8
	prover := newTestEngine(t, 32, 4)
	circuit := multiplicationCircuit(rows)
	raw := proveAndSerialize(t, prover, rows, circuit, multiplicationWitness(t, rows))

	var parsed proof.Proof
	_, err := parsed.ReadFrom(bytes.NewReader(raw))
	require.NoError(t, err)

	params, err := prover.DomainPlan(rows, 3, 0)
	require.NoError(t, err)

	otherSRS := newTestEngine(t, 32, 5)
	err = otherSRS.Verify(circuit, params, &parsed)
	require.Error(t, err)
	kerr, ok := err.(*engine.Error)
	require.True(t, ok)
	require.Equal(t, engine.KindSrsDigestMismatch, kerr.Kind())
}

func TestDomainPlanOversizeRejected(t *testing.T) {
	e := newTestEngine(t, 32, 6, engine.WithMaxN(16))
	_, err := e.DomainPlan(1<<20, 3, 0)
	require.Error(t, err)
	kerr, ok := err.(*engine.Error)
	require.True(t, ok)
	require.Equal(t, engine.KindDomainTooLarge, kerr.Kind())
}

func TestDomainPlanIdempotent(t *testing.T) {
	e := newTestEngine(t, 4096+1, 7)
	p1, err := e.DomainPlan(3000, 2, 73)
	require.NoError(t, err)
	require.Equal(t, uint64(4096), p1.N)

	p2, err := e.DomainPlan(p1.N, 2, uint32(p1.BBlk))
	require.NoError(t, err)
	require.Equal(t, p1.N, p2.N)
	require.True(t, p1.Omega.Equal(&p2.Omega))
}
