package srs_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/logannye/tinyzkp/internal/srs"
	"github.com/logannye/tinyzkp/internal/testutil"
)

func TestWriteToReadFromRoundTrip(t *testing.T) {
	want := testutil.NewSRS(17, 1)

	var buf bytes.Buffer
	n, err := want.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)

	var got srs.SRS
	_, err = got.ReadFrom(&buf)
	require.NoError(t, err)

	require.Equal(t, len(want.G1), len(got.G1))
	for i := range want.G1 {
		require.True(t, want.G1[i].Equal(&got.G1[i]), "G1[%d]", i)
	}
	require.True(t, want.G2[0].Equal(&got.G2[0]))
	require.True(t, want.G2[1].Equal(&got.G2[1]))
}

func TestDigestIsDeterministicAndBindsContent(t *testing.T) {
	a := testutil.NewSRS(9, 1)
	b := testutil.NewSRS(9, 1)
	c := testutil.NewSRS(9, 2)

	da, err := a.Digest(srs.DigestBlake3)
	require.NoError(t, err)
	db, err := b.Digest(srs.DigestBlake3)
	require.NoError(t, err)
	dc, err := c.Digest(srs.DigestBlake3)
	require.NoError(t, err)

	require.Equal(t, da, db, "same content must digest identically")
	require.NotEqual(t, da, dc, "different toxic waste must digest differently")
}

func TestDigestAlgorithmChoiceMatters(t *testing.T) {
	a := testutil.NewSRS(5, 1)
	d1, err := a.Digest(srs.DigestBlake3)
	require.NoError(t, err)
	d2, err := a.Digest(srs.DigestSHA256)
	require.NoError(t, err)
	require.NotEqual(t, d1, d2)
}

func TestVerifyPairingSanity(t *testing.T) {
	good := testutil.NewSRS(4, 1)
	ok, err := good.VerifyPairingSanity()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReadFromRejectsBadMagic(t *testing.T) {
	var got srs.SRS
	_, err := got.ReadFrom(bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}))
	require.ErrorIs(t, err, srs.ErrCorrupt)
}

func TestLoaderNotReadyThenReady(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "srs.bin")

	s := testutil.NewSRS(9, 1)
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = s.WriteTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	loader := srs.NewLoader(path, srs.DigestBlake3)

	deadline := time.Now().Add(2 * time.Second)
	var loaded *srs.SRS
	for time.Now().Before(deadline) {
		got, _, err := loader.Get()
		if err == nil {
			loaded = got
			break
		}
		require.ErrorIs(t, err, srs.ErrNotReady)
		time.Sleep(time.Millisecond)
	}
	require.NotNil(t, loaded, "loader never became ready")
	require.Equal(t, len(s.G1), len(loaded.G1))
}

func TestLoaderSurfacesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")
	require.NoError(t, os.WriteFile(path, []byte("not an srs"), 0o600))

	loader := srs.NewLoader(path, srs.DigestBlake3)

	deadline := time.Now().Add(2 * time.Second)
	var gotErr error
	for time.Now().Before(deadline) {
		_, _, err := loader.Get()
		if err != nil && err != srs.ErrNotReady {
			gotErr = err
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.Error(t, gotErr)
}
