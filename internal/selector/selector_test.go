package selector_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/logannye/tinyzkp/internal/curve"
	"github.com/logannye/tinyzkp/internal/selector"
)

func TestDenseColumnEval(t *testing.T) {
	vals := []curve.Fr{curve.FrFromUint64(1), curve.FrFromUint64(2), curve.FrFromUint64(3), curve.FrFromUint64(4)}
	col, err := selector.NewDense(4, vals)
	require.NoError(t, err)

	for i, v := range vals {
		got := col.Eval(uint64(i))
		require.True(t, got.Equal(&v))
	}
	require.Equal(t, vals, col.Materialize())
}

func TestSparseColumnEvalAndZeroElsewhere(t *testing.T) {
	rows := []int{1, 3}
	vals := []curve.Fr{curve.FrFromUint64(5), curve.FrFromUint64(9)}
	col, err := selector.NewSparse(4, rows, vals)
	require.NoError(t, err)

	var zero curve.Fr
	got0 := col.Eval(0)
	require.True(t, got0.Equal(&zero))

	got1 := col.Eval(1)
	require.True(t, got1.Equal(&vals[0]))

	got3 := col.Eval(3)
	require.True(t, got3.Equal(&vals[1]))
}

func TestSparseColumnRejectsDuplicateRow(t *testing.T) {
	_, err := selector.NewSparse(4, []int{1, 1}, []curve.Fr{curve.FrFromUint64(1), curve.FrFromUint64(2)})
	require.ErrorIs(t, err, selector.ErrDuplicateRow)
}

func TestSparseColumnRejectsOutOfRange(t *testing.T) {
	_, err := selector.NewSparse(4, []int{4}, []curve.Fr{curve.FrFromUint64(1)})
	require.ErrorIs(t, err, selector.ErrRowOutOfRange)
}

func TestPeriodicColumn(t *testing.T) {
	value := curve.FrFromUint64(11)
	col, err := selector.NewPeriodic(8, 4, 1, value)
	require.NoError(t, err)

	var zero curve.Fr
	for row := uint64(0); row < 8; row++ {
		got := col.Eval(row)
		if row%4 == 1 {
			require.True(t, got.Equal(&value), "row %d", row)
		} else {
			require.True(t, got.Equal(&zero), "row %d", row)
		}
	}
}

func TestPeriodicColumnRejectsNonDivisor(t *testing.T) {
	_, err := selector.NewPeriodic(8, 3, 0, curve.FrFromUint64(1))
	require.ErrorIs(t, err, selector.ErrBadPeriod)
}

func TestMaterializeMatchesEvalForAllEncodings(t *testing.T) {
	dense, err := selector.NewDense(4, []curve.Fr{curve.FrFromUint64(1), curve.FrFromUint64(2), curve.FrFromUint64(3), curve.FrFromUint64(4)})
	require.NoError(t, err)
	sparse, err := selector.NewSparse(4, []int{2}, []curve.Fr{curve.FrFromUint64(7)})
	require.NoError(t, err)
	periodic, err := selector.NewPeriodic(4, 2, 0, curve.FrFromUint64(3))
	require.NoError(t, err)

	for _, col := range []*struct {
		name string
		c    interface {
			Eval(uint64) curve.Fr
			Materialize() []curve.Fr
		}
	}{
		{"dense", dense},
		{"sparse", sparse},
		{"periodic", periodic},
	} {
		mat := col.c.Materialize()
		for i, v := range mat {
			got := col.c.Eval(uint64(i))
			require.True(t, got.Equal(&v), "%s row %d", col.name, i)
		}
	}
}
