// Package witness defines the streaming witness source abstraction: the
// prover pulls row tiles on demand from a restartable Source.
//
// Grounded on the teacher's witness.Witness shape (a flat values slice
// indexed by row, bn254witness.Witness in
// other_examples/f2b4a078_VolodymyrBg-gnark__internal-backend-bn254-plonk-prove.go.go's
// Prove signature) generalized from "whole slice in memory" to a
// pull-based Source interface that hands out at most b_blk rows per
// call. internal/prover makes a single pass and concatenates the tiles
// into full N-row columns, so the prover does hold the whole witness.
package witness

import (
	"errors"

	"github.com/logannye/tinyzkp/internal/curve"
)

// ErrShortRead is returned by a Source when fewer rows exist than the
// domain plan expected (spec §7's WitnessTooShort maps from this).
var ErrShortRead = errors.New("witness: source exhausted before N rows were produced")

// ErrWireWidth is returned when a row does not carry exactly K values
// (spec §7's WitnessTooWide/short column count).
var ErrWireWidth = errors.New("witness: row has wrong wire column count")

// Tile is one contiguous block of rows, one []curve.Fr slice per wire
// column, each of length equal to the tile's row count.
type Tile struct {
	StartRow uint64
	Columns  [][]curve.Fr // Columns[j] has len() == row count in this tile
}

// Source is the pull interface the prover's tile scheduler drives. A
// Source must support being read from the beginning more than once
// (Reset); internal/prover calls Reset and then reads the full witness
// once, before the wire commitments.
type Source interface {
	// Reset rewinds the source to row 0 for a fresh pass.
	Reset() error
	// NextTile returns the next up-to-bBlk rows as k wire columns. It
	// returns (tile, false, nil) while rows remain, and (zero, true, nil)
	// once exhausted cleanly at a domain-size-aligned boundary.
	NextTile(bBlk uint32, k uint32) (Tile, bool, error)
}

// SliceSource adapts an in-memory [][]curve.Fr (k columns, N rows each)
// into a Source, for tests and for callers who already hold the full
// witness — the common case the teacher itself always operates in.
type SliceSource struct {
	columns [][]curve.Fr
	n       uint64
	cursor  uint64
}

// NewSliceSource builds a Source from dense columns. Every column must
// already have the same row count; no padding is applied here.
func NewSliceSource(columns [][]curve.Fr) (*SliceSource, error) {
	if len(columns) == 0 {
		return nil, ErrWireWidth
	}
	n := uint64(len(columns[0]))
	for _, c := range columns {
		if uint64(len(c)) != n {
			return nil, ErrWireWidth
		}
	}
	return &SliceSource{columns: columns, n: n}, nil
}

func (s *SliceSource) Reset() error {
	s.cursor = 0
	return nil
}

func (s *SliceSource) NextTile(bBlk uint32, k uint32) (Tile, bool, error) {
	if uint32(len(s.columns)) != k {
		return Tile{}, false, ErrWireWidth
	}
	if s.cursor >= s.n {
		return Tile{}, true, nil
	}
	end := s.cursor + uint64(bBlk)
	if end > s.n {
		end = s.n
	}
	cols := make([][]curve.Fr, k)
	for j := uint32(0); j < k; j++ {
		cols[j] = s.columns[j][s.cursor:end]
	}
	tile := Tile{StartRow: s.cursor, Columns: cols}
	s.cursor = end
	return tile, false, nil
}

// Len reports the configured row count.
func (s *SliceSource) Len() uint64 { return s.n }
