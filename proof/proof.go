// Package proof implements the exact binary wire layout a TinyZKP proof
// is exchanged in: a fixed header (curve/domain parameters and SRS
// digests), a body of commitments and evaluations, and a CRC32 trailer.
//
// The (de)serialization convention — implement io.ReaderFrom and
// io.WriterTo, read/write length-prefixed point lists in the order they
// were committed — is grounded on mimoo-gnark-crypto's own KZG SRS type
// doc comment ("implements io.ReaderFrom and io.WriterTo") and mirrors
// internal/srs's WriteTo/ReadFrom pair exactly; no third-party framing
// library is used (see DESIGN.md).
package proof

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/logannye/tinyzkp/internal/curve"
	"github.com/logannye/tinyzkp/internal/domain"
	"github.com/logannye/tinyzkp/internal/kzg"
	"github.com/logannye/tinyzkp/internal/prover"
)

const (
	magic         uint32 = 0x535a4b50 // "SZKP"
	formatVersion uint16 = 2
	curveTagBN254 uint16 = 1

	basisTagEval  uint8 = 0
	basisTagCoeff uint8 = 1
)

var (
	ErrBadMagic         = errors.New("proof: bad magic bytes")
	ErrUnsupportedBasis = errors.New("proof: unsupported basis_tag")
	ErrUnsupportedCurve = errors.New("proof: unsupported curve_tag")
	ErrTruncated        = errors.New("proof: truncated or short read")
	ErrCRCMismatch      = errors.New("proof: CRC32 trailer mismatch")
)

// Proof is the on-wire form of a prover.Result: commitments and
// evaluations plus the header fields needed to replay the domain without
// a side channel.
type Proof struct {
	N        uint64
	K        uint32
	BBlk     uint32
	ZhC      curve.Fr
	Omega    curve.Fr
	BasisTag uint8 // 0 = evaluation basis, 1 = coefficient basis
	G1Digest [32]byte
	G2Digest [32]byte

	Selectors  []kzg.Digest
	Wires      []kzg.Digest
	Z          kzg.Digest
	Q          kzg.Digest
	Evals      []curve.Fr // selectors..wires..z..q, evaluated at zeta
	ZOmegaEval curve.Fr
	Opening    kzg.ShiftedOpeningProof
}

// FromResult builds the wire-format Proof from a prover.Result and the
// domain parameters/SRS digests it was produced against. The evaluation
// basis is always basisTagEval: the streaming prover never materializes
// a coefficient-basis witness column.
func FromResult(res *prover.Result, params domain.Params, g1Digest, g2Digest [32]byte) Proof {
	return Proof{
		N:          params.N,
		K:          params.K,
		BBlk:       params.BBlk,
		ZhC:        params.C,
		Omega:      params.Omega,
		BasisTag:   basisTagEval,
		G1Digest:   g1Digest,
		G2Digest:   g2Digest,
		Selectors:  res.Selectors,
		Wires:      res.Wires,
		Z:          res.Z,
		Q:          res.Q,
		Evals:      res.Opening.AtZeta.ClaimedValues,
		ZOmegaEval: res.Opening.AtZetaOmega.ClaimedValue,
		Opening:    res.Opening,
	}
}

// ToResult reconstructs the prover.Result shape Verify expects, restoring
// Zeta/ZetaOmega from the embedded opening points rather than trusting a
// separately-carried copy (there isn't one on the wire — the opening
// proof's own point fields are authoritative).
func (p *Proof) ToResult() *prover.Result {
	return &prover.Result{
		Selectors:  p.Selectors,
		Wires:      p.Wires,
		Z:          p.Z,
		Q:          p.Q,
		Zeta:       p.Opening.AtZeta.Point,
		ZetaOmega:  p.Opening.AtZetaOmega.Point,
		Evals:      p.Evals,
		ZOmegaEval: p.ZOmegaEval,
		Opening:    p.Opening,
	}
}

// WriteTo serializes the proof in the header/body/trailer layout above,
// implements io.WriterTo.
func (p *Proof) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer

	var hdr [4 + 2 + 2 + 8 + 4 + 4 + 32 + 32 + 1 + 32 + 32]byte
	off := 0
	binary.BigEndian.PutUint32(hdr[off:], magic)
	off += 4
	binary.BigEndian.PutUint16(hdr[off:], formatVersion)
	off += 2
	binary.BigEndian.PutUint16(hdr[off:], curveTagBN254)
	off += 2
	binary.BigEndian.PutUint64(hdr[off:], p.N)
	off += 8
	binary.BigEndian.PutUint32(hdr[off:], p.K)
	off += 4
	binary.BigEndian.PutUint32(hdr[off:], p.BBlk)
	off += 4
	zhBytes := p.ZhC.Bytes()
	copy(hdr[off:], zhBytes[:])
	off += 32
	omegaBytes := p.Omega.Bytes()
	copy(hdr[off:], omegaBytes[:])
	off += 32
	hdr[off] = p.BasisTag
	off++
	copy(hdr[off:], p.G1Digest[:])
	off += 32
	copy(hdr[off:], p.G2Digest[:])
	off += 32
	buf.Write(hdr[:])

	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], uint16(len(p.Selectors)))
	buf.Write(u16[:])
	for _, c := range p.Selectors {
		b := c.Bytes()
		buf.Write(b[:])
	}
	for _, c := range p.Wires {
		b := c.Bytes()
		buf.Write(b[:])
	}
	zBytes := p.Z.Bytes()
	buf.Write(zBytes[:])
	qBytes := p.Q.Bytes()
	buf.Write(qBytes[:])

	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(len(p.Evals)))
	buf.Write(u32[:])
	for _, e := range p.Evals {
		b := e.Bytes()
		buf.Write(b[:])
	}
	zOmegaBytes := p.ZOmegaEval.Bytes()
	buf.Write(zOmegaBytes[:])

	// p.Opening.AtZeta.ClaimedValues duplicates Evals by construction (see
	// FromResult), so only the opening's H commitment and point are
	// written here; decoding restores ClaimedValues from Evals.
	hZetaBytes := p.Opening.AtZeta.H.Bytes()
	buf.Write(hZetaBytes[:])
	pointZetaBytes := p.Opening.AtZeta.Point.Bytes()
	buf.Write(pointZetaBytes[:])

	hOmegaBytes := p.Opening.AtZetaOmega.H.Bytes()
	buf.Write(hOmegaBytes[:])
	pointOmegaBytes := p.Opening.AtZetaOmega.Point.Bytes()
	buf.Write(pointOmegaBytes[:])
	claimedOmegaBytes := p.Opening.AtZetaOmega.ClaimedValue.Bytes()
	buf.Write(claimedOmegaBytes[:])

	sum := crc32.ChecksumIEEE(buf.Bytes())
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], sum)
	buf.Write(trailer[:])

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadFrom deserializes a proof produced by WriteTo, validating the CRC32
// trailer before trusting any field. Implements io.ReaderFrom.
func (p *Proof) ReadFrom(r io.Reader) (int64, error) {
	all, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if len(all) < 4 {
		return int64(len(all)), ErrTruncated
	}
	body, trailer := all[:len(all)-4], all[len(all)-4:]
	want := binary.BigEndian.Uint32(trailer)
	got := crc32.ChecksumIEEE(body)
	if want != got {
		return int64(len(all)), ErrCRCMismatch
	}

	br := bytes.NewReader(body)
	read := func(n int) ([]byte, error) {
		b := make([]byte, n)
		if _, err := io.ReadFull(br, b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return b, nil
	}

	hdr, err := read(4 + 2 + 2 + 8 + 4 + 4 + 32 + 32 + 1 + 32 + 32)
	if err != nil {
		return 0, err
	}
	off := 0
	if binary.BigEndian.Uint32(hdr[off:]) != magic {
		return 0, ErrBadMagic
	}
	off += 4
	off += 2 // version: accepted without further dispatch, only one exists
	curveTag := binary.BigEndian.Uint16(hdr[off:])
	off += 2
	if curveTag != curveTagBN254 {
		return 0, ErrUnsupportedCurve
	}
	p.N = binary.BigEndian.Uint64(hdr[off:])
	off += 8
	p.K = binary.BigEndian.Uint32(hdr[off:])
	off += 4
	p.BBlk = binary.BigEndian.Uint32(hdr[off:])
	off += 4
	p.ZhC.SetBytes(hdr[off : off+32])
	off += 32
	p.Omega.SetBytes(hdr[off : off+32])
	off += 32
	p.BasisTag = hdr[off]
	off++
	if p.BasisTag != basisTagEval && p.BasisTag != basisTagCoeff {
		return 0, ErrUnsupportedBasis
	}
	copy(p.G1Digest[:], hdr[off:off+32])
	off += 32
	copy(p.G2Digest[:], hdr[off:off+32])

	nSelBytes, err := read(2)
	if err != nil {
		return 0, err
	}
	nSel := int(binary.BigEndian.Uint16(nSelBytes))
	p.Selectors = make([]kzg.Digest, nSel)
	for i := range p.Selectors {
		b, err := read(curve.G1CompressedSize)
		if err != nil {
			return 0, err
		}
		if _, err := p.Selectors[i].SetBytes(b); err != nil {
			return 0, fmt.Errorf("%w: selector %d: %v", ErrTruncated, i, err)
		}
	}
	p.Wires = make([]kzg.Digest, p.K)
	for i := range p.Wires {
		b, err := read(curve.G1CompressedSize)
		if err != nil {
			return 0, err
		}
		if _, err := p.Wires[i].SetBytes(b); err != nil {
			return 0, fmt.Errorf("%w: wire %d: %v", ErrTruncated, i, err)
		}
	}
	if b, err := read(curve.G1CompressedSize); err != nil {
		return 0, err
	} else if _, err := p.Z.SetBytes(b); err != nil {
		return 0, fmt.Errorf("%w: z commitment: %v", ErrTruncated, err)
	}
	if b, err := read(curve.G1CompressedSize); err != nil {
		return 0, err
	} else if _, err := p.Q.SetBytes(b); err != nil {
		return 0, fmt.Errorf("%w: q commitment: %v", ErrTruncated, err)
	}

	nEvalBytes, err := read(4)
	if err != nil {
		return 0, err
	}
	nEval := int(binary.BigEndian.Uint32(nEvalBytes))
	p.Evals = make([]curve.Fr, nEval)
	for i := range p.Evals {
		b, err := read(curve.FrBytes)
		if err != nil {
			return 0, err
		}
		p.Evals[i].SetBytes(b)
	}
	if b, err := read(curve.FrBytes); err != nil {
		return 0, err
	} else {
		p.ZOmegaEval.SetBytes(b)
	}

	if b, err := read(curve.G1CompressedSize); err != nil {
		return 0, err
	} else if _, err := p.Opening.AtZeta.H.SetBytes(b); err != nil {
		return 0, fmt.Errorf("%w: opening H (zeta): %v", ErrTruncated, err)
	}
	if b, err := read(curve.FrBytes); err != nil {
		return 0, err
	} else {
		p.Opening.AtZeta.Point.SetBytes(b)
	}
	p.Opening.AtZeta.ClaimedValues = p.Evals

	if b, err := read(curve.G1CompressedSize); err != nil {
		return 0, err
	} else if _, err := p.Opening.AtZetaOmega.H.SetBytes(b); err != nil {
		return 0, fmt.Errorf("%w: opening H (omega*zeta): %v", ErrTruncated, err)
	}
	if b, err := read(curve.FrBytes); err != nil {
		return 0, err
	} else {
		p.Opening.AtZetaOmega.Point.SetBytes(b)
	}
	if b, err := read(curve.FrBytes); err != nil {
		return 0, err
	} else {
		p.Opening.AtZetaOmega.ClaimedValue.SetBytes(b)
	}

	return int64(len(all)), nil
}
