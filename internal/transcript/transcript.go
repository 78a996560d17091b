// Package transcript implements the canonical Fiat–Shamir duplex-sponge
// transcript of spec §4.3, squeezing β, γ, α, ζ and v at the points the
// protocol specifies. The prover and verifier absorb, in this order: the
// protocol/curve labels, N and k, the selector and wire commitments, Z,
// Q, and the claimed evaluations. The rest of the domain header (c, b_blk,
// basis tag) and the SRS digests are not absorbed.
//
// The Bind/ComputeChallenge vocabulary is grounded on
// fiatshamir.NewTranscript(...).Bind(label, bytes)/.ComputeChallenge(label)
// as used identically in
// other_examples/91597591_ThomasPiellard-gnark__internal-backend-bn254-plonk-verify.go.go
// and famouswizard-gnark/backend/fflonk/bn254/prove.go. Unlike the
// teacher's SHA-256-backed transcript, this one is a genuine duplex sponge
// built on SHAKE256 (golang.org/x/crypto/sha3), matching the "duplex-sponge
// Fiat–Shamir transcript" language of spec §2.4.
package transcript

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/sha3"

	"github.com/logannye/tinyzkp/internal/curve"
)

// ErrChallengeID names an unknown challenge label. No function in this
// package returns it: SqueezeFr accepts any label.
var ErrChallengeID = errors.New("transcript: unknown challenge label")

// Transcript is a single-proof-lifetime, append-only duplex sponge. It is
// not safe for concurrent use: spec §5 requires "Transcript absorption is
// strictly sequential and single-threaded per proof."
type Transcript struct {
	sponge sha3.ShakeHash
	// squeezeCount is the per-label one-byte counter mixed into each
	// squeeze, so repeated squeezes of one label differ. The duplex
	// property (output feeds back into the state) comes from squeeze
	// writing its output back into sponge.
	squeezeCount map[string]uint8
}

// New constructs a transcript and immediately absorbs the fixed protocol
// and curve labels (spec §4.3 items 1-2).
func New(protocolLabel, curveLabel string) *Transcript {
	t := &Transcript{
		sponge:       sha3.NewShake256(),
		squeezeCount: make(map[string]uint8),
	}
	t.absorbLenPrefixed([]byte(protocolLabel))
	t.absorbLenPrefixed([]byte(curveLabel))
	return t
}

func (t *Transcript) absorbLenPrefixed(b []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	_, _ = t.sponge.Write(lenBuf[:])
	_, _ = t.sponge.Write(b)
}

// AbsorbBytes absorbs an arbitrary length-prefixed byte string.
func (t *Transcript) AbsorbBytes(b []byte) {
	t.absorbLenPrefixed(b)
}

// AbsorbUint64 absorbs a big-endian u64 (domain header N, b_blk, etc.).
func (t *Transcript) AbsorbUint64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	t.AbsorbBytes(buf[:])
}

// AbsorbUint32 absorbs a big-endian u32 (k, b_blk).
func (t *Transcript) AbsorbUint32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	t.AbsorbBytes(buf[:])
}

// AbsorbByte absorbs a single tag byte (basis_tag, etc.) without a length
// prefix — single bytes are unambiguous.
func (t *Transcript) AbsorbByte(b byte) {
	_, _ = t.sponge.Write([]byte{b})
}

// AbsorbFr absorbs a field element using its canonical big-endian
// encoding.
func (t *Transcript) AbsorbFr(e curve.Fr) {
	b := e.Bytes()
	t.AbsorbBytes(b[:])
}

// AbsorbPointG1 absorbs a G1 point's compressed affine encoding.
func (t *Transcript) AbsorbPointG1(p curve.G1Affine) {
	b := p.Bytes()
	t.AbsorbBytes(b[:])
}

// AbsorbPointG2 absorbs a G2 point's compressed affine encoding.
func (t *Transcript) AbsorbPointG2(p curve.G2Affine) {
	b := p.Bytes()
	t.AbsorbBytes(b[:])
}

// squeeze draws n bytes from the sponge for the given label, then feeds
// the drawn bytes back in (the duplex property): later squeezes/absorbs
// are bound to everything squeezed so far, not just what was absorbed.
//
// sha3's ShakeHash forbids Write after Read on the same handle ("sha3:
// Write after Read"), so the main sponge is never read directly: a Clone
// of the running state absorbs the label and re-squeeze counter and is
// the one actually drained, after which its output is fed back into the
// main sponge via Write, keeping t.sponge permanently in absorbing mode.
func (t *Transcript) squeeze(label string, n int) []byte {
	out := make([]byte, n)
	clone := t.sponge.Clone()
	_, _ = clone.Write([]byte(label))
	_, _ = clone.Write([]byte{t.squeezeCount[label]})
	t.squeezeCount[label]++
	_, _ = clone.Read(out)
	// feed the output back so the next absorb/squeeze depends on it
	_, _ = t.sponge.Write(out)
	return out
}

// SqueezeFr draws a field challenge for label, rejecting (and
// deterministically re-squeezing, spec §4.3 "Re-squeeze is deterministic:
// append a one-byte counter and repeat") values rejected by reject.
// reject is nil for unconstrained challenges (β, γ, v); ζ passes a reject
// function that excludes 0 and the Nth roots of unity.
func (t *Transcript) SqueezeFr(label string, reject func(curve.Fr) bool) curve.Fr {
	for {
		raw := t.squeeze(label, curve.FrBytes)
		var e curve.Fr
		e.SetBytes(raw)
		if reject == nil || !reject(e) {
			return e
		}
	}
}

// RejectZeroOrNthRoot builds the ζ rejection predicate of spec §4.3: ζ
// must be nonzero and must not be an Nth root of unity (on the standard
// domain, c = 1, an Nth root makes Zh(ζ) == 0 and collapses the quotient
// identity into division by zero).
// N is always a power of two (the domain planner's invariant), so ζ^N is
// computed by repeated squaring rather than a general big.Int exponent.
func RejectZeroOrNthRoot(n uint64) func(curve.Fr) bool {
	return func(e curve.Fr) bool {
		if e.IsZero() {
			return true
		}
		p := e
		for k := n; k > 1; k >>= 1 {
			p.Square(&p)
		}
		var one curve.Fr
		one.SetOne()
		return p.Equal(&one)
	}
}
