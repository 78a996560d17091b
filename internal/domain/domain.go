// Package domain implements the AIR/domain planner (spec §4.1): given a
// requested row count it chooses the evaluation domain size N, a
// primitive Nth root of unity ω, the vanishing-polynomial constant c, the
// streaming tile size b_blk, and the coset shift used by the quotient
// compositor.
//
// Grounded on the fft.Domain construction and coset-shift bookkeeping in
// BaoNinh2808-gnark/backend/plonk/bls12-377/setup.go (initFFTDomain,
// vk.CosetShift) and famouswizard-gnark/backend/fflonk/bn254/prove.go
// (domain0/domain1, FrMultiplicativeGen-based shifters).
package domain

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"

	"github.com/logannye/tinyzkp/internal/curve"
)

var (
	// ErrDomainTooLarge is returned when the requested row count exceeds
	// either the hard safety cap or the field's two-adicity.
	ErrDomainTooLarge = errors.New("domain: requested domain exceeds capacity")
	// ErrInvalidVanishingConstant is returned when c has no Nth root in Fr,
	// i.e. no coset of size N vanishes for Zh(X) = X^N - c.
	ErrInvalidVanishingConstant = errors.New("domain: vanishing constant has no Nth root")
)

// Params is the planner's output, spec §3's DomainParams plus the
// diagnostic fields spec §4.1 asks for (omega_hex, memory_hint).
type Params struct {
	TRequested uint64
	N          uint64
	K          uint32 // wire column count, carried for memory_hint only
	Omega      curve.Fr
	OmegaHex   string
	C          curve.Fr // vanishing constant; 1 selects the standard domain
	CosetShift curve.Fr // the "shift" s.t. shift^N == C; shift==1 when C==1
	BBlk       uint32
	CosetGen   curve.Fr // fixed generator g used by the quotient compositor
	MemoryHint uint64   // estimated peak field-element count
}

// TileSizePolicy controls how the planner picks a default b_blk when the
// caller does not pin one explicitly.
type TileSizePolicy int

const (
	// PolicySqrt picks b_blk = ceil(sqrt(N)), rounded to a divisor of N
	// when one is close by. This is the spec default.
	PolicySqrt TileSizePolicy = iota
	// PolicyFixed uses a caller-provided tile size verbatim (clamped).
	PolicyFixed
	// PolicyAuto behaves like PolicySqrt today; it is a distinct policy
	// value so future heuristics (e.g. cache-aware sizing) can be swapped
	// in without changing the Config shape.
	PolicyAuto
)

// Config are the planner's inputs (spec §4.1).
type Config struct {
	Rows     uint64
	K        uint32
	C        *curve.Fr // nil => 1 (standard domain)
	BBlk     uint32    // 0 => use Policy
	Policy   TileSizePolicy
	Fixed    uint32 // used only when Policy == PolicyFixed and BBlk == 0
	MaxN     uint64 // 0 => no extra cap beyond field two-adicity
	SRSCap   uint64 // SRS capacity (number of G1 powers - 1); 0 => unchecked
}

// Plan executes the domain planner contract of spec §4.1.
func Plan(cfg Config) (Params, error) {
	if cfg.Rows == 0 {
		cfg.Rows = 1
	}

	n := nextPowerOfTwo(cfg.Rows)

	twoAdicity := fieldTwoAdicity()
	maxTwoAdic := uint64(1) << twoAdicity

	if n > maxTwoAdic {
		return Params{}, fmt.Errorf("%w: N=%d exceeds field two-adicity 2^%d", ErrDomainTooLarge, n, twoAdicity)
	}
	if cfg.MaxN != 0 && n > cfg.MaxN {
		return Params{}, fmt.Errorf("%w: N=%d exceeds configured max_n=%d", ErrDomainTooLarge, n, cfg.MaxN)
	}
	if cfg.SRSCap != 0 && n > cfg.SRSCap {
		return Params{}, fmt.Errorf("%w: N=%d exceeds SRS capacity %d", ErrDomainTooLarge, n, cfg.SRSCap)
	}

	fftDomain := fft.NewDomain(n, fft.WithoutPrecompute())

	var c curve.Fr
	if cfg.C == nil {
		c.SetOne()
	} else {
		c = *cfg.C
	}

	shift, err := nthRootViaSquareRoots(c, fftDomain.Cardinality)
	if err != nil {
		return Params{}, err
	}

	bBlk := resolveTileSize(fftDomain.Cardinality, cfg)

	p := Params{
		TRequested: cfg.Rows,
		N:          fftDomain.Cardinality,
		K:          cfg.K,
		Omega:      fftDomain.Generator,
		OmegaHex:   fftDomain.Generator.String(),
		C:          c,
		CosetShift: shift,
		BBlk:       bBlk,
		CosetGen:   fftDomain.FrMultiplicativeGen,
		MemoryHint: uint64(cfg.K+3) * uint64(bBlk),
	}
	return p, nil
}

// FFTDomain reconstructs the gnark-crypto domain handle for p.N, for
// packages (internal/air, internal/prover) that need direct access to the
// domain's Generator/FrMultiplicativeGen beyond what Params caches.
func (p Params) FFTDomain() *fft.Domain {
	return fft.NewDomain(p.N, fft.WithoutPrecompute())
}

// Replan re-plans starting from an already-chosen N, asserting idempotence
// (spec §8 round-trip law: "planning {rows, b_blk} then planning with the
// returned N yields the same N and ω").
func Replan(p Params) (Params, error) {
	return Plan(Config{
		Rows:   p.N,
		K:      p.K,
		C:      &p.C,
		BBlk:   p.BBlk,
		Policy: PolicyFixed,
		Fixed:  p.BBlk,
	})
}

func nextPowerOfTwo(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return uint64(1) << bits.Len64(n-1)
}

// fieldTwoAdicity returns BN254 Fr's two-adicity: the largest k such that
// 2^k | r-1. This is a fixed property of the curve (r-1 = 2^28 * odd), not
// something gnark-crypto's fft package exposes as a named constant, so it
// is pinned here rather than probed at runtime.
func fieldTwoAdicity() uint64 {
	const bn254FrTwoAdicity = 28
	return bn254FrTwoAdicity
}

// nthRootViaSquareRoots finds shift such that shift^N == c, for N a power
// of two, by taking square roots log2(N) times. Each intermediate value
// must be a quadratic residue; if any is not, c has no Nth root in Fr and
// the requested coset does not exist.
func nthRootViaSquareRoots(c curve.Fr, n uint64) (curve.Fr, error) {
	if c.IsZero() {
		return curve.Fr{}, ErrInvalidVanishingConstant
	}
	steps := bits.TrailingZeros64(n)
	if n == 1 {
		steps = 0
	}
	cur := c
	for i := 0; i < steps; i++ {
		var root curve.Fr
		if root.Sqrt(&cur) == nil {
			return curve.Fr{}, fmt.Errorf("%w: c has no 2^%d-th root", ErrInvalidVanishingConstant, steps)
		}
		cur = root
	}
	return cur, nil
}

func resolveTileSize(n uint64, cfg Config) uint32 {
	if cfg.BBlk != 0 {
		return clampTile(cfg.BBlk, n)
	}
	switch cfg.Policy {
	case PolicyFixed:
		if cfg.Fixed != 0 {
			return clampTile(cfg.Fixed, n)
		}
		return clampTile(sqrtTile(n), n)
	case PolicyAuto, PolicySqrt:
		fallthrough
	default:
		return clampTile(sqrtTile(n), n)
	}
}

// sqrtTile returns ceil(sqrt(n)) rounded to the nearest divisor of n when
// one exists within a small search radius; otherwise the raw ceil(sqrt(n))
// is returned and the scheduler's last-partial-tile path handles the
// remainder, as spec §4.1 allows ("odd tiles are legal").
func sqrtTile(n uint64) uint32 {
	if n <= 1 {
		return 1
	}
	s := isqrtCeil(n)
	for radius := uint64(0); radius <= s; radius++ {
		if s > radius && n%(s-radius) == 0 {
			return uint32(s - radius)
		}
		if n%(s+radius) == 0 {
			return uint32(s + radius)
		}
	}
	return uint32(s)
}

func isqrtCeil(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	lo, hi := uint64(1), n
	for lo < hi {
		mid := lo + (hi-lo)/2
		if mid*mid >= n {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

func clampTile(b uint32, n uint64) uint32 {
	if b < 1 {
		return 1
	}
	if uint64(b) > n {
		return uint32(n)
	}
	return b
}
