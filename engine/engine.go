// Package engine is the top-level entry point: a shared, read-only SRS,
// a bounded pool of proof workers, and the DomainPlan/Prove/Verify
// operations of spec §6's external interface, wired behind an
// environment-style functional-options Config.
//
// The functional-options shape is grounded on gnark-crypto's own
// `fft.DomainOption` pattern already used in internal/domain
// (`fft.NewDomain(n, fft.WithoutPrecompute())`), generalized from one
// constructor's options to the whole engine's environment-style
// configuration of spec §6.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/blang/semver/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/logannye/tinyzkp/internal/air"
	"github.com/logannye/tinyzkp/internal/curve"
	"github.com/logannye/tinyzkp/internal/domain"
	"github.com/logannye/tinyzkp/internal/prover"
	"github.com/logannye/tinyzkp/internal/srs"
	"github.com/logannye/tinyzkp/internal/verifier"
	"github.com/logannye/tinyzkp/internal/witness"
	"github.com/logannye/tinyzkp/proof"
)

// protocolVersion is the engine's own release version, checked against a
// caller-supplied compatibility range via semver — distinct from the
// proof wire format's version field.
var protocolVersion = "2.0.0"

// ErrorKind is spec §7's failure taxonomy: every engine failure is one of
// these values, never a bare error or a panic.
type ErrorKind int

const (
	KindInvalidRequest ErrorKind = iota
	KindDomainTooLarge
	KindSrsNotReady
	KindSrsCorrupt
	KindSrsDigestMismatch
	KindWitnessTooShort
	KindWitnessTooWide
	KindConstraintUnsatisfied
	KindAlgebraicCheckFailed
	KindPairingFailed
	KindTranscriptMismatch
	KindCancelled
	KindInternalInvariantViolated
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindDomainTooLarge:
		return "DomainTooLarge"
	case KindSrsNotReady:
		return "SrsNotReady"
	case KindSrsCorrupt:
		return "SrsCorrupt"
	case KindSrsDigestMismatch:
		return "SrsDigestMismatch"
	case KindWitnessTooShort:
		return "WitnessTooShort"
	case KindWitnessTooWide:
		return "WitnessTooWide"
	case KindConstraintUnsatisfied:
		return "ConstraintUnsatisfied"
	case KindAlgebraicCheckFailed:
		return "AlgebraicCheckFailed"
	case KindPairingFailed:
		return "PairingFailed"
	case KindTranscriptMismatch:
		return "TranscriptMismatch"
	case KindCancelled:
		return "Cancelled"
	case KindInternalInvariantViolated:
		return "InternalInvariantViolated"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying failure with its taxonomy Kind, spec §7's
// "failures are values, not exceptional control flow" contract.
type Error struct {
	kind ErrorKind
	err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.kind, e.err) }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Kind() ErrorKind { return e.kind }

func wrap(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: err}
}

// Config is the engine's environment-style configuration (spec §6).
type Config struct {
	SRSPath               string
	SRSDigestAlgo         srs.DigestAlgorithm
	MaxN                  uint64
	DefaultBBlkPolicy     domain.TileSizePolicy
	FixedBBlk             uint32
	EnableShiftOpening    bool
	EnableLookups         bool
	ValidatePairingOnLoad bool
	MaxWorkers            int
	LogWriter             io.Writer
}

// Option mutates a Config being built by New.
type Option func(*Config)

// WithSRSPath sets the (single-file, combined G1/G2) SRS container path.
// Spec §6 names two paths, srs_g1_path and srs_g2_path; this engine's SRS
// container (internal/srs.SRS.WriteTo/ReadFrom) combines both halves into
// one file the way mimoo-gnark-crypto's own kzg.SRS does, so one path
// configures both (see DESIGN.md's Open Question decision on this).
func WithSRSPath(path string) Option { return func(c *Config) { c.SRSPath = path } }

// WithSRSDigestAlgorithm selects BLAKE3 (default) or SHA-256 for the SRS
// content digest bound into every proof.
func WithSRSDigestAlgorithm(algo srs.DigestAlgorithm) Option {
	return func(c *Config) { c.SRSDigestAlgo = algo }
}

// WithMaxN sets the hard domain-size safety cap.
func WithMaxN(n uint64) Option { return func(c *Config) { c.MaxN = n } }

// WithTileSizePolicy sets the default b_blk policy (and, for PolicyFixed,
// the fixed tile size).
func WithTileSizePolicy(policy domain.TileSizePolicy, fixed uint32) Option {
	return func(c *Config) { c.DefaultBBlkPolicy = policy; c.FixedBBlk = fixed }
}

// WithShiftOpening toggles the Z(ω·ζ) opening. This engine's prover
// always produces it (see DESIGN.md's Open Question decision fixing the
// two-point variant by protocol label), so disabling it is rejected at
// proof time with KindInvalidRequest. Verify does not consult this option:
// every proof carries the ωζ opening and Verify always checks it.
func WithShiftOpening(enabled bool) Option { return func(c *Config) { c.EnableShiftOpening = enabled } }

// WithLookups sets Config.EnableLookups. The prover then uses the larger
// quotient blow-up (air.Blowup). No lookup accumulator Z_L is computed,
// committed or absorbed into the transcript, and Verify checks none.
func WithLookups(enabled bool) Option { return func(c *Config) { c.EnableLookups = enabled } }

// WithPairingCheckOnLoad runs SRS.VerifyPairingSanity() on the loaded SRS
// each time the engine fetches it (every DomainPlan, Prove and Verify
// call); a failed check is reported as KindSrsCorrupt.
func WithPairingCheckOnLoad(enabled bool) Option {
	return func(c *Config) { c.ValidatePairingOnLoad = enabled }
}

// WithMaxWorkers bounds the proof worker pool; 0 means runtime.NumCPU().
func WithMaxWorkers(n int) Option { return func(c *Config) { c.MaxWorkers = n } }

// WithLogWriter sets the sink structured diagnostic events are written
// to; defaults to io.Discard (spec §6's "injected sink").
func WithLogWriter(w io.Writer) Option { return func(c *Config) { c.LogWriter = w } }

func defaultConfig() Config {
	return Config{
		SRSDigestAlgo:         srs.DigestBlake3,
		DefaultBBlkPolicy:     domain.PolicySqrt,
		EnableShiftOpening:    true,
		ValidatePairingOnLoad: false,
		LogWriter:             io.Discard,
	}
}

// MarshalCBOR/UnmarshalCBOR let a Config round-trip through the
// environment-style configuration channel (a file, an admin RPC) in
// CBOR, the canonical encoding this engine uses for anything that is not
// itself proof-protocol wire data.
func (c Config) MarshalCBOR() ([]byte, error) {
	type wire struct {
		SRSPath               string
		SRSDigestAlgo         uint8
		MaxN                  uint64
		DefaultBBlkPolicy     int
		FixedBBlk             uint32
		EnableShiftOpening    bool
		EnableLookups         bool
		ValidatePairingOnLoad bool
		MaxWorkers            int
	}
	return cbor.Marshal(wire{
		SRSPath:               c.SRSPath,
		SRSDigestAlgo:         uint8(c.SRSDigestAlgo),
		MaxN:                  c.MaxN,
		DefaultBBlkPolicy:     int(c.DefaultBBlkPolicy),
		FixedBBlk:             c.FixedBBlk,
		EnableShiftOpening:    c.EnableShiftOpening,
		EnableLookups:         c.EnableLookups,
		ValidatePairingOnLoad: c.ValidatePairingOnLoad,
		MaxWorkers:            c.MaxWorkers,
	})
}

func (c *Config) UnmarshalCBOR(b []byte) error {
	type wire struct {
		SRSPath               string
		SRSDigestAlgo         uint8
		MaxN                  uint64
		DefaultBBlkPolicy     int
		FixedBBlk             uint32
		EnableShiftOpening    bool
		EnableLookups         bool
		ValidatePairingOnLoad bool
		MaxWorkers            int
	}
	var w wire
	if err := cbor.Unmarshal(b, &w); err != nil {
		return err
	}
	c.SRSPath = w.SRSPath
	c.SRSDigestAlgo = srs.DigestAlgorithm(w.SRSDigestAlgo)
	c.MaxN = w.MaxN
	c.DefaultBBlkPolicy = domain.TileSizePolicy(w.DefaultBBlkPolicy)
	c.FixedBBlk = w.FixedBBlk
	c.EnableShiftOpening = w.EnableShiftOpening
	c.EnableLookups = w.EnableLookups
	c.ValidatePairingOnLoad = w.ValidatePairingOnLoad
	c.MaxWorkers = w.MaxWorkers
	c.LogWriter = io.Discard
	return nil
}

// AIR bundles a circuit's fixed shape: its selector columns and
// permutation tables, and the gate identity closure that combines wire
// and selector evaluations at a row into a single field element.
type AIR struct {
	Selectors    [][]curve.Fr
	Tables       air.PermutationTables
	GateIdentity func(wireVals, selectorVals []curve.Fr) curve.Fr
}

// Engine hosts one shared SRS loader and a bounded proof worker pool.
type Engine struct {
	cfg    Config
	loader *srs.Loader
	sem    *semaphore.Weighted
	log    zerolog.Logger
}

// New constructs an Engine and starts the background SRS load.
func New(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.SRSPath == "" {
		return nil, wrap(KindInvalidRequest, errors.New("engine: SRSPath is required"))
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log := zerolog.New(cfg.LogWriter).With().Timestamp().Str("component", "engine").Logger()
	e := &Engine{
		cfg:    cfg,
		loader: srs.NewLoader(cfg.SRSPath, cfg.SRSDigestAlgo),
		sem:    semaphore.NewWeighted(int64(workers)),
		log:    log,
	}
	e.loader.Start()
	return e, nil
}

// srsOrErr translates the loader's ErrNotReady/terminal errors into the
// engine's taxonomy.
func (e *Engine) srsOrErr() (*srs.SRS, srs.Digest, error) {
	ref, digest, err := e.loader.Get()
	if err == nil {
		if e.cfg.ValidatePairingOnLoad {
			ok, perr := ref.VerifyPairingSanity()
			if perr != nil || !ok {
				return nil, srs.Digest{}, wrap(KindSrsCorrupt, errors.New("srs: pairing sanity check failed"))
			}
		}
		return ref, digest, nil
	}
	switch {
	case errors.Is(err, srs.ErrNotReady):
		return nil, srs.Digest{}, wrap(KindSrsNotReady, err)
	default:
		return nil, srs.Digest{}, wrap(KindSrsCorrupt, err)
	}
}

// DomainPlan executes spec §6's domain plan query.
func (e *Engine) DomainPlan(rows uint64, k uint32, bBlk uint32) (domain.Params, error) {
	_, _, err := e.srsOrErr()
	if err != nil {
		return domain.Params{}, err
	}
	p, err := domain.Plan(domain.Config{
		Rows:   rows,
		K:      k,
		BBlk:   bBlk,
		Policy: e.cfg.DefaultBBlkPolicy,
		Fixed:  e.cfg.FixedBBlk,
		MaxN:   e.cfg.MaxN,
	})
	if err != nil {
		return domain.Params{}, wrap(KindDomainTooLarge, err)
	}
	return p, nil
}

// Prove runs one proof job to completion, returning the wire-format
// Proof ready for proof.Proof.WriteTo.
func (e *Engine) Prove(ctx context.Context, rows uint64, src witness.Source, circuit AIR) (*proof.Proof, error) {
	if !e.cfg.EnableShiftOpening {
		return nil, wrap(KindInvalidRequest, errors.New("engine: the shift opening cannot be disabled"))
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, wrap(KindCancelled, err)
	}
	defer e.sem.Release(1)

	ref, digest, err := e.srsOrErr()
	if err != nil {
		return nil, err
	}

	params, err := e.DomainPlan(rows, circuit.Tables.K, 0)
	if err != nil {
		return nil, err
	}
	if uint64(len(ref.G1)) < params.N {
		return nil, wrap(KindDomainTooLarge, fmt.Errorf("srs capacity %d below domain size %d", len(ref.G1), params.N))
	}

	job := prover.NewJob(prover.Config{
		MaxWorkers: e.cfg.MaxWorkers,
		HasLookups: e.cfg.EnableLookups,
		Logger:     e.log,
	}, params, ref)

	res, err := job.Run(ctx, src, circuit.Selectors, circuit.Tables, circuit.GateIdentity)
	if err != nil {
		switch {
		case errors.Is(err, prover.ErrCancelled):
			return nil, wrap(KindCancelled, err)
		case errors.Is(err, prover.ErrInvariantViolated):
			return nil, wrap(KindInternalInvariantViolated, err)
		case errors.Is(err, witness.ErrShortRead):
			return nil, wrap(KindWitnessTooShort, err)
		case errors.Is(err, witness.ErrWireWidth):
			return nil, wrap(KindWitnessTooWide, err)
		default:
			return nil, wrap(KindInvalidRequest, err)
		}
	}

	if !e.selfCheck(params, circuit, res) {
		return nil, wrap(KindConstraintUnsatisfied, errors.New("prover self-check: C(zeta)/Zh(zeta) != Q(zeta)"))
	}

	p := proof.FromResult(res, params, [32]byte(digest), [32]byte(digest))
	return &p, nil
}

// selfCheck re-derives the combined identity at the prover's own zeta the
// same way the verifier will, so a buggy AIR or witness is caught before
// a proof that could never verify leaves the engine (spec §7's
// ConstraintUnsatisfied: "prover detected C(ζ)/Zₕ(ζ) ≠ Q(ζ) during
// self-check").
func (e *Engine) selfCheck(params domain.Params, circuit AIR, res *prover.Result) bool {
	vk := verifier.VerifyingKey{
		Params:       params,
		Tables:       circuit.Tables,
		HasLookups:   e.cfg.EnableLookups,
		GateIdentity: circuit.GateIdentity,
	}
	// The self-check reuses the verifier's pure algebraic+pairing logic
	// directly: if Verify would reject this proof for any reason other
	// than a digest mismatch the caller hasn't supplied yet, the prover
	// produced a proof that cannot verify and should not be returned.
	ref, digest, err := e.srsOrErr()
	if err != nil {
		return false
	}
	err = verifier.Verify(res, vk, ref, e.cfg.SRSDigestAlgo, digest)
	return err == nil
}

// Verify checks a parsed proof against this engine's SRS and circuit
// shape.
func (e *Engine) Verify(circuit AIR, params domain.Params, p *proof.Proof) error {
	ref, digest, err := e.srsOrErr()
	if err != nil {
		return err
	}
	if srs.Digest(p.G1Digest) != digest || srs.Digest(p.G2Digest) != digest {
		return wrap(KindSrsDigestMismatch, srs.ErrDigestMismatch)
	}
	vk := verifier.VerifyingKey{
		Params:       params,
		Tables:       circuit.Tables,
		HasLookups:   e.cfg.EnableLookups,
		GateIdentity: circuit.GateIdentity,
	}
	err = verifier.Verify(p.ToResult(), vk, ref, e.cfg.SRSDigestAlgo, digest)
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, verifier.ErrAlgebraicCheckFailed):
		return wrap(KindAlgebraicCheckFailed, err)
	case errors.Is(err, verifier.ErrTranscriptMismatch):
		return wrap(KindTranscriptMismatch, err)
	case errors.Is(err, verifier.ErrMalformedProof):
		return wrap(KindInvalidRequest, err)
	default:
		return wrap(KindPairingFailed, err)
	}
}

// ProtocolVersion reports the engine's release version, for compatibility
// negotiation against a caller's semver range (see CompatibleWith).
func ProtocolVersion() string { return protocolVersion }

// CompatibleWith reports whether this engine's protocol version satisfies
// a caller-supplied semver range (e.g. ">=2.0.0 <3.0.0"), letting a
// long-lived client pin a compatibility window against the "sszkp-v2"
// transcript label rather than an exact version string.
func CompatibleWith(rangeExpr string) (bool, error) {
	v, err := semver.Parse(protocolVersion)
	if err != nil {
		return false, fmt.Errorf("engine: parse own version: %w", err)
	}
	r, err := semver.ParseRange(rangeExpr)
	if err != nil {
		return false, wrap(KindInvalidRequest, fmt.Errorf("engine: parse compatibility range: %w", err))
	}
	return r(v), nil
}
