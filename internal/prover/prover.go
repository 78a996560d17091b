// Package prover implements the prover: the typed phase state machine
// (Init -> AfterWires -> AfterZ -> AfterQ -> AfterOpenings) of spec
// §4/§5, cooperative cancellation, and a peak-memory assertion backed by
// a heap-profile diagnostic. The witness is pulled from its Source in
// tiles of b_blk rows, but the tiles are concatenated into full N-row
// columns (pullAllTiles) that every later phase works on. Config.MaxWorkers
// sizes a semaphore on the Job that Run does not acquire.
//
// The phase gating is grounded on
// famouswizard-gnark/backend/fflonk/bn254/prove.go's instance: a single
// errgroup.WithContext fans out goroutines for each stage
// (solveConstraints, deriveGammaAndBeta, buildRatioCopyConstraint,
// computeQuotient, batchOpening), each blocking on a buffered
// `chan struct{}` (chLRO, chZ, chH, ...) until its predecessor closes it.
// Here the same shape is made explicit as a Go type (Phase) rather than
// an implicit sequence of channel names, so the memory-bound assertion
// and cancellation can be checked at every transition instead of only at
// ad-hoc points.
package prover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"runtime/pprof"

	"github.com/google/pprof/profile"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/logannye/tinyzkp/internal/air"
	"github.com/logannye/tinyzkp/internal/curve"
	"github.com/logannye/tinyzkp/internal/domain"
	"github.com/logannye/tinyzkp/internal/kzg"
	"github.com/logannye/tinyzkp/internal/srs"
	"github.com/logannye/tinyzkp/internal/transcript"
	"github.com/logannye/tinyzkp/internal/witness"
)

// Phase is a node in the prover's typed state machine.
type Phase int

const (
	Init Phase = iota
	AfterWires
	AfterZ
	AfterQ
	AfterOpenings
)

func (p Phase) String() string {
	switch p {
	case Init:
		return "init"
	case AfterWires:
		return "after_wires"
	case AfterZ:
		return "after_z"
	case AfterQ:
		return "after_q"
	case AfterOpenings:
		return "after_openings"
	default:
		return "unknown"
	}
}

var (
	// ErrInvariantViolated is raised when the scheduler's peak working-set
	// estimate exceeds the configured memory bound (spec §5/§7's
	// InternalInvariantViolated).
	ErrInvariantViolated = errors.New("prover: memory bound exceeded")
	ErrCancelled         = errors.New("prover: cancelled")
)

// Config controls the prover's concurrency and memory bound.
type Config struct {
	MaxWorkers    int
	MaxMemoryElts uint64 // 0 => unchecked
	HasLookups    bool
	Logger        zerolog.Logger
}

// Result is everything the proof encoder needs: commitments,
// evaluations, and opening proofs, keyed exactly to spec §6's proof
// structure.
type Result struct {
	Selectors  []kzg.Digest
	Wires      []kzg.Digest
	Z          kzg.Digest
	ZL         *kzg.Digest
	Q          kzg.Digest
	Zeta       curve.Fr
	ZetaOmega  curve.Fr
	Evals      []curve.Fr // selectors..wires..Z..Q evaluated at zeta
	ZOmegaEval curve.Fr
	Opening    kzg.ShiftedOpeningProof
}

// Job drives one proof's lifetime through the phase state machine.
type Job struct {
	cfg    Config
	params domain.Params
	ref    *srs.SRS
	sem    *semaphore.Weighted
	phase  Phase
	log    zerolog.Logger
}

// NewJob constructs a proof job bound to an already-planned domain and a
// loaded SRS.
func NewJob(cfg Config, params domain.Params, ref *srs.SRS) *Job {
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Job{
		cfg:    cfg,
		params: params,
		ref:    ref,
		sem:    semaphore.NewWeighted(int64(workers)),
		phase:  Init,
		log:    cfg.Logger.With().Str("component", "prover").Uint64("n", params.N).Logger(),
	}
}

// Phase reports the job's current state-machine node.
func (j *Job) Phase() Phase { return j.phase }

// Run executes the whole pipeline: commit selectors and wires, derive
// beta/gamma, build the grand product Z, derive alpha, compute and commit
// the quotient Q, derive zeta, evaluate at zeta/omega*zeta, and produce
// the batched opening. No lookup accumulator Z_L is built; HasLookups
// only selects the quotient blow-up, and Result.ZL is always nil.
func (j *Job) Run(ctx context.Context, src witness.Source, selectors [][]curve.Fr, tables air.PermutationTables, gate func(wireVals, selectorVals []curve.Fr) curve.Fr) (*Result, error) {
	g, gctx := errgroup.WithContext(ctx)

	var wires [][]curve.Fr
	var selCommits, wireCommits []kzg.Digest
	var zCol []curve.Fr
	var zCommit kzg.Digest

	tr := transcript.New("sszkp-v2", "bn254/kzg")
	tr.AbsorbUint64(j.params.N)
	tr.AbsorbUint32(j.params.K)

	chSelectors := make(chan struct{})
	chWires := make(chan struct{})
	chZ := make(chan struct{})

	g.Go(func() error {
		defer close(chSelectors)
		if err := j.checkCancel(gctx); err != nil {
			return err
		}
		selCommits = make([]kzg.Digest, len(selectors))
		for i, s := range selectors {
			c, err := kzg.Commit(s, j.ref)
			if err != nil {
				return fmt.Errorf("commit selector %d: %w", i, err)
			}
			selCommits[i] = c
		}
		for _, c := range selCommits {
			tr.AbsorbPointG1(c)
		}
		return nil
	})

	g.Go(func() error {
		<-chSelectors
		defer close(chWires)
		if err := j.checkCancel(gctx); err != nil {
			return err
		}
		cols, err := j.pullAllTiles(src)
		if err != nil {
			return err
		}
		wires = cols
		if j.cfg.MaxMemoryElts != 0 {
			estimate := uint64(len(wires)+3) * uint64(j.params.BBlk)
			if estimate > j.cfg.MaxMemoryElts {
				j.dumpHeapProfile("memory_bound_wires")
				return ErrInvariantViolated
			}
		}
		wireCommits = make([]kzg.Digest, len(wires))
		for i, w := range wires {
			c, err := kzg.Commit(w, j.ref)
			if err != nil {
				return fmt.Errorf("commit wire %d: %w", i, err)
			}
			wireCommits[i] = c
		}
		for _, c := range wireCommits {
			tr.AbsorbPointG1(c)
		}
		j.phase = AfterWires
		return nil
	})

	var beta, gamma curve.Fr
	g.Go(func() error {
		<-chWires
		defer close(chZ)
		if err := j.checkCancel(gctx); err != nil {
			return err
		}
		beta = tr.SqueezeFr("beta", nil)
		gamma = tr.SqueezeFr("gamma", nil)

		support := air.BuildSupport(j.params.FFTDomain(), j.params.K)
		zCol = air.GrandProductZ(wires, support, tables, beta, gamma)
		var err error
		zCommit, err = kzg.Commit(zCol, j.ref)
		if err != nil {
			return fmt.Errorf("commit z: %w", err)
		}
		tr.AbsorbPointG1(zCommit)
		j.phase = AfterZ
		return nil
	})

	var alpha curve.Fr
	var qCommit kzg.Digest
	var qCoeffs []curve.Fr
	g.Go(func() error {
		<-chZ
		if err := j.checkCancel(gctx); err != nil {
			return err
		}
		alpha = tr.SqueezeFr("alpha", nil)

		support := air.BuildSupport(j.params.FFTDomain(), j.params.K)
		es := &air.EvalSet{
			Wires:        wires,
			Selectors:    selectors,
			Support:      support,
			Tables:       tables,
			Z:            zCol,
			Beta:         beta,
			Gamma:        gamma,
			Alpha:        alpha,
			GateIdentity: gate,
		}
		adapter := air.NewDomainAdapter(j.params.FFTDomain())
		rho := air.Blowup(j.cfg.HasLookups)
		var err error
		qCoeffs, err = air.ComputeQuotient(adapter, es, j.params.C, rho)
		if err != nil {
			return fmt.Errorf("compute quotient: %w", err)
		}
		qCommit, err = kzg.Commit(qCoeffs, j.ref)
		if err != nil {
			return fmt.Errorf("commit quotient: %w", err)
		}
		tr.AbsorbPointG1(qCommit)
		j.phase = AfterQ
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	zeta := tr.SqueezeFr("zeta", transcript.RejectZeroOrNthRoot(j.params.N))
	var zetaOmega curve.Fr
	zetaOmega.Mul(&zeta, &j.params.Omega)

	// zetaPolys/zetaDigests fixes the canonical evaluation order selectors,
	// wires, Z, Q — the verifier's algebraic check at ζ needs Z(ζ) directly
	// (not just Z(ωζ)), so it is revealed here rather than folded away via
	// a linearization-polynomial trick.
	zetaPolys := make([][]curve.Fr, 0, len(selectors)+len(wires)+2)
	zetaDigests := make([]kzg.Digest, 0, cap(zetaPolys))
	for i, s := range selectors {
		zetaPolys = append(zetaPolys, s)
		zetaDigests = append(zetaDigests, selCommits[i])
	}
	for i, w := range wires {
		zetaPolys = append(zetaPolys, w)
		zetaDigests = append(zetaDigests, wireCommits[i])
	}
	zetaPolys = append(zetaPolys, zCol)
	zetaDigests = append(zetaDigests, zCommit)
	zetaPolys = append(zetaPolys, qCoeffs)
	zetaDigests = append(zetaDigests, qCommit)

	evals := make([]curve.Fr, len(zetaPolys))
	for i, p := range zetaPolys {
		evals[i] = evalAt(p, zeta)
		tr.AbsorbFr(evals[i])
	}
	zOmegaEval := evalAt(zCol, zetaOmega)
	tr.AbsorbFr(zOmegaEval)

	v := tr.SqueezeFr("v", nil)
	smallDomain := j.params.FFTDomain()
	opening, err := kzg.OpenShifted(zetaPolys, zCol, zeta, zetaOmega, v, smallDomain, j.ref)
	if err != nil {
		return nil, fmt.Errorf("open shifted: %w", err)
	}
	j.phase = AfterOpenings

	var zl *kzg.Digest
	return &Result{
		Selectors:  selCommits,
		Wires:      wireCommits,
		Z:          zCommit,
		ZL:         zl,
		Q:          qCommit,
		Zeta:       zeta,
		ZetaOmega:  zetaOmega,
		Evals:      evals,
		ZOmegaEval: zOmegaEval,
		Opening:    opening,
	}, nil
}

func (j *Job) pullAllTiles(src witness.Source) ([][]curve.Fr, error) {
	if err := src.Reset(); err != nil {
		return nil, err
	}
	wires := make([][]curve.Fr, j.params.K)
	for i := range wires {
		wires[i] = make([]curve.Fr, 0, j.params.N)
	}
	for {
		tile, done, err := src.NextTile(j.params.BBlk, j.params.K)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		for i, col := range tile.Columns {
			wires[i] = append(wires[i], col...)
		}
	}
	for i, w := range wires {
		if uint64(len(w)) > j.params.N {
			return nil, fmt.Errorf("witness: column %d exceeds N", i)
		}
		for uint64(len(w)) < j.params.N {
			var zero curve.Fr
			w = append(w, zero)
		}
		wires[i] = w
	}
	return wires, nil
}

func (j *Job) checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ErrCancelled
	default:
		return nil
	}
}

func (j *Job) dumpHeapProfile(reason string) {
	var buf profileBuffer
	if err := pprof.WriteHeapProfile(&buf); err != nil {
		j.log.Error().Err(err).Str("reason", reason).Msg("heap profile capture failed")
		return
	}
	p, err := profile.Parse(&buf)
	if err != nil {
		j.log.Error().Err(err).Msg("heap profile parse failed")
		return
	}
	j.log.Error().Str("reason", reason).Int("nb_samples", len(p.Sample)).Msg("internal invariant violated: memory bound exceeded")
}

type profileBuffer struct{ buf []byte }

func (b *profileBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}
func (b *profileBuffer) Read(p []byte) (int, error) {
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	if n == 0 {
		return 0, errEOF
	}
	return n, nil
}

var errEOF = io.EOF

func evalAt(p []curve.Fr, x curve.Fr) curve.Fr {
	var res curve.Fr
	for i := len(p) - 1; i >= 0; i-- {
		res.Mul(&res, &x)
		res.Add(&res, &p[i])
	}
	return res
}
