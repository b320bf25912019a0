package mmc

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Result is Dispatch's output: the reduced field, detected-photon and
// seed buffers, and the energy totals P1/P2 are checked against.
type Result struct {
	Field          []float64 // Gates*Sites, row-major gate-then-site
	Gates          int
	Sites          int
	Detected       []DetectedPhoton
	Seeds          [][SeedLen]byte // present iff cfg.SaveSeed, parallel to Detected
	LaunchedWeight float64
	AbsorbedWeight float64
	Overflow       int64 // detected-photon records dropped past cfg.MaxDet
	Errored        int64 // photons with no enclosing element at launch, or terminated via the degenerate-intersection safeguard
	RunID          uuid.UUID
}

// Dispatch runs cfg.Nph photon histories across workers goroutines,
// generalizing the teacher's castRays worker-fan-out: photon index
// ranges are split evenly (plus a remainder) across a runtime.NumCPU
// goroutine pool, each worker owns an independent RNG stream per photon,
// and a single sync.WaitGroup barrier ends the batch. Unlike castRays,
// each worker drives full photon histories through the photon-engine
// state machine rather than single-bounce rays, and a shared
// atomic.Bool stops every worker early if one of them hits a fatal
// WorkerError.
func Dispatch(ctx context.Context, mesh *Mesh, media []Medium, detectors []Detector, cfg Config, workers int) (Result, error) {
	return runBatch(ctx, mesh, media, detectors, cfg, workers, cfg.Nph, func(i int64) RNG {
		return Seed(cfg.Seed, i)
	})
}

// runBatch drives total photon histories across workers goroutines,
// resolving each photon's RNG stream via seedFor(globalIndex). Dispatch
// seeds fresh streams from (cfg.Seed, index); Replay resumes saved
// streams byte-for-byte instead, which is the only difference between
// the two entry points.
func runBatch(ctx context.Context, mesh *Mesh, media []Medium, detectors []Detector, cfg Config, workers int, total int64, seedFor func(i int64) RNG) (Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}

	if err := cfg.Validate(MediumTable(media), detectors); err != nil {
		return Result{}, err
	}
	if errs := mesh.Validate(); len(errs) > 0 {
		return Result{}, errs[0]
	}

	sites := sitesFor(mesh, cfg)
	candidates := cfg.sourceElems(mesh)
	mediaTable := MediumTable(media)
	grid := cfg.GridParams()
	det := NewDetectorBuffer(cfg.MaxDet)

	var shared *Accumulator
	if cfg.AtomicAccumulate {
		shared = NewAccumulator(cfg.Gates, sites, cfg.Basis, true)
	}
	accs := make([]*Accumulator, workers)
	starts := make([]int64, workers)
	counts := make([]int64, workers)
	launched := make([]float64, workers)
	absorbed := make([]float64, workers)
	errored := make([]int64, workers)

	base, rem := total/int64(workers), total%int64(workers)
	var offset int64
	for w := 0; w < workers; w++ {
		n := base
		if int64(w) < rem {
			n++
		}
		starts[w] = offset
		counts[w] = n
		offset += n
		if cfg.AtomicAccumulate {
			accs[w] = shared
		} else {
			accs[w] = NewAccumulator(cfg.Gates, sites, cfg.Basis, false)
		}
	}

	var failed atomic.Bool
	var errMu sync.Mutex
	var firstErr error
	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		wid := w
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					failed.Store(true)
					errMu.Lock()
					if firstErr == nil {
						firstErr = &WorkerError{WorkerID: wid, Err: fmt.Errorf("panic: %v", r)}
					}
					errMu.Unlock()
				}
			}()

			eng := newPhotonEngine(mesh, mediaTable, detectors, cfg)
			acc := accs[wid]
			start, n := starts[wid], counts[wid]

			for i := int64(0); i < n; i++ {
				if i&1023 == 0 && (failed.Load() || ctx.Err() != nil) {
					return
				}
				rng := seedFor(start + i)
				ph, ok := eng.newPhoton(cfg.Source(), candidates, &rng)
				launched[wid] += ph.InitialWeight
				if !ok {
					if ph.State == Errored {
						errored[wid]++
					}
					continue
				}
				eng.Run(&ph, &rng, acc, det, grid)
				absorbed[wid] += ph.InitialWeight - ph.W
				if ph.State == Errored {
					errored[wid]++
				}
			}
		}()
	}
	wg.Wait()

	if failed.Load() {
		if firstErr == nil {
			firstErr = &WorkerError{Err: ctx.Err()}
		}
		return Result{}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var field []float64
	if cfg.AtomicAccumulate {
		field = shared.Field
	} else {
		field = Reduce(accs)
	}

	res := Result{
		Field:    field,
		Gates:    cfg.Gates,
		Sites:    sites,
		Detected: det.Records(),
		Overflow: det.Overflow(),
		RunID:    uuid.New(),
	}
	if cfg.SaveSeed {
		res.Seeds = make([][SeedLen]byte, len(res.Detected))
		for i, rec := range res.Detected {
			res.Seeds[i] = encodeSeed(rec.Seed)
		}
	}
	for w := 0; w < workers; w++ {
		res.LaunchedWeight += launched[w]
		res.AbsorbedWeight += absorbed[w]
		res.Errored += errored[w]
	}
	return res, nil
}
