package mmc

import "math"

// speedOfLightMMPerS is the vacuum speed of light in mm/s, matching the
// mm/s time-of-flight convention used throughout the reference MMC tool
// chain (time windows specified in seconds, distances in mm).
const speedOfLightMMPerS = 2.99792458e11

// PhotonState names where a photon sits in the transport state machine.
type PhotonState uint8

const (
	Launched PhotonState = iota
	Stepping
	Exited
	TimedOut
	Absorbed
	Errored
)

// Photon is the per-worker, per-photon transport state. It is owned
// exclusively by the worker goroutine that created it and is never
// shared.
type Photon struct {
	P Point3
	V Vec3
	W float64
	Tau float64
	E   int32 // current tet, 0 = void/exited, negative = errored
	F   int   // last face index, -1 = none
	S   float64
	L   float64

	// Per-medium bookkeeping, populated only when detector-save tracking
	// is active (len == len(media)).
	ScatterCount []float32
	Pathlength   []float32
	Momentum     []float32

	InitialWeight float64
	State         PhotonState
	Seed          RNGState
}

// photonEngine bundles the read-only inputs one worker needs to run the
// state machine for a slice of photons: the mesh, medium table,
// detectors, and the resolved run configuration.
type photonEngine struct {
	mesh      *Mesh
	media     MediumTable
	detectors []Detector
	cfg       Config
	voidStep  float64 // void-entry marching increment, scaled to the mesh
	allElems  []int32 // every real element, for external-detector-mode re-entry search
}

// newPhotonEngine builds a photonEngine for one worker. voidStep is
// derived from the mesh's own bounding-box diagonal so the void-entry
// march in locateEntry resolves at a resolution tied to the mesh's
// length unit instead of an arbitrary absolute constant.
func newPhotonEngine(mesh *Mesh, media MediumTable, detectors []Detector, cfg Config) *photonEngine {
	eng := &photonEngine{
		mesh:      mesh,
		media:     media,
		detectors: detectors,
		cfg:       cfg,
		voidStep:  mesh.Diameter() / 2000,
	}
	if cfg.ExternalDetector {
		eng.allElems = make([]int32, len(mesh.Elems)-1)
		for i := range eng.allElems {
			eng.allElems[i] = int32(i + 1)
		}
	}
	return eng
}

// newPhoton launches one photon from src using rng, locating its
// starting element among candidateElems. Returns ok=false when the
// photon should be discarded immediately (zero weight or no enclosing
// element), matching step 1 of the transport loop: "if w = 0 or no
// enclosing element found, terminate."
func (eng *photonEngine) newPhoton(src Source, candidateElems []int32, rng *RNG) (Photon, bool) {
	// Save the stream's state before Launch draws anything, so a replay
	// that feeds this seed back into newPhoton reproduces the exact same
	// launch sample (and everything after it) regardless of how many
	// draws the source type's sampler consumes.
	seed := rng.State()
	p, v, w := Launch(src, rng)

	entryP, e0, voidDist, found := eng.locateEntry(candidateElems, p, v)

	if eng.cfg.Specular && found {
		mat := eng.mesh.Elems[e0].Mat
		nIn := eng.media[mat].N
		if nIn != eng.cfg.BackgroundIndex {
			outward := eng.outwardEntryNormal(e0, entryP, v)
			R := SpecularLoss(v, outward, eng.cfg.BackgroundIndex, nIn)
			w *= 1 - R
		}
	}

	ph := Photon{P: entryP, V: v, W: w, Tau: 0, InitialWeight: w, State: Launched, Seed: seed}
	if w <= 0 {
		ph.State = Absorbed
		return ph, false
	}
	if !found {
		ph.State = Errored
		return ph, false
	}
	if eng.cfg.VoidTime && voidDist > 0 {
		ph.Tau = voidDist * eng.cfg.BackgroundIndex / speedOfLightMMPerS
	}
	ph.E = e0
	ph.F = -1
	ph.S = rng.NextScatterLength()

	if eng.cfg.SaveDetector {
		n := len(eng.media)
		ph.ScatterCount = make([]float32, n)
		ph.Pathlength = make([]float32, n)
		if eng.cfg.SaveMomentum {
			ph.Momentum = make([]float32, n)
		}
	}
	return ph, true
}

// locateEntry finds the tet enclosing p directly, or, failing that,
// marches along v to find the first tet the photon reaches after
// traveling through void from a source placed outside the mesh (the
// voidtime case). Returns the resolved entry point, the tet, the void
// travel distance (0 if p was already inside a tet), and whether an
// element was found at all.
func (eng *photonEngine) locateEntry(candidates []int32, p Point3, v Vec3) (Point3, int32, float64, bool) {
	if e, _, ok := LocateElement(eng.mesh, candidates, p, 1e-4); ok {
		return p, e, 0, true
	}
	return eng.findVoidEntry(candidates, p, v)
}

func (eng *photonEngine) findVoidEntry(candidates []int32, p Point3, v Vec3) (Point3, int32, float64, bool) {
	if eng.voidStep <= 0 {
		return p, 0, 0, false
	}
	const maxSteps = 4000
	cur := p
	for i := 1; i <= maxSteps; i++ {
		cur = cur.Add(v.Mul(eng.voidStep))
		if e, _, ok := LocateElement(eng.mesh, candidates, cur, 1e-4); ok {
			return cur, e, float64(i) * eng.voidStep, true
		}
	}
	return p, 0, 0, false
}

// outwardEntryNormal approximates the mesh-boundary outward normal seen
// at launch by the face of e0 most nearly facing the incoming direction
// v, used only for the launch-time specular-loss estimate.
func (eng *photonEngine) outwardEntryNormal(e0 int32, p Point3, v Vec3) Vec3 {
	elem := &eng.mesh.Elems[e0]
	best := 0
	bestDot := math.MaxFloat64
	for f := 0; f < 4; f++ {
		n := elem.Face[f].OutwardNormal()
		d := v.Dot(n)
		if d < bestDot {
			bestDot = d
			best = f
		}
	}
	return elem.Face[best].OutwardNormal()
}

// Run drives one photon through the full transport loop (the state
// machine of the photon engine) until it terminates, depositing into
// acc and det as it goes.
func (eng *photonEngine) Run(ph *Photon, rng *RNG, acc *Accumulator, det *DetectorBuffer, grid GridParams) {
	for trial := 0; ; {
		if ph.State != Launched && ph.State != Stepping {
			return
		}
		ph.State = Stepping

		if ph.E == 0 {
			if !eng.trackVoid(ph, det) {
				return
			}
			continue
		}

		step := Step(eng.mesh, eng.cfg.Method, ph.E, ph.P, ph.V, ph.S, eng.mediumOf(ph.E).Mus)
		if step.Degenerate {
			trial++
			if trial > maxTrial {
				ph.E = -ph.E
				ph.State = Errored
				return
			}
			ph.P = fixPhoton(eng.mesh, ph.E, ph.P)
			continue
		}
		trial = 0

		L, faceTag := eng.applyTimeClip(ph, step)

		eng.accumulate(ph, acc, grid, L, step.Face)
		ph.Tau += L * eng.mediumOf(ph.E).N / speedOfLightMMPerS
		ph.P = ph.P.Add(ph.V.Mul(L))
		ph.S -= L * eng.mediumOf(ph.E).Mus

		if faceTag == -2 {
			ph.State = TimedOut
			return
		}

		if step.IsEnd {
			eng.scatterAndRoulette(ph, rng)
			if ph.State == Absorbed {
				return
			}
			continue
		}

		if !eng.crossFace(ph, step, rng, det) {
			return
		}
	}
}

func (eng *photonEngine) mediumOf(e int32) Medium {
	if e <= 0 || int(e) >= len(eng.mesh.Elems) {
		return eng.media[0]
	}
	return eng.media[eng.mesh.Elems[e].Mat]
}

// applyTimeClip implements the time-window clipping rule: if stepping by
// L would push tau past t1, L is shortened so tau lands at t1-delta and
// the face tag is overridden to -2 (time-exit).
func (eng *photonEngine) applyTimeClip(ph *Photon, step StepResult) (float64, int) {
	n := eng.mediumOf(ph.E).N
	dtau := step.Lmin * n / speedOfLightMMPerS
	if ph.Tau+dtau <= eng.cfg.T1 {
		return step.Lmin, step.Face
	}
	const delta = 1e-12
	remainingTau := eng.cfg.T1 - delta - ph.Tau
	if remainingTau < 0 {
		remainingTau = 0
	}
	clippedL := remainingTau * speedOfLightMMPerS / n
	if clippedL > step.Lmin {
		clippedL = step.Lmin
	}
	return clippedL, -2
}

// accumulate deposits the energy lost on this step (Delta E = w*(1-exp(-mua*L)))
// and reduces the photon's weight accordingly, respecting the gate window
// (I6: only while tau in [t0,t1] and not void). exitFace is this step's
// face index (0-3 on a crossing, -1 on a scatter-end inside the tet, in
// which case the photon's previously-crossed entry face is used as the
// nodal deposit target instead).
func (eng *photonEngine) accumulate(ph *Photon, acc *Accumulator, grid GridParams, L float64, exitFace int) {
	if eng.cfg.SaveDetector && ph.E > 0 {
		ph.Pathlength[eng.mesh.Elems[ph.E].Mat] += float32(L)
	}

	if ph.E <= 0 || ph.Tau < eng.cfg.T0 || ph.Tau > eng.cfg.T1 {
		return
	}
	med := eng.mediumOf(ph.E)
	w0 := ph.W
	dE := ph.W * (1 - math.Exp(-med.Mua*L))
	ph.W *= math.Exp(-med.Mua * L)

	gate := Gate(ph.Tau, eng.cfg.T0, eng.cfg.GateWidth, eng.cfg.Gates)
	switch eng.cfg.Method {
	case MethodGridBadouel:
		acc.DepositGrid(gate, grid, ph.P, ph.V, L, med.Mua, w0, eng.cfg.Output)
	default:
		switch eng.cfg.Basis {
		case BasisNode:
			f := exitFace
			if f < 0 {
				f = ph.F
			}
			if f < 0 {
				f = 0
			}
			elem := &eng.mesh.Elems[ph.E]
			faceNodes := [3]int32{}
			j := 0
			for i, idx := range elem.N {
				if i == f {
					continue
				}
				if j < 3 {
					faceNodes[j] = idx
					j++
				}
			}
			acc.DepositNode(gate, faceNodes, dE, eng.cfg.Output, med.Mua)
		default:
			acc.DepositElement(gate, ph.E, dE, eng.cfg.Output, med.Mua)
		}
	}
}

// scatterAndRoulette implements steps 9-10: sample a new direction,
// redraw the remaining scattering path, then test Russian roulette if
// the weight has fallen below the configured floor.
func (eng *photonEngine) scatterAndRoulette(ph *Photon, rng *RNG) {
	med := eng.mediumOf(ph.E)
	newDir, oneMinusCos := Scatter(ph.V, med.G, rng)
	ph.V = newDir
	ph.S = rng.NextScatterLength()

	if eng.cfg.SaveDetector && ph.E > 0 {
		mat := eng.mesh.Elems[ph.E].Mat
		ph.ScatterCount[mat]++
		if ph.Momentum != nil {
			ph.Momentum[mat] += float32(oneMinusCos)
		}
	}

	if ph.W >= eng.cfg.MinWeight || eng.cfg.TimeResolved {
		return
	}
	u := rng.NextRouletteTest()
	if u < 1/eng.cfg.RouletteSize {
		ph.W *= eng.cfg.RouletteSize
		return
	}
	ph.State = Absorbed
}

// crossFace implements steps 6-7: resolve the neighbor across the exit
// face, apply reflection/refraction on an index mismatch, and either
// keep tracking inside the mesh or capture the photon at a void exit.
// Returns false when the photon has terminated and Run should stop.
func (eng *photonEngine) crossFace(ph *Photon, step StepResult, rng *RNG, det *DetectorBuffer) bool {
	curN := eng.mediumOf(ph.E).N
	nb := step.NextElem
	nextN := eng.mediumOf(nb).N

	if nb == 0 || nextN != curN {
		outward := eng.mesh.Elems[ph.E].Face[step.Face].OutwardNormal()
		if eng.cfg.Reflect && curN != nextN {
			outcome := Reflect(ph.V, outward, curN, nextN, rng)
			ph.V = outcome.Dir
			if outcome.Reflected {
				ph.F = step.Face
				return true // stays in the same element
			}
			if nb == 0 && eng.cfg.Specular && eng.cfg.SpecularMode == 2 {
				// Transmission out of the mesh under specular mode 2:
				// drop the photon instead of capturing/tracking it.
				ph.E = 0
				ph.State = Absorbed
				return false
			}
		}
		if nb == 0 {
			if eng.cfg.SaveDetector {
				if id := Capture(eng.detectors, ph.P); id > 0 {
					det.Append(eng.detectedRecord(ph, id))
					ph.E = 0
					ph.State = Exited
					return false
				}
			}
			// Step 7's exception (spec §4.7): not yet caught by a
			// detector, and external-detector-mode is set, so keep
			// tracking through the void instead of terminating here.
			if eng.cfg.ExternalDetector {
				ph.E = 0
				ph.F = step.Face
				return true
			}
			ph.E = 0
			ph.State = Exited
			return false
		}
	}
	ph.E = nb
	ph.F = step.Face
	return true
}

// trackVoid implements the continuation side of step 7's external-
// detector-mode exception: rather than terminating at the void exit
// crossFace just found, the photon keeps marching in a straight line
// through the background medium, watching for a detector catch or
// re-entry into a real element, and giving up as Exited if neither
// happens within the march budget. Returns false when Run should stop.
func (eng *photonEngine) trackVoid(ph *Photon, det *DetectorBuffer) bool {
	const maxSteps = 4000
	n := eng.cfg.BackgroundIndex
	for i := 0; i < maxSteps; i++ {
		ph.P = ph.P.Add(ph.V.Mul(eng.voidStep))
		ph.Tau += eng.voidStep * n / speedOfLightMMPerS
		if ph.Tau > eng.cfg.T1 {
			ph.State = TimedOut
			return false
		}
		if eng.cfg.SaveDetector {
			if id := Capture(eng.detectors, ph.P); id > 0 {
				det.Append(eng.detectedRecord(ph, id))
				ph.State = Exited
				return false
			}
		}
		if e, _, ok := LocateElement(eng.mesh, eng.allElems, ph.P, 1e-4); ok {
			ph.E = e
			ph.F = -1
			return true
		}
	}
	ph.State = Exited
	return false
}

func (eng *photonEngine) detectedRecord(ph *Photon, detID int32) DetectedPhoton {
	rec := DetectedPhoton{
		DetectorID:    detID,
		ScatterCount:  ph.ScatterCount,
		Pathlength:    ph.Pathlength,
		Momentum:      ph.Momentum,
		InitialWeight: float32(ph.InitialWeight),
		Seed:          ph.Seed,
	}
	if eng.cfg.SaveExit {
		rec.HasExit = true
		rec.Pos = [3]float32{float32(ph.P.X), float32(ph.P.Y), float32(ph.P.Z)}
		rec.Dir = [3]float32{float32(ph.V.X), float32(ph.V.Y), float32(ph.V.Z)}
	}
	return rec
}
