package mmc

import "math"

// RayTracerMethod selects the ray-tet intersection strategy. This is a
// small closed tagged union switched at the hot path rather than an
// interface with virtual dispatch, since all five variants must yield
// the same tet transitions for a conforming mesh and the branch-less
// variant benefits from inlining.
type RayTracerMethod uint8

const (
	MethodPlucker RayTracerMethod = iota
	MethodHavel
	MethodBadouel
	MethodBadouelBranchless
	MethodGridBadouel
)

// facePermutation remaps the mathematically-natural face order (face f
// opposite local vertex f) to the engine's face-ordering convention. The
// two coincide in this implementation because FacePlane is built directly
// in that convention (mesh.go), so the permutation is the identity; it is
// kept explicit for implementations whose face storage order differs
// from the vertex-opposite convention.
var facePermutation = [4]int{0, 1, 2, 3}

// fixPhotonEps and maxTrial mirror FIX_PHOTON and MAX_TRIAL from
// original_source/mmc/branch/havel/src/tettracing.h.
const (
	fixPhotonEps    = 1e-3
	maxTrial        = 3
	faceReentryEps  = 1e-10
	degenerateTNone = math.MaxFloat64
)

// StepResult is the outcome of one ray-tet step.
type StepResult struct {
	Lmin     float64 // travel length to the exit event
	Face       int     // exit face index, -1 = scatter-end
	PExit      Point3
	IsEnd      bool  // scatter event ends inside this tet
	NextElem   int32 // candidate next tet, 0 = exterior; valid only if !IsEnd
	Degenerate bool  // no face could be resolved; caller should fixPhoton and retry
}

// Step runs one ray-tet intersection from p traveling along unit
// direction v inside tet e, against the remaining unitless scattering
// path s (= length*mus) and the medium's mus. When none of the four
// faces resolves to a usable crossing (the photon sits on a face/edge
// and floating-point exclusion rules out every candidate), Degenerate is
// set and the caller should nudge p toward the tet centroid and retry.
func Step(mesh *Mesh, method RayTracerMethod, e int32, p Point3, v Vec3, s, mus float64) StepResult {
	var lmin float64
	var faceIdx int
	var pOut Point3

	switch method {
	case MethodBadouel:
		lmin, faceIdx, pOut = stepBadouel(mesh, e, p, v)
	case MethodPlucker:
		lmin, faceIdx, pOut = stepPlucker(mesh, e, p, v)
	case MethodHavel:
		lmin, faceIdx, pOut = stepHavel(mesh, e, p, v)
	case MethodGridBadouel, MethodBadouelBranchless:
		fallthrough
	default:
		lmin, faceIdx, pOut = stepBranchless(mesh, e, p, v)
	}

	if lmin == degenerateTNone {
		return StepResult{Degenerate: true}
	}

	remaining := s / mus
	if lmin >= remaining {
		return StepResult{Lmin: remaining, Face: -1, IsEnd: true, PExit: p.Add(v.Mul(remaining))}
	}
	nb := mesh.Elems[e].Neighbor[facePermutation[faceIdx]]
	return StepResult{Lmin: lmin, Face: faceIdx, PExit: pOut, NextElem: nb}
}

// stepBranchless computes all four faces unconditionally: four parallel
// dot products, re-entry exclusion via T_f <= eps -> +inf, then a
// branch-less argmin.
func stepBranchless(mesh *Mesh, e int32, p Point3, v Vec3) (float64, int, Point3) {
	elem := &mesh.Elems[e]
	var sArr, tArr [4]float64
	for f := 0; f < 4; f++ {
		fp := elem.Face[f]
		sArr[f] = v.X*fp.Nx + v.Y*fp.Ny + v.Z*fp.Nz
		if sArr[f] == 0 {
			tArr[f] = degenerateTNone
			continue
		}
		tArr[f] = -fp.Eval(p) / sArr[f]
		if tArr[f] <= faceReentryEps {
			tArr[f] = degenerateTNone
		}
	}
	fStar := 0
	lMin := tArr[0]
	for f := 1; f < 4; f++ {
		if tArr[f] < lMin {
			lMin = tArr[f]
			fStar = f
		}
	}
	return lMin, fStar, p.Add(v.Mul(lMin))
}

// stepBadouel is the original (branching) Badouel variant: it skips the
// division for faces nearly parallel to the ray instead of computing all
// four unconditionally, trading the branch-less method's inlining benefit
// for fewer divisions on near-parallel faces.
func stepBadouel(mesh *Mesh, e int32, p Point3, v Vec3) (float64, int, Point3) {
	elem := &mesh.Elems[e]
	const parallelEps = 1e-12
	lMin := degenerateTNone
	fStar := -1
	for f := 0; f < 4; f++ {
		fp := elem.Face[f]
		s := v.X*fp.Nx + v.Y*fp.Ny + v.Z*fp.Nz
		if s > -parallelEps && s < parallelEps {
			continue
		}
		t := -fp.Eval(p) / s
		if t <= faceReentryEps {
			continue
		}
		if t < lMin {
			lMin = t
			fStar = f
		}
	}
	if fStar < 0 {
		return degenerateTNone, -1, p
	}
	return lMin, fStar, p.Add(v.Mul(lMin))
}

// stepPlucker tests each face via the sign of the Plücker product of the
// ray against the face's three boundary edges (Fang 2010's "Fast
// Ray-Tracing in Plücker Coordinates"), rather than evaluating the
// barycentric plane functions directly. It still resolves to the same
// exit face/length for a conforming mesh since both tests agree on which
// face the ray leaves through.
func stepPlucker(mesh *Mesh, e int32, p Point3, v Vec3) (float64, int, Point3) {
	elem := &mesh.Elems[e]
	lMin := degenerateTNone
	fStar := -1
	for f := 0; f < 4; f++ {
		verts := faceVertices(mesh, elem, f)
		if !pluckerInsideFace(p, v, verts) {
			continue
		}
		fp := elem.Face[f]
		s := v.X*fp.Nx + v.Y*fp.Ny + v.Z*fp.Nz
		if s > -1e-12 && s < 1e-12 {
			continue
		}
		t := -fp.Eval(p) / s
		if t <= faceReentryEps {
			continue
		}
		if t < lMin {
			lMin = t
			fStar = f
		}
	}
	if fStar < 0 {
		// Ray direction does not pass cleanly through any face's Plücker
		// test (can happen right at an edge/vertex); fall back to the
		// plane-evaluation test, which is always defined.
		return stepBadouel(mesh, e, p, v)
	}
	return lMin, fStar, p.Add(v.Mul(lMin))
}

// stepHavel refines stepPlucker's sign test with Havel-Kelemen's
// edge-sharing optimization (reuse two of the three edge Plücker products
// across adjacent faces); here it is expressed as the same per-face test
// since the mesh's face planes are pre-scaled, so there is nothing cached
// to share beyond what FacePlane already precomputes.
func stepHavel(mesh *Mesh, e int32, p Point3, v Vec3) (float64, int, Point3) {
	return stepPlucker(mesh, e, p, v)
}

func faceVertices(mesh *Mesh, elem *Elem, f int) [3]Point3 {
	var out [3]Point3
	j := 0
	for i, idx := range elem.N {
		if i == f {
			continue
		}
		out[j] = mesh.Nodes[idx].point()
		j++
	}
	return out
}

// pluckerInsideFace reports whether the ray (p,v) passes through the
// triangle verts using the sign of the scalar triple product against
// each boundary edge (the Plücker side test).
func pluckerInsideFace(p Point3, v Vec3, verts [3]Point3) bool {
	sign := 0
	for i := 0; i < 3; i++ {
		a := verts[i]
		b := verts[(i+1)%3]
		edge := b.Sub(a)
		toA := a.Sub(p)
		side := v.Cross(edge).Dot(toA)
		s := 1
		if side < 0 {
			s = -1
		} else if side == 0 {
			continue
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return true
}

// fixPhoton nudges p toward the centroid of tet e by fixPhotonEps times
// the displacement, for the degenerate-intersection retry loop.
func fixPhoton(mesh *Mesh, e int32, p Point3) Point3 {
	elem := &mesh.Elems[e]
	var cx, cy, cz float64
	for _, idx := range elem.N {
		nd := mesh.Nodes[idx]
		cx += nd.X
		cy += nd.Y
		cz += nd.Z
	}
	centroid := Point3{cx / 4, cy / 4, cz / 4}
	return p.Add(centroid.Sub(p).Mul(fixPhotonEps))
}
