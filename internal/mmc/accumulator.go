package mmc

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// BasisOrder selects the spatial basis of the accumulator.
type BasisOrder uint8

const (
	BasisElement BasisOrder = 0 // constant-per-element
	BasisNode    BasisOrder = 1 // piecewise-linear over nodes
)

// OutputType selects what quantity the accumulator stores.
type OutputType uint8

const (
	OutputFlux OutputType = iota
	OutputFluence
	OutputEnergy
	OutputJacobian
	OutputWeightedPathlength
	OutputWeightedScatter
)

// GridParams describes the Cartesian voxel grid used by the grid-Badouel
// ray-tracer method.
type GridParams struct {
	Nx, Ny, Nz int
	Min        Point3
	DStep      float64 // inverse voxel edge length, in mesh-native units
}

func (g GridParams) voxelOf(p Point3) (int, int, int, bool) {
	ix := int(math.Floor((p.X - g.Min.X) * g.DStep))
	iy := int(math.Floor((p.Y - g.Min.Y) * g.DStep))
	iz := int(math.Floor((p.Z - g.Min.Z) * g.DStep))
	if ix < 0 || iy < 0 || iz < 0 || ix >= g.Nx || iy >= g.Ny || iz >= g.Nz {
		return 0, 0, 0, false
	}
	return ix, iy, iz, true
}

func (g GridParams) index(ix, iy, iz int) int {
	return (ix*g.Ny+iy)*g.Nz + iz
}

// Accumulator is the time-gated fluence/energy field: a flat array of
// G*S floats indexed (gate, site), where site is a node index, an
// element index, or a grid voxel index depending on Basis. It supports
// either lock-free atomic adds (a CAS loop on the IEEE-754 bit pattern)
// or per-worker private copies merged with Reduce, selected by Atomic.
type Accumulator struct {
	Field  []float64
	Gates  int
	Sites  int
	Basis  BasisOrder
	Atomic bool
}

// NewAccumulator allocates a zeroed G*S field.
func NewAccumulator(gates, sites int, basis BasisOrder, atomic bool) *Accumulator {
	return &Accumulator{
		Field:  make([]float64, gates*sites),
		Gates:  gates,
		Sites:  sites,
		Basis:  basis,
		Atomic: atomic,
	}
}

func (a *Accumulator) idx(gate, site int) int { return gate*a.Sites + site }

// Add deposits delta at (gate, site), atomically if a.Atomic.
func (a *Accumulator) Add(gate, site int, delta float64) {
	i := a.idx(gate, site)
	if a.Atomic {
		atomicAddFloat64(&a.Field[i], delta)
		return
	}
	a.Field[i] += delta
}

// atomicAddFloat64 emulates a hardware float-add with a CAS loop on the
// bit pattern. Go has no native atomic float add; per-worker private
// accumulators merged by Reduce are the alternative when contention on
// this loop becomes the bottleneck.
func atomicAddFloat64(addr *float64, delta float64) {
	ptr := (*uint64)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint64(ptr)
		newVal := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(ptr, old, newVal) {
			return
		}
	}
}

// Reduce sums a set of per-worker private accumulators into a freshly
// allocated field, used when Atomic is false.
func Reduce(workers []*Accumulator) []float64 {
	if len(workers) == 0 {
		return nil
	}
	out := make([]float64, len(workers[0].Field))
	for _, w := range workers {
		for i, v := range w.Field {
			out[i] += v
		}
	}
	return out
}

// Gate returns the clipped gate index for time tau.
func Gate(tau, t0, dt float64, gates int) int {
	g := int(math.Floor((tau - t0) / dt))
	if g < 0 {
		g = 0
	}
	if g >= gates {
		g = gates - 1
	}
	return g
}

// depositScale applies the flux/jacobian 1/mua adjustment.
func depositScale(out OutputType, mua float64) float64 {
	if (out == OutputFlux || out == OutputJacobian) && mua > 0 {
		return 1 / mua
	}
	return 1
}

// DepositElement applies the basis=0 element-constant rule: add dE to
// acc[gate, e].
func (a *Accumulator) DepositElement(gate int, e int32, dE float64, out OutputType, mua float64) {
	a.Add(gate, int(e), dE*depositScale(out, mua))
}

// DepositNode applies the basis=1 nodal piecewise-linear rule: split dE
// into thirds across the three nodes bordering the exit face.
func (a *Accumulator) DepositNode(gate int, faceNodes [3]int32, dE float64, out OutputType, mua float64) {
	share := dE * depositScale(out, mua) / 3
	for _, n := range faceNodes {
		a.Add(gate, int(n), share)
	}
}

// DepositGrid implements the grid-Badouel accumulation rule: the step is
// subdivided into 2*ceil(L*dstep) equal segments, and the per-step
// deposit decays geometrically across the subsegments by exp(-mua*deltaS),
// each sampled at its segment midpoint's voxel.
func (a *Accumulator) DepositGrid(gate int, grid GridParams, p0 Point3, v Vec3, length, mua float64, w float64, out OutputType) {
	if length <= 0 {
		return
	}
	n := 2 * int(math.Ceil(length*grid.DStep))
	if n < 1 {
		n = 1
	}
	deltaS := length / float64(n)
	decay := math.Exp(-mua * deltaS)
	remaining := w
	scale := depositScale(out, mua)
	for i := 0; i < n; i++ {
		mid := float64(i) + 0.5
		pMid := p0.Add(v.Mul(mid * deltaS))
		dep := remaining * (1 - decay)
		remaining *= decay
		if ix, iy, iz, ok := grid.voxelOf(pMid); ok {
			a.Add(gate, grid.index(ix, iy, iz), dep*scale)
		}
	}
}
