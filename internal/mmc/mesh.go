package mmc

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Node is an immutable 3D mesh vertex. Mesh tables index nodes 1-based;
// index 0 is reserved to mean "outside".
type Node struct {
	X, Y, Z float64
}

func (n Node) point() Point3 { return Point3{n.X, n.Y, n.Z} }

// FacePlane stores the scaled plane coefficients for one tet face such
// that evaluating Eval(p) at any point directly returns the barycentric
// coordinate of the vertex opposite that face: scaling the raw plane
// equation so it reads 1 at the owning vertex and 0 at the other three
// makes Eval identical to that vertex's barycentric coordinate at any
// point. Eval(p) = Nx*p.X + Ny*p.Y + Nz*p.Z + D.
type FacePlane struct {
	Nx, Ny, Nz float64
	D          float64
}

// Eval returns the barycentric coordinate of the vertex opposite this
// face, for point p.
func (fp FacePlane) Eval(p Point3) float64 {
	return fp.Nx*p.X + fp.Ny*p.Y + fp.Nz*p.Z + fp.D
}

// Grad is the (non-unit) gradient of Eval; it points from the face toward
// the opposite (owning) vertex, i.e. inward. OutwardNormal negates it.
func (fp FacePlane) Grad() Vec3 { return Vec3{fp.Nx, fp.Ny, fp.Nz} }

// OutwardNormal is the unit normal pointing away from the tet across this
// face, used by the Fresnel/reflection step.
func (fp FacePlane) OutwardNormal() Vec3 {
	return Vec3{-fp.Nx, -fp.Ny, -fp.Nz}.Norm()
}

// Elem is one tetrahedron: four 1-based node indices, the material index
// (0 = void/background), the signed volume, and the four face planes.
// Face f is opposite node index N[f] and borders neighbor tet Neighbor[f]
// (0 = exterior).
type Elem struct {
	N        [4]int32
	Neighbor [4]int32
	Mat      int32
	Vol      float64
	Face     [4]FacePlane
}

// Mesh is the immutable, read-only-after-construction container for node
// coordinates, tet->node indices, tet->neighbor indices, and per-tet face
// planes. Loading a mesh from a file format is an external loader's job;
// Mesh here is the shape the core consumes, built either by NewMesh (for
// tests and the cmd/mmc demo) or by an external loader satisfying the
// same shape. The neighbor graph is expected to contain cycles (two tets
// can each be the other's neighbor across shared faces) and Validate
// checks that the cycle is consistent rather than assuming it is a tree.
type Mesh struct {
	Nodes []Node // 1-based: Nodes[0] is unused padding
	Elems []Elem // 1-based: Elems[0] is unused padding
}

// NewMesh builds face planes and volumes from raw node/neighbor/material
// tables. nodes and elemNodes/elemNeighbor/elemMat are all 1-based (index
// 0 is padding), matching the indexing convention used throughout the
// core.
func NewMesh(nodes []Node, elemNodes [][4]int32, elemNeighbor [][4]int32, elemMat []int32) (*Mesh, error) {
	if len(elemNodes) != len(elemNeighbor) || len(elemNodes) != len(elemMat) {
		return nil, &ConfigError{Field: "mesh", Reason: "elem/neighbor/material table length mismatch"}
	}
	m := &Mesh{
		Nodes: nodes,
		Elems: make([]Elem, len(elemNodes)),
	}
	for e := 1; e < len(elemNodes); e++ {
		elem := Elem{
			N:        elemNodes[e],
			Neighbor: elemNeighbor[e],
			Mat:      elemMat[e],
		}
		vol, err := tetVolume(m.Nodes, elem.N)
		if err != nil {
			return nil, err
		}
		elem.Vol = vol
		for f := 0; f < 4; f++ {
			fp, err := buildFacePlane(m.Nodes, elem.N, f)
			if err != nil {
				return nil, fmt.Errorf("elem %d face %d: %w", e, f, err)
			}
			elem.Face[f] = fp
		}
		m.Elems[e] = elem
	}
	return m, nil
}

// tetVolume returns the signed volume of tet n via the scalar triple
// product of its edge vectors, divided by 6.
func tetVolume(nodes []Node, n [4]int32) (float64, error) {
	v0, v1, v2, v3, err := tetVertices(nodes, n)
	if err != nil {
		return 0, err
	}
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	e3 := v3.Sub(v0)
	return e1.Cross(e2).Dot(e3) / 6, nil
}

func tetVertices(nodes []Node, n [4]int32) (Point3, Point3, Point3, Point3, error) {
	var pts [4]Point3
	for i, idx := range n {
		if idx <= 0 || int(idx) >= len(nodes) {
			return Point3{}, Point3{}, Point3{}, Point3{}, &MeshError{Reason: "node index out of range"}
		}
		pts[i] = nodes[idx].point()
	}
	return pts[0], pts[1], pts[2], pts[3], nil
}

// buildFacePlane computes the scaled plane coefficients for the face of
// tet n opposite local vertex f, via the null space of the homogeneous
// system {a*x+b*y+c*z+d = 0} over the three vertices on that face. The
// 3x4 coefficient matrix is rank-deficient by construction (3 equations,
// 4 unknowns); its null vector is recovered with an SVD, the idiomatic
// gonum way to solve an under-determined homogeneous linear system,
// instead of hand-rolled Cramer's-rule cofactor expansion (see
// DESIGN.md — grounded via other_examples/Notargets-gocfd's use of
// gonum.org/v1/gonum/mat for tetrahedral basis work).
func buildFacePlane(nodes []Node, n [4]int32, f int) (FacePlane, error) {
	var facePts [3]Point3
	var opposite Point3
	fi := 0
	for i, idx := range n {
		if idx <= 0 || int(idx) >= len(nodes) {
			return FacePlane{}, &MeshError{Reason: "node index out of range"}
		}
		p := nodes[idx].point()
		if i == f {
			opposite = p
			continue
		}
		facePts[fi] = p
		fi++
	}

	A := mat.NewDense(3, 4, nil)
	for i, p := range facePts {
		A.Set(i, 0, p.X)
		A.Set(i, 1, p.Y)
		A.Set(i, 2, p.Z)
		A.Set(i, 3, 1)
	}

	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDFull); !ok {
		return FacePlane{}, &MeshError{Reason: "face-plane SVD failed to factorize"}
	}
	var v mat.Dense
	svd.VTo(&v)
	// The null vector is the right-singular vector for the smallest
	// singular value, i.e. the last column of V for a 3x4 A.
	coeff := [4]float64{v.At(0, 3), v.At(1, 3), v.At(2, 3), v.At(3, 3)}

	val := coeff[0]*opposite.X + coeff[1]*opposite.Y + coeff[2]*opposite.Z + coeff[3]
	if val == 0 || !isFinite(val) {
		return FacePlane{}, &MeshError{Reason: "degenerate tetrahedron: zero-height face"}
	}
	return FacePlane{
		Nx: coeff[0] / val,
		Ny: coeff[1] / val,
		Nz: coeff[2] / val,
		D:  coeff[3] / val,
	}, nil
}

// Barycentric evaluates all four barycentric coordinates of p against
// tet e, for use by the source launch sampler's element-locate step and
// by anything that needs a point-in-tet test.
func (m *Mesh) Barycentric(e int32, p Point3) [4]float64 {
	elem := &m.Elems[e]
	var b [4]float64
	for f := 0; f < 4; f++ {
		b[f] = elem.Face[f].Eval(p)
	}
	return b
}

// Contains reports whether p lies in the closure of tet e: all four
// barycentric coordinates non-negative within tolerance tol.
func (m *Mesh) Contains(e int32, p Point3, tol float64) bool {
	b := m.Barycentric(e, p)
	for _, bi := range b {
		if bi < -tol {
			return false
		}
	}
	return true
}

// Validate checks that every interior face's neighbor entry is symmetric
// (nb[e,f] = e' implies nb[e',f'] = e for the matching face). Detected
// violations are returned as MeshError values; Dispatch runs this once
// before starting workers and refuses the batch if any are found.
func (m *Mesh) Validate() []error {
	var errs []error
	faceNodes := func(e int32, f int) [3]int32 {
		var out [3]int32
		j := 0
		for i, idx := range m.Elems[e].N {
			if i == f {
				continue
			}
			out[j] = idx
			j++
		}
		return sortedTriple(out)
	}
	for e := int32(1); e < int32(len(m.Elems)); e++ {
		for f := 0; f < 4; f++ {
			nb := m.Elems[e].Neighbor[f]
			if nb == 0 {
				continue
			}
			if int(nb) >= len(m.Elems) || nb < 0 {
				errs = append(errs, &MeshError{Elem: e, Reason: fmt.Sprintf("face %d neighbor %d out of range", f, nb)})
				continue
			}
			want := faceNodes(e, f)
			matched := false
			for fp := 0; fp < 4; fp++ {
				if m.Elems[nb].Neighbor[fp] != e {
					continue
				}
				if faceNodes(nb, fp) == want {
					matched = true
					break
				}
			}
			if !matched {
				errs = append(errs, &MeshError{Elem: e, Reason: fmt.Sprintf("face %d neighbor %d has no matching back-reference", f, nb)})
			}
		}
	}
	return errs
}

// Diameter returns the diagonal length of the mesh's axis-aligned bounding
// box, used to scale the void-entry marching step in photon.go to the
// mesh's own length unit instead of an arbitrary absolute constant.
func (m *Mesh) Diameter() float64 {
	if len(m.Nodes) <= 1 {
		return 0
	}
	min := m.Nodes[1].point()
	max := min
	for _, n := range m.Nodes[1:] {
		p := n.point()
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.Z < min.Z {
			min.Z = p.Z
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
		if p.Z > max.Z {
			max.Z = p.Z
		}
	}
	return max.Sub(min).Len()
}

func sortedTriple(t [3]int32) [3]int32 {
	if t[0] > t[1] {
		t[0], t[1] = t[1], t[0]
	}
	if t[1] > t[2] {
		t[1], t[2] = t[2], t[1]
	}
	if t[0] > t[1] {
		t[0], t[1] = t[1], t[0]
	}
	return t
}
