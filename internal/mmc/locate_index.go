package mmc

import (
	"sort"
	"sync"
)

// locateNode is one node of a median-split AABB tree over element
// bounding boxes, queried by point containment rather than by ray
// intersection: LocateElement and the void-entry march both need "which
// tets could contain this point" for meshes far larger than the handful
// of elements a brute-force scan over candidateElems can afford.
type locateNode struct {
	min, max Point3
	left     *locateNode
	right    *locateNode
	elems    []int32 // non-nil => leaf
}

const locateLeafSize = 8

// locateIndexCache keyed by *Mesh mirrors the teacher's BVH cache keyed
// by *Scene: the index is built once per mesh and reused across every
// photon dispatched against it, rather than changing the Mesh struct
// itself to carry a pointer into itself.
var locateIndexCache sync.Map // map[*Mesh]*locateNode

func getOrBuildLocateIndex(m *Mesh) *locateNode {
	if v, ok := locateIndexCache.Load(m); ok {
		return v.(*locateNode)
	}
	leaves := make([]leafBox, 0, len(m.Elems)-1)
	for e := int32(1); e < int32(len(m.Elems)); e++ {
		min, max := elemBounds(m, e)
		leaves = append(leaves, leafBox{min: min, max: max, elem: e})
	}
	root := buildLocateTree(leaves)
	locateIndexCache.Store(m, root)
	return root
}

type leafBox struct {
	min, max Point3
	elem     int32
}

// boxPad slightly grows every element's bounding box so that the
// tolerance LocateElement applies to its barycentric test near a face
// can never put a point outside the box that gates entry to that box's
// leaf: the box is a conservative superset, not an exact fit.
const boxPad = 1e-6

func elemBounds(m *Mesh, e int32) (Point3, Point3) {
	n := m.Elems[e].N
	min := m.Nodes[n[0]].point()
	max := min
	for _, idx := range n[1:] {
		p := m.Nodes[idx].point()
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
	min = Point3{min.X - boxPad, min.Y - boxPad, min.Z - boxPad}
	max = Point3{max.X + boxPad, max.Y + boxPad, max.Z + boxPad}
	return min, max
}

func buildLocateTree(boxes []leafBox) *locateNode {
	n := len(boxes)
	if n == 0 {
		return nil
	}
	minP, maxP := boxes[0].min, boxes[0].max
	for _, b := range boxes[1:] {
		minP, maxP = boxUnion(minP, maxP, b.min, b.max)
	}
	if n <= locateLeafSize {
		elems := make([]int32, n)
		for i, b := range boxes {
			elems[i] = b.elem
		}
		return &locateNode{min: minP, max: maxP, elems: elems}
	}

	axis := widestAxis(minP, maxP)
	sort.Slice(boxes, func(i, j int) bool {
		return centroidAxis(boxes[i], axis) < centroidAxis(boxes[j], axis)
	})
	mid := n / 2
	return &locateNode{
		min:   minP,
		max:   maxP,
		left:  buildLocateTree(boxes[:mid]),
		right: buildLocateTree(boxes[mid:]),
	}
}

func boxUnion(aMin, aMax, bMin, bMax Point3) (Point3, Point3) {
	min := Point3{fMin(aMin.X, bMin.X), fMin(aMin.Y, bMin.Y), fMin(aMin.Z, bMin.Z)}
	max := Point3{fMax(aMax.X, bMax.X), fMax(aMax.Y, bMax.Y), fMax(aMax.Z, bMax.Z)}
	return min, max
}

func widestAxis(min, max Point3) int {
	dx, dy, dz := max.X-min.X, max.Y-min.Y, max.Z-min.Z
	axis := 0
	widest := dx
	if dy > widest {
		axis, widest = 1, dy
	}
	if dz > widest {
		axis = 2
	}
	return axis
}

func centroidAxis(b leafBox, axis int) float64 {
	switch axis {
	case 0:
		return (b.min.X + b.max.X) / 2
	case 1:
		return (b.min.Y + b.max.Y) / 2
	default:
		return (b.min.Z + b.max.Z) / 2
	}
}

func fMin(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func fMax(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// queryLocateIndex appends to out every element whose bounding box
// contains p, walking only the subtrees whose box contains p rather than
// the whole mesh.
func queryLocateIndex(node *locateNode, p Point3, out []int32) []int32 {
	if node == nil || !boxContains(node.min, node.max, p) {
		return out
	}
	if node.elems != nil {
		return append(out, node.elems...)
	}
	out = queryLocateIndex(node.left, p, out)
	out = queryLocateIndex(node.right, p, out)
	return out
}

func boxContains(min, max Point3, p Point3) bool {
	return p.X >= min.X && p.X <= max.X &&
		p.Y >= min.Y && p.Y <= max.Y &&
		p.Z >= min.Z && p.Z <= max.Z
}
