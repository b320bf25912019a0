package mmc

// twoTetMesh builds a small bipyramid: two tets glued on the shared
// triangular face {1,2,3}, with tetA's apex at +z and tetB's apex at -z.
// Each tet lists that shared face as local face index 3 (opposite its
// apex node), so Neighbor[3] on each side points at the other tet,
// matching NewMesh's opposite-vertex face convention.
func twoTetMesh() *Mesh {
	nodes := []Node{
		{},
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
		{X: 0, Y: 0, Z: -1},
	}
	elemNodes := [][4]int32{
		{},
		{1, 2, 3, 4},
		{1, 2, 3, 5},
	}
	elemNeighbor := [][4]int32{
		{},
		{0, 0, 0, 2},
		{0, 0, 0, 1},
	}
	elemMat := []int32{0, 1, 1}

	m, err := NewMesh(nodes, elemNodes, elemNeighbor, elemMat)
	if err != nil {
		panic(err)
	}
	return m
}

// matchedMedia is a two-entry table where the one real material shares
// the background's refractive index, so crossings never trigger a
// Fresnel test.
func matchedMedia() MediumTable {
	return MediumTable{
		{Mua: 0, Mus: 0, G: 0, N: 1},
		{Mua: 0.01, Mus: 1.0, G: 0.9, N: 1},
	}
}

// mismatchedMedia gives the real material a higher index than the
// background, for reflection/refraction tests.
func mismatchedMedia() MediumTable {
	return MediumTable{
		{Mua: 0, Mus: 0, G: 0, N: 1},
		{Mua: 0.01, Mus: 1.0, G: 0.9, N: 1.4},
	}
}
