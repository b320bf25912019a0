package main

import (
	"context"
	"fmt"
	"os"

	"github.com/photontrace/mmc/internal/mmc"
)

func main() {
	path := "configs/run.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := mmc.LoadConfig(path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	mesh, media, detectors, err := demoMesh()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	res, err := mmc.Dispatch(context.Background(), mesh, media, detectors, *cfg, 0)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("run %s: launched=%.4f absorbed=%.4f detected=%d overflow=%d errored=%d\n",
		res.RunID, res.LaunchedWeight, res.AbsorbedWeight, len(res.Detected), res.Overflow, res.Errored)
}

// demoMesh builds a single-tet, two-medium mesh so the core is runnable
// end to end without a real mesh loader (mesh I/O is an external
// collaborator's job). A 10mm-edge right tetrahedron at the origin, all
// four faces exterior, is enough to exercise launch, stepping, exit, and
// detector capture.
func demoMesh() (*mmc.Mesh, []mmc.Medium, []mmc.Detector, error) {
	nodes := []mmc.Node{
		{},
		{X: 0, Y: 0, Z: 0},
		{X: 10, Y: 0, Z: 0},
		{X: 0, Y: 10, Z: 0},
		{X: 0, Y: 0, Z: 10},
	}
	elemNodes := [][4]int32{{}, {1, 2, 3, 4}}
	elemNeighbor := [][4]int32{{}, {0, 0, 0, 0}}
	elemMat := []int32{0, 1}

	mesh, err := mmc.NewMesh(nodes, elemNodes, elemNeighbor, elemMat)
	if err != nil {
		return nil, nil, nil, err
	}

	media := []mmc.Medium{
		{Mua: 0, Mus: 0, G: 0, N: 1},
		{Mua: 0.005, Mus: 1.0, G: 0.9, N: 1.37},
	}
	detectors := []mmc.Detector{
		{Pos: [3]float64{0, 0, 0}, R: 2},
	}
	return mesh, media, detectors, nil
}
