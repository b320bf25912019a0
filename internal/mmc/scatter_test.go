package mmc

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestScatterPreservesUnitLength(t *testing.T) {
	r := Seed(4, 4)
	v := Vec3{0, 0, 1}
	for _, g := range []float64{-0.8, 0, 0.8} {
		for i := 0; i < 100; i++ {
			newV, _ := Scatter(v, g, &r)
			if math.Abs(newV.Len()-1) > 1e-9 {
				t.Fatalf("g=%g: scattered direction not unit length: %v (len=%g)", g, newV, newV.Len())
			}
		}
	}
}

func TestScatterOneMinusCosThetaRange(t *testing.T) {
	r := Seed(6, 6)
	v := Vec3{1, 0, 0}
	for i := 0; i < 1000; i++ {
		_, oneMinusCos := Scatter(v, 0.5, &r)
		if oneMinusCos < 0 || oneMinusCos > 2 {
			t.Fatalf("1-cos(theta) out of [0,2]: %g", oneMinusCos)
		}
	}
}

// TestNextCosThetaHGMeanMatchesAnisotropy checks the defining moment of
// the Henyey-Greenstein distribution, E[cos(theta)] = g, via gonum/stat's
// sample mean over a large draw count.
func TestNextCosThetaHGMeanMatchesAnisotropy(t *testing.T) {
	r := Seed(13, 13)
	const n = 50000
	for _, g := range []float64{0.3, 0.7, -0.6} {
		draws := make([]float64, n)
		for i := range draws {
			draws[i] = r.NextCosThetaHG(g)
		}
		mean := stat.Mean(draws, nil)
		if math.Abs(mean-g) > 0.02 {
			t.Fatalf("g=%g: sample mean cos(theta) = %g, want ~%g", g, mean, g)
		}
	}
}

func TestScatterHandlesAxisSingularity(t *testing.T) {
	r := Seed(8, 8)
	for _, v := range []Vec3{{0, 0, 1}, {0, 0, -1}} {
		for i := 0; i < 50; i++ {
			newV, _ := Scatter(v, 0.3, &r)
			if math.Abs(newV.Len()-1) > 1e-9 {
				t.Fatalf("scattering off axis %v should still yield a unit vector, got %v", v, newV)
			}
		}
	}
}
