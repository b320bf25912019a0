package mmc

import "fmt"

// Medium holds the optical properties of one tissue/material type. Index
// 0 is reserved for background/void.
type Medium struct {
	Mua float64 // absorption coefficient, 1/mm
	Mus float64 // scattering coefficient, 1/mm
	G   float64 // Henyey-Greenstein anisotropy, -1 < g < 1
	N   float64 // refractive index, n >= 1
}

func (m Medium) validate(index int) error {
	if m.Mua < 0 || m.Mus < 0 {
		return &ConfigError{Field: "med", Reason: "mua and mus must be >= 0"}
	}
	if m.G <= -1 || m.G >= 1 {
		return &ConfigError{Field: "med", Reason: "g must satisfy -1 < g < 1"}
	}
	if m.N < 1 {
		return &ConfigError{Field: "med", Reason: "n must be >= 1"}
	}
	return nil
}

// MediumTable is the immutable array of optical properties indexed by
// material id, with index 0 always meaning background/void.
type MediumTable []Medium

func (t MediumTable) validate() error {
	if len(t) == 0 {
		return &ConfigError{Field: "med", Reason: "medium table must not be empty"}
	}
	for i, m := range t {
		if err := m.validate(i); err != nil {
			return err
		}
	}
	return nil
}

// Detector is a sphere of radius R centered at Pos, tested against a
// photon's exit point on every void crossing.
type Detector struct {
	Pos [3]float64
	R   float64
}

func validateDetectors(dets []Detector) error {
	for i, d := range dets {
		if d.R <= 0 {
			return &ConfigError{Field: "detpos", Reason: fmt.Sprintf("detector %d radius must be > 0", i)}
		}
	}
	return nil
}
