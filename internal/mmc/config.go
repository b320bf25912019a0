package mmc

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// SourceCfg is the JSON-facing source descriptor: a type name plus the
// same two 4-vector parameter slots Source carries, matching the
// srctype/srcpos/srcdir/srcparam1/srcparam2 naming of the reference tool
// chain so a config file written for that tool chain is recognizable
// here.
type SourceCfg struct {
	Type   string     `json:"srctype"`
	Pos    [3]float64 `json:"srcpos"`
	Dir    [3]float64 `json:"srcdir"`
	Param1 [4]float64 `json:"srcparam1"`
	Param2 [4]float64 `json:"srcparam2"`
	Focus  float64    `json:"srcfocus,omitempty"`

	// Phase/Amplitude are the fourier/fourierX/fourierX2D family's phi
	// and A in (cos(k.(u,v)+phi)*A+1)/2; srcparam1.w/srcparam2.w are
	// already claimed by kx/ky, so these ride alongside as their own
	// fields rather than overloading a third vector slot. Amplitude
	// defaults to 1 (no attenuation of the modulation) when left zero.
	Phase     float64 `json:"srcphase,omitempty"`
	Amplitude float64 `json:"srcamplitude,omitempty"`
}

var sourceTypeByName = map[string]SourceType{
	"pencil":     SourcePencil,
	"isotropic":  SourceIsotropic,
	"cone":       SourceCone,
	"gaussian":   SourceGaussian,
	"planar":     SourcePlanar,
	"pattern":    SourcePattern,
	"fourier":    SourceFourier,
	"fourierx":   SourceFourierX,
	"fourierx2d": SourceFourierX2D,
	"arcsine":    SourceArcsine,
	"disk":       SourceDisk,
	"zgaussian":  SourceZGaussian,
	"line":       SourceLine,
	"slit":       SourceSlit,
}

// Build resolves sc into a runtime Source. Decoding a pattern image file
// named in a real config is the external loader's job; callers that need
// SourcePattern attach the decoded buffer afterward via Config.SetPattern.
func (sc SourceCfg) Build() (Source, error) {
	t := SourcePencil
	if sc.Type != "" {
		var ok bool
		t, ok = sourceTypeByName[strings.ToLower(sc.Type)]
		if !ok {
			return Source{}, &ConfigError{Field: "srctype", Reason: fmt.Sprintf("unknown source type %q", sc.Type)}
		}
	}
	dir := Vec3{sc.Dir[0], sc.Dir[1], sc.Dir[2]}
	if dir.Len() == 0 {
		return Source{}, &ConfigError{Field: "srcdir", Reason: "must be non-zero"}
	}
	amplitude := sc.Amplitude
	if amplitude == 0 {
		amplitude = 1
	}
	return Source{
		Type:      t,
		Pos:       Point3{sc.Pos[0], sc.Pos[1], sc.Pos[2]},
		Dir:       dir.Norm(),
		Param1:    sc.Param1,
		Param2:    sc.Param2,
		Focus:     sc.Focus,
		Phase:     sc.Phase,
		Amplitude: amplitude,
	}, nil
}

// GridCfg is the JSON-facing Cartesian grid descriptor, resolved into a
// GridParams only when Method is MethodGridBadouel. In JSON the three
// grid dimensions are one "dim": [Nx, Ny, Nz] array.
type GridCfg struct {
	Nx, Ny, Nz int        `json:"-"`
	Min        [3]float64 `json:"nmin"`
	DStep      float64    `json:"dstep"`
}

// UnmarshalJSON reads "dim" into Nx/Ny/Nz, keeping any field whose key
// is absent.
func (g *GridCfg) UnmarshalJSON(data []byte) error {
	raw := struct {
		Dim   [3]int     `json:"dim"`
		Min   [3]float64 `json:"nmin"`
		DStep float64    `json:"dstep"`
	}{Dim: [3]int{g.Nx, g.Ny, g.Nz}, Min: g.Min, DStep: g.DStep}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Nx, g.Ny, g.Nz = raw.Dim[0], raw.Dim[1], raw.Dim[2]
	g.Min, g.DStep = raw.Min, raw.DStep
	return nil
}

func (g GridCfg) Build() GridParams {
	return GridParams{
		Nx:    g.Nx,
		Ny:    g.Ny,
		Nz:    g.Nz,
		Min:   Point3{g.Min[0], g.Min[1], g.Min[2]},
		DStep: g.DStep,
	}
}

// Config is the read-only-at-dispatch run configuration: time window,
// photon count, weight/roulette thresholds, the boolean flags named in
// the reference tool chain's CLI surface, and the basis/method/output
// enums. Mesh, media, and detectors travel alongside Config as separate
// Dispatch arguments rather than embedded fields, since they are owned
// and validated independently (mesh.Validate, MediumTable.validate).
type Config struct {
	Nph  int64  `json:"nphoton"`
	Seed uint32 `json:"seed"`

	T0        float64 `json:"tstart"`
	T1        float64 `json:"tend"`
	GateWidth float64 `json:"tstep"`
	Gates     int     `json:"-"` // derived by Resolve

	BackgroundIndex float64 `json:"n0"`
	MinWeight       float64 `json:"minenergy"`
	RouletteSize    float64 `json:"roulettesize"`

	Reflect          bool `json:"isreflect"`
	SaveDetector     bool `json:"issavedet"`
	SaveExit         bool `json:"issaveexit"`
	SaveSeed         bool `json:"issaveseed"`
	SaveMomentum     bool `json:"ismomentum"`
	VoidTime         bool `json:"voidtime"`
	Specular         bool `json:"isspecular"`
	SpecularMode     int  `json:"specularmode"`
	TimeResolved     bool `json:"istimeresolved"`
	AtomicAccumulate bool `json:"isatomic"`

	// ExternalDetector is step 7's exception (spec §4.7): rather than
	// capturing-and-terminating at a void exit, the photon keeps
	// marching through the background medium so detectors placed
	// outside the mesh can still catch it later. Mirrors the reference
	// tool chain's isextdet.
	ExternalDetector bool `json:"isextdet"`

	Basis  BasisOrder      `json:"basisorder"`
	Method RayTracerMethod `json:"raytracer"`
	Output OutputType      `json:"outputtype"`

	MaxDet int `json:"maxdetphoton"`

	Src  SourceCfg `json:"source"`
	Grid GridCfg   `json:"grid,omitempty"`

	// SourceElems restricts the initial element-locate search (4.8's
	// "user-provided source-element list") to a known subset of tets
	// near the source, e.g. ones touching the mesh surface. Empty means
	// search every element.
	SourceElems []int32 `json:"srcelemlist,omitempty"`

	source Source
	grid   GridParams
}

// DefaultConfig returns the baseline values applied before a JSON file is
// unmarshaled on top, mirroring the reference tool chain's own defaults
// (basisorder=1, minenergy=1e-6, reflect on, atomic on).
func DefaultConfig() Config {
	return Config{
		Nph:              100000,
		Seed:             1,
		T0:               0,
		T1:               5e-9,
		GateWidth:        5e-9,
		BackgroundIndex:  1,
		MinWeight:        1e-6,
		RouletteSize:     20,
		Reflect:          true,
		AtomicAccumulate: true,
		MaxDet:           1 << 20,
		Basis:            BasisNode,
		Method:           MethodBadouelBranchless,
		Output:           OutputFlux,
		Src:              SourceCfg{Type: "pencil", Dir: [3]float64{0, 0, 1}},
	}
}

// LoadConfig reads and validates a JSON config file, returning a Config
// ready to pass to Dispatch.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	debugLogOnce(DebugProgress, "config:"+path, "loaded %s: nphoton=%d gates=%d method=%d basis=%d output=%d",
		path, cfg.Nph, cfg.Gates, cfg.Method, cfg.Basis, cfg.Output)
	return &cfg, nil
}

// resolve validates cfg and fills its derived fields (Gates, the
// resolved Source, and, for the grid method, GridParams).
func (c *Config) resolve() error {
	if c.Nph <= 0 {
		return &ConfigError{Field: "nphoton", Reason: "must be > 0"}
	}
	if c.T1 <= c.T0 {
		return &ConfigError{Field: "tend", Reason: "must be > tstart"}
	}
	if c.GateWidth <= 0 {
		return &ConfigError{Field: "tstep", Reason: "must be > 0"}
	}
	c.Gates = int(math.Ceil((c.T1 - c.T0) / c.GateWidth))
	if c.Gates < 1 {
		c.Gates = 1
	}
	if !c.TimeResolved && c.Gates > 1 {
		c.TimeResolved = true
	}
	if c.RouletteSize <= 0 {
		return &ConfigError{Field: "roulettesize", Reason: "must be > 0"}
	}
	if c.MinWeight < 0 {
		return &ConfigError{Field: "minenergy", Reason: "must be >= 0"}
	}
	if c.BackgroundIndex < 1 {
		return &ConfigError{Field: "n0", Reason: "must be >= 1"}
	}
	if c.MaxDet <= 0 {
		return &ConfigError{Field: "maxdetphoton", Reason: "must be > 0"}
	}
	if c.Specular && c.SpecularMode != 1 && c.SpecularMode != 2 {
		c.SpecularMode = 1
	}

	src, err := c.Src.Build()
	if err != nil {
		return err
	}
	c.source = src

	if c.Method == MethodGridBadouel {
		if c.Grid.DStep <= 0 || c.Grid.Nx <= 0 || c.Grid.Ny <= 0 || c.Grid.Nz <= 0 {
			return &ConfigError{Field: "grid", Reason: "dim and dstep must be > 0 for the grid-Badouel method"}
		}
		c.grid = c.Grid.Build()
	}
	return nil
}

// Source returns the resolved runtime source descriptor built from Src.
// Valid only after LoadConfig/Validate has run.
func (c Config) Source() Source { return c.source }

// SetPattern attaches a decoded pattern image to the resolved source, for
// SourcePattern-typed sources whose image an external loader has decoded.
func (c *Config) SetPattern(p *Pattern) { c.source.Pattern = p }

// GridParams returns the resolved Cartesian grid, valid when
// Method == MethodGridBadouel.
func (c Config) GridParams() GridParams { return c.grid }

// sourceElems returns cfg.SourceElems if non-empty, else every element in
// mesh (1-based, excluding the unused index-0 slot).
func (c Config) sourceElems(mesh *Mesh) []int32 {
	if len(c.SourceElems) > 0 {
		return c.SourceElems
	}
	all := make([]int32, len(mesh.Elems)-1)
	for i := range all {
		all[i] = int32(i + 1)
	}
	return all
}

// sitesFor returns the accumulator's per-gate site count for cfg's
// basis/method combination.
func sitesFor(mesh *Mesh, cfg Config) int {
	if cfg.Method == MethodGridBadouel {
		g := cfg.GridParams()
		return g.Nx * g.Ny * g.Nz
	}
	if cfg.Basis == BasisNode {
		return len(mesh.Nodes)
	}
	return len(mesh.Elems)
}

// Validate runs resolve and also checks media/detectors against the
// table-level rules that don't depend on Config alone, matching the
// ConfigError surface spec'd for pre-dispatch validation.
func (c *Config) Validate(media MediumTable, detectors []Detector) error {
	if err := c.resolve(); err != nil {
		return err
	}
	if err := media.validate(); err != nil {
		return err
	}
	if c.SaveDetector && len(detectors) == 0 && !c.ExternalDetector {
		return &ConfigError{Field: "detpos", Reason: "save-detector is set but no detectors were given"}
	}
	return validateDetectors(detectors)
}
