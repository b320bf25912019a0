package mmc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigResolves(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.resolve(); err != nil {
		t.Fatalf("DefaultConfig() should resolve cleanly: %v", err)
	}
	if cfg.Gates != 1 {
		t.Fatalf("a single [0,5e-9] window with a 5e-9 step should yield 1 gate, got %d", cfg.Gates)
	}
}

func TestResolveComputesGateCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.T0, cfg.T1, cfg.GateWidth = 0, 5, 1
	if err := cfg.resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Gates != 5 {
		t.Fatalf("gates = %d, want 5", cfg.Gates)
	}
	if !cfg.TimeResolved {
		t.Fatalf("multi-gate runs should default TimeResolved to true")
	}
}

func TestResolveRejectsBadTimeWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.T1 = cfg.T0
	if err := cfg.resolve(); err == nil {
		t.Fatalf("expected an error when tend <= tstart")
	}
}

func TestResolveRejectsNonPositivePhotonCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Nph = 0
	if err := cfg.resolve(); err == nil {
		t.Fatalf("expected an error for nphoton <= 0")
	}
}

func TestResolveDefaultsInvalidSpecularMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Specular = true
	cfg.SpecularMode = 99
	if err := cfg.resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.SpecularMode != 1 {
		t.Fatalf("invalid specular mode should default to 1, got %d", cfg.SpecularMode)
	}
}

func TestResolveRequiresGridParamsForGridMethod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = MethodGridBadouel
	if err := cfg.resolve(); err == nil {
		t.Fatalf("expected an error: grid method with no grid dims")
	}
	cfg.Grid = GridCfg{Nx: 4, Ny: 4, Nz: 4, DStep: 1}
	if err := cfg.resolve(); err != nil {
		t.Fatalf("resolve with a valid grid: %v", err)
	}
	if cfg.GridParams().Nx != 4 {
		t.Fatalf("resolved grid params did not carry through: %+v", cfg.GridParams())
	}
}

func TestSourceCfgBuildDefaultsToPencil(t *testing.T) {
	sc := SourceCfg{Dir: [3]float64{0, 0, 1}}
	src, err := sc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if src.Type != SourcePencil {
		t.Fatalf("empty srctype should default to pencil, got %d", src.Type)
	}
}

func TestSourceCfgBuildRejectsUnknownType(t *testing.T) {
	sc := SourceCfg{Type: "not-a-real-source", Dir: [3]float64{0, 0, 1}}
	if _, err := sc.Build(); err == nil {
		t.Fatalf("expected an error for an unknown source type")
	}
}

func TestSourceCfgBuildRejectsZeroDir(t *testing.T) {
	sc := SourceCfg{Type: "pencil"}
	if _, err := sc.Build(); err == nil {
		t.Fatalf("expected an error for a zero direction vector")
	}
}

func TestConfigValidateRequiresDetectorsWhenSaveDetectorSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SaveDetector = true
	if err := cfg.Validate(matchedMedia(), nil); err == nil {
		t.Fatalf("expected an error: save-detector set with no detectors")
	}
	if err := cfg.Validate(matchedMedia(), []Detector{{Pos: [3]float64{0, 0, 0}, R: 1}}); err != nil {
		t.Fatalf("unexpected error with a real detector present: %v", err)
	}
}

func TestConfigValidateAllowsNoDetectorsInExternalDetectorMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SaveDetector = true
	cfg.ExternalDetector = true
	if err := cfg.Validate(matchedMedia(), nil); err != nil {
		t.Fatalf("external-detector-mode should not require a detpos list: %v", err)
	}
}

func TestSourceElemsDefaultsToWholeMesh(t *testing.T) {
	m := twoTetMesh()
	cfg := DefaultConfig()
	elems := cfg.sourceElems(m)
	if len(elems) != 2 {
		t.Fatalf("expected both tets as candidates, got %v", elems)
	}
}

func TestSourceElemsHonorsExplicitList(t *testing.T) {
	m := twoTetMesh()
	cfg := DefaultConfig()
	cfg.SourceElems = []int32{2}
	elems := cfg.sourceElems(m)
	if len(elems) != 1 || elems[0] != 2 {
		t.Fatalf("expected explicit list [2], got %v", elems)
	}
}

func TestLoadConfigReadsAndResolvesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	body := `{"nphoton": 500, "seed": 7, "tstart": 0, "tend": 1, "tstep": 1, "n0": 1}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.EqualValues(t, 500, cfg.Nph)
	require.EqualValues(t, 7, cfg.Seed)
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
