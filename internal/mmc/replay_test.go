package mmc

import (
	"context"
	"testing"
)

func TestReplayReproducesSavedSeedsExactly(t *testing.T) {
	m := twoTetMesh()
	cfg := smallRunConfig()
	cfg.SaveDetector = true
	cfg.SaveSeed = true
	dets := []Detector{{Pos: [3]float64{0, 0, 0}, R: 2}}

	first, err := Dispatch(context.Background(), m, matchedMedia(), dets, cfg, 2)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(first.Seeds) == 0 {
		t.Fatalf("expected at least one saved seed from the first run")
	}

	replayed, err := Replay(context.Background(), m, matchedMedia(), dets, cfg, first.Seeds, 2)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replayed.Detected) != len(first.Seeds) {
		t.Fatalf("replaying len(seeds)=%d saved seeds should yield exactly that many detected records, got %d",
			len(first.Seeds), len(replayed.Detected))
	}
	for i, rec := range replayed.Detected {
		want := first.Detected[i]
		if rec.InitialWeight != want.InitialWeight || rec.DetectorID != want.DetectorID {
			t.Fatalf("replayed record %d diverged from the original: %+v vs %+v", i, rec, want)
		}
	}
}

func TestEncodeDecodeSeedRoundTrips(t *testing.T) {
	s := RNGState{S0: 0x0123456789ABCDEF, S1: 0xFEDCBA9876543210}
	enc := encodeSeed(s)
	dec := decodeSeed(enc)
	if dec != s {
		t.Fatalf("round trip diverged: got %+v, want %+v", dec, s)
	}
}

func TestReplayWithZeroSeedsReturnsEmptyResult(t *testing.T) {
	m := twoTetMesh()
	cfg := smallRunConfig()
	res, err := Replay(context.Background(), m, matchedMedia(), nil, cfg, nil, 1)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if res.LaunchedWeight != 0 {
		t.Fatalf("replaying zero seeds should launch nothing, got launched weight %g", res.LaunchedWeight)
	}
}
