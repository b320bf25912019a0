package mmc

import (
	"context"
	"encoding/binary"
)

// encodeSeed/decodeSeed convert between the in-memory RNGState and its
// fixed SeedLen-byte on-disk representation used by the seed buffer
// (testable property P6's round-trip format).
func encodeSeed(s RNGState) [SeedLen]byte {
	var b [SeedLen]byte
	binary.LittleEndian.PutUint64(b[0:8], s.S0)
	binary.LittleEndian.PutUint64(b[8:16], s.S1)
	return b
}

func decodeSeed(b [SeedLen]byte) RNGState {
	return RNGState{
		S0: binary.LittleEndian.Uint64(b[0:8]),
		S1: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// Replay re-runs exactly len(seeds) photon histories, one per saved
// seed, resuming each photon's RNG stream from its saved state instead
// of deriving a fresh one from (cfg.Seed, index). Every draw the photon
// makes this time is identical to the run that produced the seed
// buffer, so the resulting detected-photon records are bitwise
// identical to that run's (P6) — this is what makes seed-and-replay a
// usable Jacobian/sensitivity tool: the same photon trajectories can be
// re-derived and re-weighted without re-simulating the whole batch from
// scratch.
func Replay(ctx context.Context, mesh *Mesh, media []Medium, detectors []Detector, cfg Config, seeds [][SeedLen]byte, workers int) (Result, error) {
	total := int64(len(seeds))
	return runBatch(ctx, mesh, media, detectors, cfg, workers, total, func(i int64) RNG {
		return FromState(decodeSeed(seeds[i]))
	})
}
