package mmc

import "sync/atomic"

// DetectedPhoton is one fixed-width detected-photon record.
// ScatterCount/Pathlength/Momentum are one entry per medium (index 0 =
// background, unused in practice).
type DetectedPhoton struct {
	DetectorID    int32
	ScatterCount  []float32
	Pathlength    []float32
	Momentum      []float32 // present iff SaveMomentum
	Pos, Dir      [3]float32
	HasExit       bool // Pos/Dir populated iff SaveExit
	InitialWeight float32
	Seed          RNGState // photon's initial RNG state; copied into Result.Seeds iff SaveSeed
}

// DetectorBuffer is the shared, atomically-guarded detected-photon
// buffer: a bounded slice with an atomically-incremented cursor. Once
// Cap records have been stored, further hits are dropped but the cursor
// keeps counting so overflow is reportable (OverflowError).
type DetectorBuffer struct {
	cap     int64
	cursor  atomic.Int64
	records []DetectedPhoton
}

// NewDetectorBuffer allocates a buffer that holds at most cap records.
func NewDetectorBuffer(cap int) *DetectorBuffer {
	return &DetectorBuffer{
		cap:     int64(cap),
		records: make([]DetectedPhoton, cap),
	}
}

// Append stores rec at the next cursor position if the buffer has room,
// and always advances the cursor so overflow is countable.
func (b *DetectorBuffer) Append(rec DetectedPhoton) (stored bool) {
	slot := b.cursor.Add(1) - 1
	if slot >= b.cap {
		return false
	}
	b.records[slot] = rec
	return true
}

// Count returns the number of hits recorded, which may exceed Cap.
func (b *DetectorBuffer) Count() int64 { return b.cursor.Load() }

// Overflow returns the number of records dropped because the buffer was
// full.
func (b *DetectorBuffer) Overflow() int64 {
	n := b.cursor.Load()
	if n <= b.cap {
		return 0
	}
	return n - b.cap
}

// Records returns the stored records (length min(Count(), Cap)).
func (b *DetectorBuffer) Records() []DetectedPhoton {
	n := b.cursor.Load()
	if n > b.cap {
		n = b.cap
	}
	return b.records[:n]
}

// Capture tests p against every detector and returns the 1-based id of
// the first hit, or 0 if none hit. First hit wins.
func Capture(detectors []Detector, p Point3) int32 {
	for i, d := range detectors {
		dx := p.X - d.Pos[0]
		dy := p.Y - d.Pos[1]
		dz := p.Z - d.Pos[2]
		if dx*dx+dy*dy+dz*dz <= d.R*d.R {
			return int32(i + 1)
		}
	}
	return 0
}
