package mmc

import "testing"

func TestCaptureFirstHitWins(t *testing.T) {
	dets := []Detector{
		{Pos: [3]float64{0, 0, 0}, R: 1},
		{Pos: [3]float64{10, 0, 0}, R: 1},
	}
	id := Capture(dets, Point3{0.1, 0, 0})
	if id != 1 {
		t.Fatalf("expected detector 1 to fire, got %d", id)
	}
}

func TestCaptureNoHit(t *testing.T) {
	dets := []Detector{{Pos: [3]float64{0, 0, 0}, R: 1}}
	if id := Capture(dets, Point3{100, 100, 100}); id != 0 {
		t.Fatalf("expected no hit, got detector %d", id)
	}
}

func TestDetectorBufferAppendAndOverflow(t *testing.T) {
	b := NewDetectorBuffer(2)
	if ok := b.Append(DetectedPhoton{DetectorID: 1}); !ok {
		t.Fatalf("first append should succeed")
	}
	if ok := b.Append(DetectedPhoton{DetectorID: 2}); !ok {
		t.Fatalf("second append should succeed")
	}
	if ok := b.Append(DetectedPhoton{DetectorID: 3}); ok {
		t.Fatalf("third append should overflow a cap-2 buffer")
	}
	if n := b.Count(); n != 3 {
		t.Fatalf("Count() should keep counting past capacity, got %d", n)
	}
	if n := b.Overflow(); n != 1 {
		t.Fatalf("Overflow() = %d, want 1", n)
	}
	if recs := b.Records(); len(recs) != 2 {
		t.Fatalf("Records() should return only the stored records, got %d", len(recs))
	}
}

func TestDetectorBufferConcurrentAppend(t *testing.T) {
	b := NewDetectorBuffer(50)
	done := make(chan struct{})
	for w := 0; w < 10; w++ {
		go func(id int32) {
			for i := 0; i < 10; i++ {
				b.Append(DetectedPhoton{DetectorID: id})
			}
			done <- struct{}{}
		}(int32(w))
	}
	for w := 0; w < 10; w++ {
		<-done
	}
	if b.Count() != 100 {
		t.Fatalf("expected 100 total hits, got %d", b.Count())
	}
	if len(b.Records()) != 50 {
		t.Fatalf("expected exactly cap=50 stored records, got %d", len(b.Records()))
	}
}
