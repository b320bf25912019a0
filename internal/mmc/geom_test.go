package mmc

import (
	"math"
	"testing"
)

func TestVec3Norm(t *testing.T) {
	v := Vec3{3, 4, 0}.Norm()
	if math.Abs(v.Len()-1) > 1e-12 {
		t.Fatalf("expected unit length, got %g", v.Len())
	}
	zero := Vec3{0, 0, 0}.Norm()
	if zero != (Vec3{0, 0, 0}) {
		t.Fatalf("Norm of zero vector should stay zero, got %v", zero)
	}
}

func TestVec3CrossDot(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	z := x.Cross(y)
	if z != (Vec3{0, 0, 1}) {
		t.Fatalf("x cross y = %v, want (0,0,1)", z)
	}
	if x.Dot(y) != 0 {
		t.Fatalf("orthogonal vectors should dot to 0")
	}
}

func TestPointAddSub(t *testing.T) {
	p := Point3{1, 2, 3}
	v := Vec3{1, 1, 1}
	q := p.Add(v)
	if q != (Point3{2, 3, 4}) {
		t.Fatalf("Add: got %v", q)
	}
	back := q.Sub(p)
	if back != v {
		t.Fatalf("Sub: got %v, want %v", back, v)
	}
}

func TestClamp(t *testing.T) {
	if clamp(5, 0, 1) != 1 {
		t.Fatalf("clamp should cap at hi")
	}
	if clamp(-5, 0, 1) != 0 {
		t.Fatalf("clamp should floor at lo")
	}
	if clamp(0.5, 0, 1) != 0.5 {
		t.Fatalf("clamp should pass through in-range values")
	}
}

func TestIsFinite(t *testing.T) {
	if !isFinite(1.0) {
		t.Fatalf("1.0 should be finite")
	}
	if isFinite(math.Inf(1)) || isFinite(math.NaN()) {
		t.Fatalf("inf/nan should not be finite")
	}
}
