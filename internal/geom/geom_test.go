package geom

import (
	"math"
	"testing"
)

func almostEqual32(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func TestRotateAround_QuarterTurn(t *testing.T) {
	p := Point2{X: 1, Y: 0}
	pivot := Point2{X: 0, Y: 0}
	got := RotateAround(p, pivot, 90)
	if !almostEqual32(got.X, 0, 1e-4) || !almostEqual32(got.Y, 1, 1e-4) {
		t.Fatalf("RotateAround(90deg) = %+v, want (0,1)", got)
	}
}

func TestRotateAround_TinyAngleSkipsTrig(t *testing.T) {
	p := Point2{X: 3, Y: 4}
	got := RotateAround(p, Point2{}, 1e-8)
	if got != p {
		t.Fatalf("RotateAround with negligible angle should return input unchanged, got %+v", got)
	}
}

func TestToLocalToWorldRoundTrip(t *testing.T) {
	center := Point2{X: 10, Y: -5}
	world := Point2{X: 13, Y: -1}
	local := ToLocal(world, center, 37)
	back := ToWorld(local, center, 37)
	if !almostEqual32(back.X, world.X, 1e-3) || !almostEqual32(back.Y, world.Y, 1e-3) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", back, world)
	}
}

func TestAABBUnionWithNullOperand(t *testing.T) {
	b := AABB{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2}
	if got := Null.Union(b); got != b {
		t.Fatalf("Null.Union(b) = %+v, want %+v", got, b)
	}
	if got := b.Union(Null); got != b {
		t.Fatalf("b.Union(Null) = %+v, want %+v", got, b)
	}
}

func TestAABBIntersectsAndContains(t *testing.T) {
	a := AABB{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	b := AABB{MinX: 5, MinY: 5, MaxX: 15, MaxY: 15}
	if !a.Intersects(b) {
		t.Fatal("expected overlapping boxes to intersect")
	}
	if !a.Contains(Point2{X: 5, Y: 5}) {
		t.Fatal("expected boundary point to be contained")
	}
	c := AABB{MinX: 20, MinY: 20, MaxX: 30, MaxY: 30}
	if a.Intersects(c) {
		t.Fatal("expected disjoint boxes to not intersect")
	}
}

func TestEllipseEnvelopeUnrotatedMatchesRadii(t *testing.T) {
	ex, ey := EllipseEnvelope(10, 4, 0)
	if !almostEqual32(ex, 10, 1e-3) || !almostEqual32(ey, 4, 1e-3) {
		t.Fatalf("unrotated envelope = (%v,%v), want (10,4)", ex, ey)
	}
}

func TestEllipseEnvelope45DegSymmetric(t *testing.T) {
	ex, ey := EllipseEnvelope(10, 10, 45)
	if !almostEqual32(ex, ey, 1e-3) {
		t.Fatalf("circle envelope should stay symmetric under rotation, got (%v,%v)", ex, ey)
	}
}

func TestClosestPointOnSegment(t *testing.T) {
	a := Point2{X: 0, Y: 0}
	b := Point2{X: 10, Y: 0}
	closest, dist := ClosestPointOnSegment(Point2{X: 5, Y: 3}, a, b)
	if !almostEqual32(closest.X, 5, 1e-4) || !almostEqual32(closest.Y, 0, 1e-4) {
		t.Fatalf("closest point = %+v, want (5,0)", closest)
	}
	if !almostEqual32(dist, 3, 1e-4) {
		t.Fatalf("dist = %v, want 3", dist)
	}
}

func TestClosestPointOnSegment_DegenerateSegment(t *testing.T) {
	a := Point2{X: 2, Y: 2}
	_, dist := ClosestPointOnSegment(Point2{X: 5, Y: 6}, a, a)
	want := float32(math.Hypot(3, 4))
	if !almostEqual32(dist, want, 1e-4) {
		t.Fatalf("degenerate segment distance = %v, want %v", dist, want)
	}
}

func TestFromPointsEmpty(t *testing.T) {
	if got := FromPoints(nil); !got.IsNull() {
		t.Fatalf("FromPoints(nil) = %+v, want Null", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 10); got != 5 {
		t.Fatalf("Clamp(5,0,10) = %v, want 5", got)
	}
	if got := Clamp(-1, 0, 10); got != 0 {
		t.Fatalf("Clamp(-1,0,10) = %v, want 0", got)
	}
	if got := Clamp(11, 0, 10); got != 10 {
		t.Fatalf("Clamp(11,0,10) = %v, want 10", got)
	}
}
