// Package geom provides the 2D primitives and coordinate-frame math shared
// by every interaction component: points, axis-aligned bounding boxes, and
// the world/local rotation transforms used for oriented bounding boxes.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point2 is a world-space coordinate. Y is up.
type Point2 struct {
	X, Y float32
}

// Sub returns p - q.
func (p Point2) Sub(q Point2) Point2 { return Point2{p.X - q.X, p.Y - q.Y} }

// Add returns p + q.
func (p Point2) Add(q Point2) Point2 { return Point2{p.X + q.X, p.Y + q.Y} }

// Scale returns p scaled by f.
func (p Point2) Scale(f float32) Point2 { return Point2{p.X * f, p.Y * f} }

// Length returns the Euclidean length of p treated as a vector.
func (p Point2) Length() float32 {
	return float32(math.Hypot(float64(p.X), float64(p.Y)))
}

// AngleDeg returns the angle of p (as a vector from the origin) in degrees.
func (p Point2) AngleDeg() float64 {
	return math.Atan2(float64(p.Y), float64(p.X)) * 180 / math.Pi
}

// RotateAround rotates p around pivot by angleDeg degrees (counter-clockwise,
// consistent with the document's Y-up world frame) and returns the result.
// Rotations with |angleDeg| below 1e-6 are returned unchanged, per §4.3's
// skip-the-trig rule.
func RotateAround(p, pivot Point2, angleDeg float64) Point2 {
	if math.Abs(angleDeg) < 1e-6 {
		return p
	}
	rel := r2.Vec{X: float64(p.X - pivot.X), Y: float64(p.Y - pivot.Y)}
	rot := r2.NewRotation(angleDeg * math.Pi / 180)
	out := rot.Rotate(rel)
	return Point2{
		X: pivot.X + float32(out.X),
		Y: pivot.Y + float32(out.Y),
	}
}

// ToLocal converts a world point into the local, unrotated frame of an
// entity centered at `center` with rotation `rotationDeg` (i.e. applies the
// inverse rotation). Used for OBB hit-testing and resize/rotate math.
func ToLocal(world, center Point2, rotationDeg float64) Point2 {
	return RotateAround(world, center, -rotationDeg)
}

// ToWorld is the inverse of ToLocal.
func ToWorld(local, center Point2, rotationDeg float64) Point2 {
	return RotateAround(local, center, rotationDeg)
}

// Null is the sentinel empty AABB, per §3: (0,0,0,0) denotes absence.
var Null = AABB{}

// AABB is an axis-aligned bounding box in world coordinates.
type AABB struct {
	MinX, MinY, MaxX, MaxY float32
}

// IsNull reports whether b is the null/absent sentinel.
func (b AABB) IsNull() bool {
	return b == Null
}

// Width returns the box's extent along X.
func (b AABB) Width() float32 { return b.MaxX - b.MinX }

// Height returns the box's extent along Y.
func (b AABB) Height() float32 { return b.MaxY - b.MinY }

// Center returns the box's midpoint.
func (b AABB) Center() Point2 {
	return Point2{(b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2}
}

// Contains reports whether p lies within b (inclusive).
func (b AABB) Contains(p Point2) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Intersects reports whether a and b overlap.
func (b AABB) Intersects(o AABB) bool {
	return b.MinX <= o.MaxX && b.MaxX >= o.MinX && b.MinY <= o.MaxY && b.MaxY >= o.MinY
}

// Union returns the smallest AABB containing both b and o. A null operand is
// ignored so that folding over a sequence of boxes starting from Null works.
func (b AABB) Union(o AABB) AABB {
	if b.IsNull() {
		return o
	}
	if o.IsNull() {
		return b
	}
	return AABB{
		MinX: min32(b.MinX, o.MinX),
		MinY: min32(b.MinY, o.MinY),
		MaxX: max32(b.MaxX, o.MaxX),
		MaxY: max32(b.MaxY, o.MaxY),
	}
}

// Expanded returns b grown by d on every side.
func (b AABB) Expanded(d float32) AABB {
	return AABB{b.MinX - d, b.MinY - d, b.MaxX + d, b.MaxY + d}
}

// FromPoints returns the tight AABB over the given points. Returns Null for
// an empty slice.
func FromPoints(pts []Point2) AABB {
	if len(pts) == 0 {
		return Null
	}
	b := AABB{pts[0].X, pts[0].Y, pts[0].X, pts[0].Y}
	for _, p := range pts[1:] {
		if p.X < b.MinX {
			b.MinX = p.X
		}
		if p.X > b.MaxX {
			b.MaxX = p.X
		}
		if p.Y < b.MinY {
			b.MinY = p.Y
		}
		if p.Y > b.MaxY {
			b.MaxY = p.Y
		}
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// EllipseEnvelope computes the tight axis-aligned half-extent of a rotated
// ellipse with semi-axes rx, ry and rotation rotationDeg, per §4.2:
// ex = sqrt((rx*cos)^2 + (ry*sin)^2), ey symmetric.
func EllipseEnvelope(rx, ry float32, rotationDeg float64) (ex, ey float32) {
	rad := rotationDeg * math.Pi / 180
	c := float32(math.Cos(rad))
	s := float32(math.Sin(rad))
	ex = float32(math.Hypot(float64(rx*c), float64(ry*s)))
	ey = float32(math.Hypot(float64(rx*s), float64(ry*c)))
	return ex, ey
}

// ClosestPointOnSegment returns the closest point to p on segment a-b and
// the distance to it.
func ClosestPointOnSegment(p, a, b Point2) (closest Point2, dist float32) {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq < 1e-12 {
		return a, a.Sub(p).Length()
	}
	ap := p.Sub(a)
	t := (ap.X*ab.X + ap.Y*ab.Y) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest = a.Add(ab.Scale(t))
	return closest, closest.Sub(p).Length()
}

// Clamp returns v clamped to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
