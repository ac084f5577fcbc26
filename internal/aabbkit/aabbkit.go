// Package aabbkit computes conservative, per-kind world-space AABBs (spec
// §4.2, C2), dispatched by docstore.Kind the way spec §9 asks ("keep
// dispatch tables co-located with each component" rather than an open
// inheritance tree).
package aabbkit

import (
	"math"

	"github.com/rknuus/cadcore/internal/docstore"
	"github.com/rknuus/cadcore/internal/geom"
)

// Compute returns the world-space AABB for e, consulting text when e is a
// Text entity (its bounds are owned by the text-layout collaborator, §4.2).
// Polyline entities return Null here, since their points live in the
// document's shared array; ComputePolyline over the entity's point window
// gives their bounds.
func Compute(e *docstore.Entity, text docstore.TextLayout) geom.AABB {
	switch e.Kind {
	case docstore.KindRect:
		return rectAABB(e)
	case docstore.KindCircle:
		return ellipseAABB(e)
	case docstore.KindPolygon:
		return ellipseAABB(e) // same tight ellipse-envelope formula, §4.2
	case docstore.KindLine:
		return segmentAABB(e.P0, e.P1, 0)
	case docstore.KindArrow:
		return segmentAABB(e.P0, e.P1, e.ArrowHeadSize)
	case docstore.KindText:
		if text != nil {
			return text.GetBounds(e.ID)
		}
		return geom.Null
	default:
		return geom.Null
	}
}

// ComputePolyline returns the min/max AABB over the given points (§4.2
// Polyline rule).
func ComputePolyline(pts []geom.Point2) geom.AABB {
	return geom.FromPoints(pts)
}

// TightBounds returns e's true world-space bounds, without Compute's
// conservative half-diagonal inflation of Rect (§4.2's rotation guard,
// which only the spatial index needs). Callers that need exact anchors or
// edges — TransformSession's resize/side-resize anchors and SnapSolver's
// moved-box and candidate edges — must use this instead of Compute.
func TightBounds(e *docstore.Entity, text docstore.TextLayout) geom.AABB {
	if e.Kind == docstore.KindRect {
		return geom.AABB{MinX: e.X, MinY: e.Y, MaxX: e.X + e.W, MaxY: e.Y + e.H}
	}
	return Compute(e, text)
}

// rectAABB augments the true (x,y,w,h) rect by a conservative half-diagonal
// radius so the AABB contains the rotated OBB, even though hit-testing
// itself uses the true OBB (§4.2 Rect rule). Rect entities in this core
// carry no rotation field of their own (rotation support lives on Circle/
// Polygon per §3's fixed-shape records); the half-diagonal guard remains
// cheap insurance for future rotated-rect support and matches the source
// rule verbatim.
func rectAABB(e *docstore.Entity) geom.AABB {
	cx := e.X + e.W/2
	cy := e.Y + e.H/2
	halfDiag := float32(math.Hypot(float64(e.W/2), float64(e.H/2)))
	return geom.AABB{
		MinX: cx - halfDiag,
		MinY: cy - halfDiag,
		MaxX: cx + halfDiag,
		MaxY: cy + halfDiag,
	}
}

// ellipseAABB computes the exact tight AABB of a rotated ellipse/polygon
// envelope using the §4.2 formula.
func ellipseAABB(e *docstore.Entity) geom.AABB {
	if e.RX < 1e-6 || e.RY < 1e-6 {
		return geom.Null
	}
	ex, ey := geom.EllipseEnvelope(e.RX, e.RY, e.RotationDeg)
	return geom.AABB{
		MinX: e.CenterX - ex,
		MinY: e.CenterY - ey,
		MaxX: e.CenterX + ex,
		MaxY: e.CenterY + ey,
	}
}

// segmentAABB returns the axis-aligned envelope of the two endpoints,
// widened by headSize on each axis for arrows (§4.2 Line/Arrow rule).
func segmentAABB(p0, p1 geom.Point2, headSize float32) geom.AABB {
	b := geom.FromPoints([]geom.Point2{p0, p1})
	if headSize > 0 {
		b = b.Expanded(headSize)
	}
	return b
}

// PolygonVertices returns the N true contour vertices of a Circle/Polygon
// entity, computed from center + rx*sx/ry*sy + rotation with a base angle
// of -pi/2 so vertex 0 is "bottom" (§4.3, §4.7). N defaults to a 32-gon
// approximation for true ellipses (sides <= 2).
func PolygonVertices(e *docstore.Entity) []geom.Point2 {
	sides := e.Sides
	if sides < 3 {
		sides = 32
	}
	pts := make([]geom.Point2, sides)
	base := -math.Pi / 2
	for i := 0; i < sides; i++ {
		theta := base + 2*math.Pi*float64(i)/float64(sides)
		local := geom.Point2{
			X: e.RX * float32(math.Cos(theta)),
			Y: e.RY * float32(math.Sin(theta)),
		}
		pts[i] = geom.ToWorld(local, geom.Point2{}, e.RotationDeg).Add(geom.Point2{X: e.CenterX, Y: e.CenterY})
	}
	return pts
}

// RectCorners returns the 4 world-space OBB corners of a Rect entity in
// order (BL, BR, TR, TL), honoring rotation if the entity carries one via
// its Center()/Rotation() (rect rotation is 0 in this core, see rectAABB's
// note, but the helper stays generic so a future rotated-rect variant needs
// no call-site changes).
func RectCorners(e *docstore.Entity) []geom.Point2 {
	local := []geom.Point2{
		{X: e.X, Y: e.Y},
		{X: e.X + e.W, Y: e.Y},
		{X: e.X + e.W, Y: e.Y + e.H},
		{X: e.X, Y: e.Y + e.H},
	}
	center := e.Center()
	rot := e.Rotation()
	out := make([]geom.Point2, 4)
	for i, p := range local {
		out[i] = geom.RotateAround(p, center, rot)
	}
	return out
}
