// Package overlay implements OverlayMeta (spec §4.7, C7): the two
// generation-keyed producers that publish the current selection's outline
// and handle geometry, plus the snap guide/hit visualization, as flat float
// buffers the front-end renderer converts to screen space. Grounded on the
// deleted client/ui's render-model convention (a flat vertex buffer plus a
// small descriptor list rather than a tree of draw objects), generalized
// from kanban-card layout rects to the per-kind entity outlines this spec
// needs.
package overlay

import (
	"github.com/rknuus/cadcore/internal/aabbkit"
	"github.com/rknuus/cadcore/internal/docstore"
	"github.com/rknuus/cadcore/internal/geom"
	"github.com/rknuus/cadcore/internal/snap"
)

// PrimitiveKind tags one entry of a Buffer's descriptor array (spec §4.7).
type PrimitiveKind uint16

const (
	KindPolygon PrimitiveKind = iota
	KindSegment
	KindPoint
)

// Primitive describes one run of Buffer.Floats as (x,y) pairs.
type Primitive struct {
	Kind   PrimitiveKind
	Offset uint32 // index into Floats, in floats not pairs
	Count  uint32 // number of (x,y) pairs
}

// Buffer is a flat world-space float buffer plus its primitive descriptors
// (spec §4.7: "flat float buffers plus a primitive descriptor array").
type Buffer struct {
	Floats     []float32
	Primitives []Primitive
}

func (b *Buffer) appendPoints(kind PrimitiveKind, pts []geom.Point2) {
	offset := uint32(len(b.Floats))
	for _, p := range pts {
		b.Floats = append(b.Floats, p.X, p.Y)
	}
	b.Primitives = append(b.Primitives, Primitive{Kind: kind, Offset: offset, Count: uint32(len(pts))})
}

// Producer is OverlayMeta (C7), generation-keyed by the caller (the facade
// recomputes only when docstore.Document.Generation() changed).
type Producer struct {
	doc  *docstore.Document
	text docstore.TextLayout
}

// New creates a Producer over doc/text.
func New(doc *docstore.Document, text docstore.TextLayout) *Producer {
	return &Producer{doc: doc, text: text}
}

// SelectionOutline builds one primitive per selected entity (spec §4.7):
// Rect → 4 rotated OBB corners; Circle/Polygon → N true contour vertices,
// or a 4-corner bbox fallback for true ellipses (sides ≤ 2); Line/Arrow →
// the two endpoints; Polyline → its indexed points.
func (p *Producer) SelectionOutline(ids []docstore.EntityID) Buffer {
	var buf Buffer
	for _, id := range ids {
		e := p.doc.EntityOrNil(id)
		if e == nil {
			continue
		}
		switch e.Kind {
		case docstore.KindRect:
			buf.appendPoints(KindPolygon, aabbkit.RectCorners(e))
		case docstore.KindCircle, docstore.KindPolygon:
			if e.Sides <= 2 {
				buf.appendPoints(KindPolygon, ellipseBBoxCorners(e))
			} else {
				buf.appendPoints(KindPolygon, aabbkit.PolygonVertices(e))
			}
		case docstore.KindLine, docstore.KindArrow:
			buf.appendPoints(KindSegment, []geom.Point2{e.P0, e.P1})
		case docstore.KindPolyline:
			buf.appendPoints(KindSegment, p.doc.PolylinePoints(e.PointOffset, e.PointCount))
		}
	}
	return buf
}

// SelectionHandles enumerates the vertex grips used for picking, in the
// same order PickResolver reports via subIndex (spec §4.7).
func (p *Producer) SelectionHandles(ids []docstore.EntityID) Buffer {
	var buf Buffer
	for _, id := range ids {
		e := p.doc.EntityOrNil(id)
		if e == nil {
			continue
		}
		switch e.Kind {
		case docstore.KindRect:
			buf.appendPoints(KindPoint, aabbkit.RectCorners(e))
		case docstore.KindCircle, docstore.KindPolygon:
			if corners := obbCorners(e); corners != nil {
				buf.appendPoints(KindPoint, corners)
			}
		case docstore.KindLine, docstore.KindArrow:
			buf.appendPoints(KindPoint, []geom.Point2{e.P0, e.P1})
		case docstore.KindPolyline:
			buf.appendPoints(KindPoint, p.doc.PolylinePoints(e.PointOffset, e.PointCount))
		}
	}
	return buf
}

// ellipseBBoxCorners returns the 4-corner bbox fallback used for true
// ellipses (sides ≤ 2), distinct from PolygonVertices' 32-gon hit-testing
// approximation (spec §4.7).
func ellipseBBoxCorners(e *docstore.Entity) []geom.Point2 {
	ex, ey := geom.EllipseEnvelope(e.RX, e.RY, e.RotationDeg)
	cx, cy := e.CenterX, e.CenterY
	return []geom.Point2{
		{X: cx - ex, Y: cy - ey},
		{X: cx + ex, Y: cy - ey},
		{X: cx + ex, Y: cy + ey},
		{X: cx - ex, Y: cy + ey},
	}
}

// obbCorners mirrors PickResolver's handle-corner computation for
// Circle/Polygon (re-derived rather than imported, to keep overlay free of
// a pick dependency — the same policy snap already follows for vertices).
func obbCorners(e *docstore.Entity) []geom.Point2 {
	if e.RX < 1e-6 || e.RY < 1e-6 {
		return nil
	}
	local := []geom.Point2{
		{X: -e.RX, Y: -e.RY}, {X: e.RX, Y: -e.RY}, {X: e.RX, Y: e.RY}, {X: -e.RX, Y: e.RY},
	}
	center := geom.Point2{X: e.CenterX, Y: e.CenterY}
	out := make([]geom.Point2, 4)
	for i, lp := range local {
		out[i] = geom.ToWorld(lp, geom.Point2{}, e.RotationDeg).Add(center)
	}
	return out
}

// SnapOverlay packages the current guides/hits into a Buffer: one Segment
// primitive per guide, one Point primitive for all hits combined (spec
// §4.7 SnapOverlayMeta).
func SnapOverlay(guides []snap.Guide, hits []snap.Hit) Buffer {
	var buf Buffer
	for _, g := range guides {
		buf.appendPoints(KindSegment, []geom.Point2{{X: g.X0, Y: g.Y0}, {X: g.X1, Y: g.Y1}})
	}
	if len(hits) > 0 {
		pts := make([]geom.Point2, len(hits))
		for i, h := range hits {
			pts[i] = geom.Point2{X: h.X, Y: h.Y}
		}
		buf.appendPoints(KindPoint, pts)
	}
	return buf
}
