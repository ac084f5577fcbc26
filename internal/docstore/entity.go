// Package docstore implements the entity store external collaborator
// described in spec §6: a narrow read/mutate API over the document's
// geometric entities, their draw order, and the shared polyline point
// array. It is intentionally NOT part of the interaction core (§1 keeps the
// entity store "out of scope"); it exists here so the rest of the module
// has a concrete, narrow-API collaborator to run against, grounded on the
// teacher's resource-access layer convention of a single struct exposing a
// handful of verbs (upsert/remove/find) rather than an ORM.
package docstore

import (
	"fmt"

	"github.com/rknuus/cadcore/internal/geom"
)

// EntityID is an opaque 32-bit entity identifier (§3).
type EntityID uint32

// DraftEntityID is the reserved id used for the phantom draft entity.
const DraftEntityID EntityID = 0

// Kind tags the fixed-shape entity record variant (§3).
type Kind uint8

const (
	KindRect Kind = iota
	KindCircle
	KindPolygon
	KindLine
	KindPolyline
	KindArrow
	KindText
)

// Entity is the fixed-shape record for every entity kind. Unused fields for
// a given Kind are simply left at their zero value, following the "sum type
// co-located with dispatch tables" guidance of spec §9 rather than an open
// inheritance hierarchy.
type Entity struct {
	ID   EntityID
	Kind Kind

	ZIndex  uint32
	Visible bool
	Locked  bool
	LayerID string

	StrokeWidthPx float32
	FillEnabled   bool

	// Rect
	X, Y, W, H float32

	// Circle / Polygon: center + radii + rotation (degrees)
	CenterX, CenterY float32
	RX, RY           float32
	RotationDeg      float64
	Sides            int // Polygon only; stored as given, not clamped (below 3 draws as a 32-gon ellipse approximation)

	// Line / Arrow
	P0, P1        geom.Point2
	ArrowHeadSize float32

	// Polyline: shared point array window
	PointOffset int
	PointCount  int

	// Text
	TextValue       string
	TextPos         geom.Point2
	TextRotationDeg float64
}

// Clone returns a deep copy of e (the point window is copied by value since
// Entity itself holds no slice for it).
func (e *Entity) Clone() *Entity {
	c := *e
	return &c
}

// Center returns the entity's pivot point for rotation purposes.
func (e *Entity) Center() geom.Point2 {
	switch e.Kind {
	case KindRect:
		return geom.Point2{X: e.X + e.W/2, Y: e.Y + e.H/2}
	case KindCircle, KindPolygon:
		return geom.Point2{X: e.CenterX, Y: e.CenterY}
	default:
		return geom.Point2{X: e.CenterX, Y: e.CenterY}
	}
}

// Rotation returns the entity's current rotation in degrees (0 for kinds
// that carry none).
func (e *Entity) Rotation() float64 {
	switch e.Kind {
	case KindCircle, KindPolygon:
		return e.RotationDeg
	case KindText:
		return e.TextRotationDeg
	default:
		return 0
	}
}

// pickableSelf reports the entity's own share of pickability: visible and
// unlocked. Layer visibility is tracked externally via hiddenLayers and is
// added by Document.Pickable.
func (e *Entity) pickableSelf() bool {
	return e.Visible && !e.Locked
}

// ErrNotFound is returned by lookups for an id that doesn't exist.
type ErrNotFound struct{ ID EntityID }

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("docstore: entity %d not found", e.ID)
}
