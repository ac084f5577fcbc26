// Package draft implements DraftSession (spec §4.6, C6): the phantom-entity
// lifecycle that previews a shape while it is being drawn, then promotes it
// to a real, freshly-allocated entity on commit. Grounded structurally on
// the deleted client/engines/task_creation (rendering hold) handle pattern
// of eisenkan's UI layer — a single in-progress scratch record replaced in
// place on every update, discarded or promoted on confirm — re-derived here
// since that file operated on task-form fields, not geometry.
package draft

import (
	"math"

	"github.com/rknuus/cadcore/internal/docstore"
	"github.com/rknuus/cadcore/internal/geom"
	"github.com/rknuus/cadcore/internal/modifier"
	"github.com/rknuus/cadcore/internal/spatial"
	"github.com/rknuus/cadcore/internal/transform"
	"github.com/rknuus/cadcore/internal/utilities"
)

// Payload is the beginDraft input (spec §3 DraftState, minus the live
// current point which Begin seeds from start).
type Payload struct {
	Kind docstore.Kind

	Start geom.Point2

	StrokeWidthPx float32
	FillEnabled   bool
	LayerID       string
	ByLayerStyle  bool

	Sides         int     // Polygon only
	ArrowHeadSize float32 // Arrow only
}

// Dimensions is the getDraftDimensions result (spec §4.6).
type Dimensions struct {
	Width, Height float32
	CenterX, CenterY float32
	HasLength     bool
	Length        float32
	SegmentLength float32
	AngleDeg      float64
}

// Manager is DraftSession (C6).
type Manager struct {
	doc    *docstore.Document
	grid   *spatial.Grid
	logger utilities.ILoggingUtility

	active  bool
	payload Payload
	current geom.Point2
	points  []geom.Point2 // Polyline only, committed points (excludes live cursor)
}

// New creates a Manager bound to doc/grid.
func New(doc *docstore.Document, grid *spatial.Grid, logger utilities.ILoggingUtility) *Manager {
	return &Manager{doc: doc, grid: grid, logger: logger}
}

// Active reports whether a draft is in progress.
func (m *Manager) Active() bool { return m.active }

// BeginDraft creates the phantom entity at docstore.DraftEntityID (spec
// §4.6). No-op if a draft is already active.
func (m *Manager) BeginDraft(p Payload) {
	if m.active {
		return
	}
	m.active = true
	m.payload = p
	m.current = p.Start
	m.points = nil
	if p.Kind == docstore.KindPolyline {
		m.points = []geom.Point2{p.Start}
	}
	m.writePhantom()
}

// UpdateDraft moves the live cursor and recomputes the phantom in place
// (spec §4.6). Shift squares a Rect/Circle/Polygon draft or snaps a
// Line/Arrow draft's angle to a 45° multiple.
func (m *Manager) UpdateDraft(screenX, screenY float32, vp transform.ViewParams, mods modifier.Mask) {
	if !m.active {
		return
	}
	world := transform.ScreenToWorld(screenX, screenY, vp)
	if mods.Has(modifier.Shift) {
		switch m.payload.Kind {
		case docstore.KindRect, docstore.KindCircle, docstore.KindPolygon:
			d := world.Sub(m.payload.Start)
			side := float64(maxf(absf(d.X), absf(d.Y)))
			world = geom.Point2{
				X: m.payload.Start.X + float32(math.Copysign(side, float64(d.X))),
				Y: m.payload.Start.Y + float32(math.Copysign(side, float64(d.Y))),
			}
		default:
			world = m.shiftConstrain(m.payload.Start, world)
		}
	}
	m.current = world
	m.writePhantom()
}

// AppendDraftPoint appends the live cursor to the polyline's committed
// point list (Polyline kind only; no-op otherwise), per spec §4.6. Shift
// snaps the new segment to a 45° multiple against the last committed
// point before it is appended.
func (m *Manager) AppendDraftPoint(screenX, screenY float32, vp transform.ViewParams, mods modifier.Mask) {
	if !m.active || m.payload.Kind != docstore.KindPolyline {
		return
	}
	world := transform.ScreenToWorld(screenX, screenY, vp)
	last := m.payload.Start
	if len(m.points) > 0 {
		last = m.points[len(m.points)-1]
	}
	if mods.Has(modifier.Shift) {
		world = m.shiftConstrain(last, world)
	}
	m.points = append(m.points, world)
	m.current = world
	m.writePhantom()
}

// shiftConstrain snaps the vector from anchor to p onto the nearest
// 45° multiple, preserving its length (spec §4.6's "Shift-to-45°" rule).
// It serves the Line/Arrow/Polyline kinds; UpdateDraft squares the
// box-like kinds itself by taking the larger of |dx| and |dy| as the side.
func (m *Manager) shiftConstrain(anchor, p geom.Point2) geom.Point2 {
	v := p.Sub(anchor)
	l := v.Length()
	if l < 1e-6 {
		return p
	}
	angle := math.Round(v.AngleDeg()/45) * 45
	rad := angle * math.Pi / 180
	return geom.Point2{
		X: anchor.X + l*float32(math.Cos(rad)),
		Y: anchor.Y + l*float32(math.Sin(rad)),
	}
}

// writePhantom rebuilds the phantom entity record from the current draft
// state and upserts/reindexes it.
func (m *Manager) writePhantom() {
	e := &docstore.Entity{
		ID:            docstore.DraftEntityID,
		Kind:          m.payload.Kind,
		ZIndex:        ^uint32(0), // phantom always draws frontmost
		Visible:       true,
		LayerID:       m.payload.LayerID,
		StrokeWidthPx: m.payload.StrokeWidthPx,
		FillEnabled:   m.payload.FillEnabled,
		ArrowHeadSize: m.payload.ArrowHeadSize,
		Sides:         m.payload.Sides,
	}

	start, cur := m.payload.Start, m.current

	switch m.payload.Kind {
	case docstore.KindRect:
		minX, maxX := minf(start.X, cur.X), maxf(start.X, cur.X)
		minY, maxY := minf(start.Y, cur.Y), maxf(start.Y, cur.Y)
		e.X, e.Y = minX, minY
		e.W, e.H = maxX-minX, maxY-minY
	case docstore.KindCircle, docstore.KindPolygon:
		minX, maxX := minf(start.X, cur.X), maxf(start.X, cur.X)
		minY, maxY := minf(start.Y, cur.Y), maxf(start.Y, cur.Y)
		e.CenterX, e.CenterY = (minX+maxX)/2, (minY+maxY)/2
		e.RX, e.RY = (maxX-minX)/2, (maxY-minY)/2
	case docstore.KindLine, docstore.KindArrow:
		e.P0, e.P1 = start, cur
	case docstore.KindPolyline:
		pts := append(append([]geom.Point2{}, m.points...), cur)
		e.PointOffset, e.PointCount = m.doc.AppendPolylinePoints(pts)
	}

	_ = m.doc.Upsert(e)
	m.grid.Update(spatial.ID(docstore.DraftEntityID), computeBounds(e))
}

func computeBounds(e *docstore.Entity) geom.AABB {
	switch e.Kind {
	case docstore.KindRect:
		return geom.AABB{MinX: e.X, MinY: e.Y, MaxX: e.X + e.W, MaxY: e.Y + e.H}
	case docstore.KindCircle, docstore.KindPolygon:
		return geom.AABB{MinX: e.CenterX - e.RX, MinY: e.CenterY - e.RY, MaxX: e.CenterX + e.RX, MaxY: e.CenterY + e.RY}
	case docstore.KindLine, docstore.KindArrow:
		return geom.FromPoints([]geom.Point2{e.P0, e.P1})
	default:
		return geom.Null
	}
}

// CommitDraft removes the phantom and creates the final entity via the
// normal entity API (spec §4.6): a fresh id, upserted and reindexed like
// any other entity. Degenerate drafts (near-zero width/height, or a
// polyline/line with under 2 distinct points) are dropped silently.
func (m *Manager) CommitDraft(allocateID func() docstore.EntityID) (docstore.EntityID, bool) {
	if !m.active {
		return 0, false
	}
	defer m.clear()

	if m.isDegenerate() {
		return 0, false
	}

	id := allocateID()
	final := m.buildFinalEntity(id)
	if err := m.doc.Upsert(final); err != nil {
		return 0, false
	}
	m.grid.Insert(spatial.ID(id), computeBounds(final))
	if final.Kind == docstore.KindPolyline {
		m.grid.Update(spatial.ID(id), geom.FromPoints(m.doc.PolylinePoints(final.PointOffset, final.PointCount)))
	}
	return id, true
}

func (m *Manager) buildFinalEntity(id docstore.EntityID) *docstore.Entity {
	phantom := m.doc.EntityOrNil(docstore.DraftEntityID)
	e := phantom.Clone()
	e.ID = id
	e.ZIndex = 0
	if e.Kind == docstore.KindPolyline {
		pts := m.doc.PolylinePoints(phantom.PointOffset, phantom.PointCount)
		// Right after AppendDraftPoint the live cursor repeats the last
		// appended point; that repeat is not kept as a vertex.
		if n := len(pts); n >= 2 && pts[n-1].Sub(pts[n-2]).Length() < 1e-3 {
			pts = pts[:n-1]
		}
		e.PointOffset, e.PointCount = m.doc.AppendPolylinePoints(pts)
	}
	return e
}

func (m *Manager) isDegenerate() bool {
	switch m.payload.Kind {
	case docstore.KindRect, docstore.KindCircle, docstore.KindPolygon:
		w := absf(m.current.X - m.payload.Start.X)
		h := absf(m.current.Y - m.payload.Start.Y)
		return w < 1e-3 || h < 1e-3
	case docstore.KindLine, docstore.KindArrow:
		return m.current.Sub(m.payload.Start).Length() < 1e-3
	case docstore.KindPolyline:
		total := append(append([]geom.Point2{}, m.points...), m.current)
		return countDistinct(total) < 2
	default:
		return true
	}
}

func countDistinct(pts []geom.Point2) int {
	n := 0
	for i, p := range pts {
		distinct := true
		for _, q := range pts[:i] {
			if p.Sub(q).Length() < 1e-3 {
				distinct = false
				break
			}
		}
		if distinct {
			n++
		}
	}
	return n
}

// CancelDraft removes the phantom without committing (spec §4.6).
func (m *Manager) CancelDraft() {
	if !m.active {
		return
	}
	m.clear()
}

func (m *Manager) clear() {
	_ = m.doc.Delete(docstore.DraftEntityID)
	m.grid.Remove(spatial.ID(docstore.DraftEntityID))
	m.active = false
	m.points = nil
}

// GetDraftDimensions returns width/height/center and, for line/arrow/
// polyline, length/segment-length/angle-in-degrees (spec §4.6).
func (m *Manager) GetDraftDimensions() Dimensions {
	if !m.active {
		return Dimensions{}
	}
	start, cur := m.payload.Start, m.current
	d := Dimensions{}
	switch m.payload.Kind {
	case docstore.KindRect, docstore.KindCircle, docstore.KindPolygon:
		minX, maxX := minf(start.X, cur.X), maxf(start.X, cur.X)
		minY, maxY := minf(start.Y, cur.Y), maxf(start.Y, cur.Y)
		d.Width, d.Height = maxX-minX, maxY-minY
		d.CenterX, d.CenterY = (minX+maxX)/2, (minY+maxY)/2
	case docstore.KindLine, docstore.KindArrow:
		v := cur.Sub(start)
		d.Width, d.Height = absf(v.X), absf(v.Y)
		mid := start.Add(cur).Scale(0.5)
		d.CenterX, d.CenterY = mid.X, mid.Y
		d.HasLength = true
		d.Length = v.Length()
		d.SegmentLength = d.Length
		d.AngleDeg = v.AngleDeg()
	case docstore.KindPolyline:
		all := append(append([]geom.Point2{}, m.points...), cur)
		box := geom.FromPoints(all)
		d.Width, d.Height = box.Width(), box.Height()
		c := box.Center()
		d.CenterX, d.CenterY = c.X, c.Y
		d.HasLength = true
		total := float32(0)
		for i := 1; i < len(all); i++ {
			total += all[i].Sub(all[i-1]).Length()
		}
		d.Length = total
		if len(all) >= 2 {
			last := all[len(all)-1].Sub(all[len(all)-2])
			d.SegmentLength = last.Length()
			d.AngleDeg = last.AngleDeg()
		}
	}
	return d
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
