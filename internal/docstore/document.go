package docstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rknuus/cadcore/internal/geom"
	"github.com/rknuus/cadcore/internal/utilities"
)

// TextLayout is the text-layout external collaborator of §6: it owns glyph
// shaping and exposes only bounds plus mutable position/rotation to the
// core, and (per the §9 Open Question) the opaque caret sub-index.
type TextLayout interface {
	GetBounds(id EntityID) geom.AABB
	// HitTestCaret returns the character index nearest the given local-space
	// point; the core never computes this itself, it only threads the value
	// through (§9 Open Question 2).
	HitTestCaret(id EntityID, localX, localY float32) int
}

// NullTextLayout is a trivial TextLayout used when no real text shaper is
// wired in: bounds come from a fixed per-character advance, and caret
// hit-testing picks the nearest character boundary by horizontal position.
type NullTextLayout struct {
	CharAdvance float32 // world units per character, default 8 if zero
	LineHeight  float32 // default 12 if zero
	docs        *Document
}

func (n *NullTextLayout) advance() float32 {
	if n.CharAdvance <= 0 {
		return 8
	}
	return n.CharAdvance
}

func (n *NullTextLayout) lineHeight() float32 {
	if n.LineHeight <= 0 {
		return 12
	}
	return n.LineHeight
}

func (n *NullTextLayout) GetBounds(id EntityID) geom.AABB {
	e, ok := n.docs.Get(id)
	if !ok || e.Kind != KindText {
		return geom.Null
	}
	w := float32(len([]rune(e.TextValue))) * n.advance()
	h := n.lineHeight()
	local := []geom.Point2{
		{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h},
	}
	box := geom.Null
	for _, p := range local {
		wp := geom.ToWorld(p, geom.Point2{}, 0).Add(e.TextPos)
		box = box.Union(geom.AABB{MinX: wp.X, MinY: wp.Y, MaxX: wp.X, MaxY: wp.Y})
	}
	return box
}

func (n *NullTextLayout) HitTestCaret(id EntityID, localX, localY float32) int {
	e, ok := n.docs.Get(id)
	if !ok || e.Kind != KindText {
		return 0
	}
	idx := int(localX/n.advance() + 0.5)
	runes := len([]rune(e.TextValue))
	if idx < 0 {
		idx = 0
	}
	if idx > runes {
		idx = runes
	}
	return idx
}

// Snapshot captures the pre-transform scalar fields and (for polyline/
// line/arrow) point list of one entity, sufficient to restore it on cancel
// and to diff it for commit (§3 TransformSnapshot).
type Snapshot struct {
	ID     EntityID
	Entity Entity
	Points []geom.Point2 // copy of the entity's point window, if any
}

// Document is the narrow entity store collaborator (§6): per-id lookup and
// mutable access per kind, the global polyline point array, per-id
// pickability, the draw-order sequence, and stroke/fill style.
type Document struct {
	mu sync.RWMutex

	entities map[EntityID]*Entity
	order    []EntityID // draw order, back-to-front

	points []geom.Point2 // shared polyline point backing array

	hiddenLayers map[string]bool

	nextID EntityID
	gen    uint64 // generation counter (§3 invariant)

	logger utilities.ILoggingUtility
	text   TextLayout
}

// New creates an empty document. If text is nil, a NullTextLayout backed by
// this document is installed.
func New(logger utilities.ILoggingUtility, text TextLayout) *Document {
	d := &Document{
		entities:     make(map[EntityID]*Entity),
		hiddenLayers: make(map[string]bool),
		nextID:       1,
		logger:       logger,
	}
	if text == nil {
		text = &NullTextLayout{docs: d}
	}
	d.text = text
	return d
}

// Generation returns the monotonic mutation counter (§3, §5).
func (d *Document) Generation() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.gen
}

func (d *Document) bumpGeneration() {
	d.gen++
}

// AllocateID reserves a fresh entity id.
func (d *Document) AllocateID() EntityID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	return id
}

// Upsert inserts or replaces an entity and appends it to the draw order if
// new. Callers are responsible for keeping the spatial index (internal/
// spatial) in sync via their own update(id, bounds) call; Document does not
// own the index (spec §9: session borrows a narrow mutator, the index stays
// the facade's concern).
func (d *Document) Upsert(e *Entity) error {
	if e == nil {
		return fmt.Errorf("docstore.Upsert: nil entity")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	_, existed := d.entities[e.ID]
	d.entities[e.ID] = e.Clone()
	if !existed {
		d.order = append(d.order, e.ID)
	}
	d.bumpGeneration()
	if d.logger != nil {
		d.logger.Log(utilities.Debug, "Document", "upsert", map[string]interface{}{"id": e.ID, "kind": e.Kind})
	}
	return nil
}

// Delete removes an entity and its draw-order entry.
func (d *Document) Delete(id EntityID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.entities[id]; !ok {
		return &ErrNotFound{ID: id}
	}
	delete(d.entities, id)
	for i, oid := range d.order {
		if oid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.bumpGeneration()
	return nil
}

// Get returns a copy of the entity with the given id.
func (d *Document) Get(id EntityID) (*Entity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entities[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Mutate applies fn to the live entity under write lock and bumps the
// generation counter. This is the narrow "mutable field access" verb the
// session components use instead of read-modify-Upsert round trips.
func (d *Document) Mutate(id EntityID, fn func(*Entity)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entities[id]
	if !ok {
		return &ErrNotFound{ID: id}
	}
	fn(e)
	d.bumpGeneration()
	return nil
}

// Pickable reports whether id is currently pickable: visible, unlocked, and
// on a visible layer (§3 invariants, §6 "per-id pickability").
func (d *Document) Pickable(id EntityID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entities[id]
	if !ok {
		return false
	}
	if !e.pickableSelf() {
		return false
	}
	if d.hiddenLayers[e.LayerID] {
		return false
	}
	return true
}

// SetLayerHidden toggles layer-level visibility inheritance.
func (d *Document) SetLayerHidden(layerID string, hidden bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hiddenLayers[layerID] = hidden
	d.bumpGeneration()
}

// DrawOrder returns a copy of the draw-order id sequence, back-to-front.
func (d *Document) DrawOrder() []EntityID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]EntityID, len(d.order))
	copy(out, d.order)
	return out
}

// EntityOrNil returns the stored entity for id (the live record, not a
// copy), or nil if id is unknown.
func (d *Document) EntityOrNil(id EntityID) *Entity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entities[id]
	if !ok {
		return nil
	}
	return e
}

// TextLayout exposes the installed text-layout collaborator.
func (d *Document) TextLayout() TextLayout { return d.text }

// PolylinePoints returns a copy of the [offset, offset+count) window of the
// shared point array.
func (d *Document) PolylinePoints(offset, count int) []geom.Point2 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if offset < 0 || count < 0 || offset+count > len(d.points) {
		return nil
	}
	out := make([]geom.Point2, count)
	copy(out, d.points[offset:offset+count])
	return out
}

// AppendPolylinePoints appends pts to the shared array and returns the
// (offset, count) window describing them.
func (d *Document) AppendPolylinePoints(pts []geom.Point2) (offset, count int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	offset = len(d.points)
	d.points = append(d.points, pts...)
	return offset, len(pts)
}

// SetPolylinePoints overwrites the window [offset, offset+count) in place.
// If len(pts) != count the window is instead appended as a fresh range (the
// old range becomes compaction debris, reclaimed by CompactPolylinePoints),
// and the new (offset, count) is returned.
func (d *Document) SetPolylinePoints(offset, count int, pts []geom.Point2) (newOffset, newCount int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(pts) == count && offset >= 0 && offset+count <= len(d.points) {
		copy(d.points[offset:offset+count], pts)
		return offset, count
	}
	newOffset = len(d.points)
	d.points = append(d.points, pts...)
	return newOffset, len(pts)
}

// CompactPolylinePoints rebuilds the shared point array keeping only the
// ranges referenced by live Polyline entities, per §6 "request a compact of
// the polyline point array after certain commits". Point windows of
// surviving entities are rewritten to the new backing array.
func (d *Document) CompactPolylinePoints() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]EntityID, 0, len(d.entities))
	for id, e := range d.entities {
		if e.Kind == KindPolyline {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	newPoints := make([]geom.Point2, 0, len(d.points))
	for _, id := range ids {
		e := d.entities[id]
		newOffset := len(newPoints)
		newPoints = append(newPoints, d.points[e.PointOffset:e.PointOffset+e.PointCount]...)
		e.PointOffset = newOffset
	}
	d.points = newPoints
}

// CaptureSnapshot is the single canonical snapshot factory (§9 Open
// Question 3: the engine, not the session, owns this to avoid divergence).
func (d *Document) CaptureSnapshot(id EntityID) (Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entities[id]
	if !ok {
		return Snapshot{}, false
	}
	snap := Snapshot{ID: id, Entity: *e}
	if e.Kind == KindPolyline && e.PointCount > 0 {
		snap.Points = make([]geom.Point2, e.PointCount)
		copy(snap.Points, d.points[e.PointOffset:e.PointOffset+e.PointCount])
	}
	return snap, true
}

// RestoreSnapshot writes the captured scalar fields and point list back,
// byte-for-byte/element-for-element (spec §8 P3).
func (d *Document) RestoreSnapshot(snap Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entities[snap.ID]
	if !ok {
		return &ErrNotFound{ID: snap.ID}
	}
	restored := snap.Entity
	*e = restored
	if snap.Points != nil {
		if e.PointOffset+len(snap.Points) <= len(d.points) {
			copy(d.points[e.PointOffset:e.PointOffset+len(snap.Points)], snap.Points)
		}
	}
	d.bumpGeneration()
	return nil
}
