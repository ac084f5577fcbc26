// Package transform implements TransformSession (spec §4.5, C5): the state
// machine driving Move/Resize/SideResize/Rotate/VertexDrag/EdgeDrag on one
// or more entities, from begin through update to commit or cancel.
// Grounded structurally on the now-superseded client/engines/
// drag_drop_engine.go's handle-based session manager (a single active
// *dragSession guarding begin/update/complete/cancel, one history entry per
// completed drag), re-derived here for the richer multi-mode geometry this
// spec requires; that file's DragType=Task/Subtask/Column vocabulary has no
// reusable surface for entity transforms, so nothing of its API shape
// survives verbatim.
package transform

import (
	"math"

	"github.com/rknuus/cadcore/internal/aabbkit"
	"github.com/rknuus/cadcore/internal/docstore"
	"github.com/rknuus/cadcore/internal/geom"
	"github.com/rknuus/cadcore/internal/history"
	"github.com/rknuus/cadcore/internal/modifier"
	"github.com/rknuus/cadcore/internal/snap"
	"github.com/rknuus/cadcore/internal/spatial"
	"github.com/rknuus/cadcore/internal/utilities"
)

// Mode is the TransformMode tag of spec §3.
type Mode int

const (
	Move Mode = iota
	VertexDrag
	EdgeDrag
	Resize
	SideResize
	Rotate
)

// AxisLock is the session's axis-lock state (spec §3).
type AxisLock int

const (
	AxisNone AxisLock = iota
	AxisX
	AxisY
)

// Corner handle indices, matching aabbkit.RectCorners order (BL, BR, TR, TL).
const (
	CornerBL = 0
	CornerBR = 1
	CornerTR = 2
	CornerTL = 3
)

// Side handle indices, going around the box the same way as corners.
const (
	SideS = 0 // bottom (min Y)
	SideE = 1 // right  (max X)
	SideN = 2 // top    (max Y)
	SideW = 3 // left   (min X)
)

// ViewParams is the screen<->world conversion context of spec §6.
type ViewParams struct {
	ViewX, ViewY, ViewScale       float32
	ViewWidth, ViewHeight         float32
}

// ScreenToWorld applies spec §6's convention: x=(sx-viewX)/scale,
// y=-(sy-viewY)/scale (screen is pixel/Y-down, world is Y-up).
func ScreenToWorld(sx, sy float32, vp ViewParams) geom.Point2 {
	scale := vp.ViewScale
	if scale < 1e-6 {
		scale = 1
	}
	return geom.Point2{
		X: (sx - vp.ViewX) / scale,
		Y: -(sy - vp.ViewY) / scale,
	}
}

// State is the read-only TransformState of spec §3.
type State struct {
	Active          bool
	Mode            Mode
	RotationDeltaDeg float64
	PivotX, PivotY  float32
}

const dragThresholdPx = 3
const axisLockEnterRatio = 2.0
const minExtent = 1e-3

// session is the private SessionState of spec §3.
type session struct {
	active       bool
	mode         Mode
	ids          []docstore.EntityID
	specificID   docstore.EntityID
	subIndex     int32
	mods         modifier.Mask

	startScreen geom.Point2
	startWorld  geom.Point2

	duplicated  bool
	originalIDs []docstore.EntityID

	baseBox geom.AABB

	// Resize/SideResize
	anchorWorld  geom.Point2
	baseW, baseH float32
	aspect       float32

	// Rotate
	pivot             geom.Point2
	startAngle        float64
	lastAngle         float64
	accumulatedDelta  float64

	axisLock AxisLock

	// lastDx/lastDy is the last applied Move/EdgeDrag displacement, carried
	// for the commit op-code payload since Line/Arrow/Polyline/Text don't
	// populate Entity.Center's (CenterX,CenterY) fields.
	lastDx, lastDy float32

	snapshots map[docstore.EntityID]docstore.Snapshot

	lastGuides []snap.Guide
	lastHits   []snap.Hit
}

// CommitResult is the §6 op-code commit output.
type CommitResult struct {
	IDs      []docstore.EntityID
	OpCodes  []history.OpCode
	Payloads [][4]float32
}

// Manager is TransformSession (C5).
type Manager struct {
	doc  *docstore.Document
	grid *spatial.Grid
	hist *history.Manager
	text docstore.TextLayout
	snap *snap.Solver

	logger utilities.ILoggingUtility

	sess *session
}

// New creates a Manager bound to its collaborators.
func New(doc *docstore.Document, grid *spatial.Grid, hist *history.Manager, text docstore.TextLayout, snapSolver *snap.Solver, logger utilities.ILoggingUtility) *Manager {
	return &Manager{doc: doc, grid: grid, hist: hist, text: text, snap: snapSolver, logger: logger}
}

// Active reports whether a session is in progress.
func (m *Manager) Active() bool { return m.sess != nil && m.sess.active }

// State returns the read-only TransformState of spec §3.
func (m *Manager) State() State {
	if !m.Active() {
		return State{}
	}
	return State{
		Active:           true,
		Mode:             m.sess.mode,
		RotationDeltaDeg: m.sess.accumulatedDelta,
		PivotX:           m.sess.pivot.X,
		PivotY:           m.sess.pivot.Y,
	}
}

// Guides/Hits expose the last computed snap visualization (spec §4.7/§6).
func (m *Manager) Guides() []snap.Guide {
	if !m.Active() {
		return nil
	}
	return m.sess.lastGuides
}

func (m *Manager) Hits() []snap.Hit {
	if !m.Active() {
		return nil
	}
	return m.sess.lastHits
}

// Begin starts a new session (spec §4.5 Entry). No-op if a session is
// already active or if no id in ids is pickable.
func (m *Manager) Begin(ids []docstore.EntityID, mode Mode, specificID docstore.EntityID, subIndex int32, screenX, screenY float32, vp ViewParams, mods modifier.Mask, allocateDuplicateID func() docstore.EntityID) error {
	if m.Active() {
		return nil // NoOp, spec §7
	}
	active := activeIDSet(ids, mode, specificID, m.doc)
	if len(active) == 0 {
		return nil // NoOp: begin with no pickable ids
	}

	s := &session{
		mode:        mode,
		specificID:  specificID,
		subIndex:    subIndex,
		mods:        mods,
		startScreen: geom.Point2{X: screenX, Y: screenY},
		startWorld:  ScreenToWorld(screenX, screenY, vp),
		snapshots:   make(map[docstore.EntityID]docstore.Snapshot),
	}

	if mode == Move && mods.Has(modifier.Alt) && allocateDuplicateID != nil {
		dup := make([]docstore.EntityID, 0, len(active))
		for _, id := range active {
			e := m.doc.EntityOrNil(id)
			if e == nil {
				continue
			}
			newID := allocateDuplicateID()
			clone := e.Clone()
			clone.ID = newID
			if clone.Kind == docstore.KindPolyline && clone.PointCount > 0 {
				pts := m.doc.PolylinePoints(clone.PointOffset, clone.PointCount)
				clone.PointOffset, clone.PointCount = m.doc.AppendPolylinePoints(pts)
			}
			if err := m.doc.Upsert(clone); err != nil {
				continue
			}
			m.grid.Insert(spatial.ID(newID), aabbkit.Compute(clone, m.text))
			dup = append(dup, newID)
		}
		s.duplicated = true
		s.originalIDs = active
		active = dup
	}

	s.ids = active
	base := geom.Null
	for _, id := range active {
		snap, ok := m.doc.CaptureSnapshot(id)
		if !ok {
			continue
		}
		s.snapshots[id] = snap
		e := m.doc.EntityOrNil(id)
		if e != nil {
			base = base.Union(aabbkit.TightBounds(e, m.text))
		}
	}
	if base.IsNull() {
		base = geom.AABB{MinX: s.startWorld.X, MinY: s.startWorld.Y, MaxX: s.startWorld.X, MaxY: s.startWorld.Y}
	}
	s.baseBox = base

	switch mode {
	case Resize:
		s.anchorWorld = oppositeCorner(base, int(subIndex))
		s.baseW, s.baseH = base.Width(), base.Height()
		if s.baseH > 1e-6 {
			s.aspect = s.baseW / s.baseH
		}
	case SideResize:
		s.anchorWorld = oppositeSideMidpoint(base, int(subIndex))
		s.baseW, s.baseH = base.Width(), base.Height()
	case Rotate:
		s.pivot = base.Center()
		s.startAngle = s.startWorld.Sub(s.pivot).AngleDeg()
		s.lastAngle = s.startAngle
	}

	s.active = true
	m.sess = s
	m.hist.BeginTransaction()
	if m.logger != nil {
		m.logger.Log(utilities.Debug, "TransformSession", "begin", map[string]interface{}{"mode": mode, "ids": len(active)})
	}
	return nil
}

func activeIDSet(ids []docstore.EntityID, mode Mode, specificID docstore.EntityID, doc *docstore.Document) []docstore.EntityID {
	var raw []docstore.EntityID
	switch mode {
	case VertexDrag, SideResize, EdgeDrag:
		raw = []docstore.EntityID{specificID}
	default:
		raw = ids
	}
	out := make([]docstore.EntityID, 0, len(raw))
	for _, id := range raw {
		if doc.Pickable(id) {
			out = append(out, id)
		}
	}
	return out
}

func oppositeCorner(box geom.AABB, handle int) geom.Point2 {
	switch handle {
	case CornerBL:
		return geom.Point2{X: box.MaxX, Y: box.MaxY}
	case CornerBR:
		return geom.Point2{X: box.MinX, Y: box.MaxY}
	case CornerTR:
		return geom.Point2{X: box.MinX, Y: box.MinY}
	case CornerTL:
		return geom.Point2{X: box.MaxX, Y: box.MinY}
	default:
		return box.Center()
	}
}

func oppositeSideMidpoint(box geom.AABB, side int) geom.Point2 {
	switch side {
	case SideS:
		return geom.Point2{X: box.Center().X, Y: box.MaxY}
	case SideN:
		return geom.Point2{X: box.Center().X, Y: box.MinY}
	case SideE:
		return geom.Point2{X: box.MinX, Y: box.Center().Y}
	case SideW:
		return geom.Point2{X: box.MaxX, Y: box.Center().Y}
	default:
		return box.Center()
	}
}

// Update applies one frame of the active session (spec §4.5 Update). No-op
// if no session is active.
func (m *Manager) Update(screenX, screenY float32, vp ViewParams, mods modifier.Mask, opts snap.Options, viewport geom.AABB) State {
	if !m.Active() {
		return State{}
	}
	s := m.sess
	s.mods = mods

	world := ScreenToWorld(screenX, screenY, vp)
	if opts.GridEnabled && opts.GridSize > 0 {
		world = snap.GridSnapPoint(world, opts.GridSize)
	}

	dx := world.X - s.startWorld.X
	dy := world.Y - s.startWorld.Y

	if s.mode == Move && mods.Has(modifier.Shift) {
		dx, dy = m.evalAxisLock(s, dx, dy, screenX, screenY, vp)
	} else {
		s.axisLock = AxisNone
	}

	switch s.mode {
	case Move:
		exclude := make(map[docstore.EntityID]bool, len(s.ids))
		for _, id := range s.ids {
			exclude[id] = true
		}
		if m.snap != nil {
			res := m.snap.Solve(s.baseBox, dx, dy, exclude, opts, vp.ViewScale, viewport, mods)
			dx, dy = res.Dx, res.Dy
			s.lastGuides = res.Guides
			s.lastHits = res.Hits
		}
		s.lastDx, s.lastDy = dx, dy
		m.applyMove(s, dx, dy)
	case EdgeDrag:
		s.lastDx, s.lastDy = dx, dy
		m.applyMove(s, dx, dy)
	case Resize:
		m.applyResize(s, world, mods)
	case SideResize:
		m.applySideResize(s, world, mods)
	case Rotate:
		m.applyRotate(s, world)
	case VertexDrag:
		m.applyVertexDrag(s, world, mods)
	}

	return m.State()
}

func (m *Manager) evalAxisLock(s *session, dx, dy, screenX, screenY float32, vp ViewParams) (float32, float32) {
	rawDx := screenX - s.startScreen.X
	rawDy := screenY - s.startScreen.Y
	magOK := absf(rawDx) > dragThresholdPx || absf(rawDy) > dragThresholdPx
	if magOK {
		ratio := float32(0)
		if absf(dy) > 1e-6 {
			ratio = absf(dx) / absf(dy)
		} else if absf(dx) > 1e-6 {
			ratio = axisLockEnterRatio + 1
		}
		switch s.axisLock {
		case AxisNone:
			if ratio > axisLockEnterRatio {
				s.axisLock = AxisX
			} else if ratio < 1/axisLockEnterRatio {
				s.axisLock = AxisY
			}
		case AxisX:
			if ratio < 1/axisLockEnterRatio {
				s.axisLock = AxisY
			}
		case AxisY:
			if ratio > axisLockEnterRatio {
				s.axisLock = AxisX
			}
		}
	}
	switch s.axisLock {
	case AxisX:
		return dx, 0
	case AxisY:
		return 0, dy
	default:
		return dx, dy
	}
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func (m *Manager) applyMove(s *session, dx, dy float32) {
	for _, id := range s.ids {
		snap, ok := s.snapshots[id]
		if !ok {
			continue
		}
		e := m.doc.EntityOrNil(id)
		if e == nil {
			continue
		}
		err := m.doc.Mutate(id, func(cur *docstore.Entity) {
			moveEntity(cur, &snap.Entity, dx, dy)
		})
		if err != nil {
			continue
		}
		if e.Kind == docstore.KindPolyline && len(snap.Points) > 0 {
			shifted := make([]geom.Point2, len(snap.Points))
			for i, p := range snap.Points {
				shifted[i] = geom.Point2{X: p.X + dx, Y: p.Y + dy}
			}
			m.doc.SetPolylinePoints(e.PointOffset, e.PointCount, shifted)
		}
		m.refreshIndex(id)
	}
}

func moveEntity(cur, base *docstore.Entity, dx, dy float32) {
	switch cur.Kind {
	case docstore.KindRect:
		cur.X, cur.Y = base.X+dx, base.Y+dy
	case docstore.KindCircle, docstore.KindPolygon:
		cur.CenterX, cur.CenterY = base.CenterX+dx, base.CenterY+dy
	case docstore.KindLine, docstore.KindArrow:
		cur.P0 = geom.Point2{X: base.P0.X + dx, Y: base.P0.Y + dy}
		cur.P1 = geom.Point2{X: base.P1.X + dx, Y: base.P1.Y + dy}
	case docstore.KindText:
		cur.TextPos = geom.Point2{X: base.TextPos.X + dx, Y: base.TextPos.Y + dy}
	case docstore.KindPolyline:
		// point list itself is shifted by the caller via SetPolylinePoints
	}
}

func (m *Manager) refreshIndex(id docstore.EntityID) {
	e := m.doc.EntityOrNil(id)
	if e == nil {
		m.grid.Remove(spatial.ID(id))
		return
	}
	box := aabbkit.Compute(e, m.text)
	if e.Kind == docstore.KindPolyline {
		box = aabbkit.ComputePolyline(m.doc.PolylinePoints(e.PointOffset, e.PointCount))
	}
	m.grid.Update(spatial.ID(id), box)
}

func (m *Manager) applyResize(s *session, world geom.Point2, mods modifier.Mask) {
	if len(s.ids) == 1 {
		m.applyResizeSingle(s, s.ids[0], world, mods)
		return
	}
	m.applyResizeGroup(s, world, mods)
}

func (m *Manager) applyResizeSingle(s *session, id docstore.EntityID, world geom.Point2, mods modifier.Mask) {
	snap, ok := s.snapshots[id]
	if !ok {
		return
	}
	base := &snap.Entity
	center := base.Center()
	rotation := base.Rotation()

	anchorLocal := geom.ToLocal(s.anchorWorld, center, rotation)
	probeLocal := geom.ToLocal(world, center, rotation)

	wNew := probeLocal.X - anchorLocal.X
	hNew := probeLocal.Y - anchorLocal.Y
	if mods.Has(modifier.Shift) && s.aspect > 1e-6 {
		if absf(wNew) > absf(hNew)*s.aspect {
			hNew = sign(hNew) * absf(wNew) / s.aspect
		} else {
			wNew = sign(wNew) * absf(hNew) * s.aspect
		}
	}
	wNew = clampExtent(wNew)
	hNew = clampExtent(hNew)

	var newCenter geom.Point2
	var halfW, halfH float32
	if mods.Has(modifier.Alt) {
		// symmetric about original center: half-extent = |new probe - center| projected
		halfW = absf(probeLocal.X)
		halfH = absf(probeLocal.Y)
		halfW, halfH = clampExtent(halfW), clampExtent(halfH)
		newCenter = center
	} else {
		newCenterLocal := geom.Point2{X: anchorLocal.X + wNew/2, Y: anchorLocal.Y + hNew/2}
		newCenter = geom.ToWorld(newCenterLocal, center, rotation)
		halfW, halfH = absf(wNew)/2, absf(hNew)/2
	}

	_ = m.doc.Mutate(id, func(cur *docstore.Entity) {
		switch cur.Kind {
		case docstore.KindRect:
			cur.X = newCenter.X - halfW
			cur.Y = newCenter.Y - halfH
			cur.W = halfW * 2
			cur.H = halfH * 2
		case docstore.KindCircle:
			cur.CenterX, cur.CenterY = newCenter.X, newCenter.Y
			rx, ry := halfW, halfH
			if !mods.Has(modifier.Alt) {
				// uniform unless Alt
				r := (rx + ry) / 2
				rx, ry = r, r
			}
			cur.RX, cur.RY = maxf32(rx, minExtent), maxf32(ry, minExtent)
		case docstore.KindPolygon:
			cur.CenterX, cur.CenterY = newCenter.X, newCenter.Y
			cur.RX, cur.RY = maxf32(halfW, minExtent), maxf32(halfH, minExtent)
		}
	})
	m.refreshIndex(id)
}

func (m *Manager) applyResizeGroup(s *session, world geom.Point2, mods modifier.Mask) {
	anchor := s.anchorWorld
	if mods.Has(modifier.Alt) {
		anchor = s.baseBox.Center()
	}
	base := s.baseBox
	scaleX := safeScale(world.X-anchor.X, anchorRefX(base, anchor))
	scaleY := safeScale(world.Y-anchor.Y, anchorRefY(base, anchor))

	for _, id := range s.ids {
		snap, ok := s.snapshots[id]
		if !ok {
			continue
		}
		be := &snap.Entity
		center := be.Center()
		newCenter := geom.Point2{
			X: anchor.X + (center.X-anchor.X)*scaleX,
			Y: anchor.Y + (center.Y-anchor.Y)*scaleY,
		}
		_ = m.doc.Mutate(id, func(cur *docstore.Entity) {
			switch cur.Kind {
			case docstore.KindRect:
				w := clampExtent(be.W * scaleX)
				h := clampExtent(be.H * scaleY)
				cur.X = newCenter.X - w/2
				cur.Y = newCenter.Y - h/2
				cur.W, cur.H = w, h
			case docstore.KindCircle, docstore.KindPolygon:
				cur.CenterX, cur.CenterY = newCenter.X, newCenter.Y
				rx := clampExtent(be.RX * scaleX)
				ry := clampExtent(be.RY * scaleY)
				if cur.Kind == docstore.KindCircle && !mods.Has(modifier.Alt) {
					r := (rx + ry) / 2
					rx, ry = r, r
				}
				cur.RX, cur.RY = rx, ry
			}
		})
		m.refreshIndex(id)
	}
}

func anchorRefX(base geom.AABB, anchor geom.Point2) float32 {
	if absf(anchor.X-base.MinX) < 1e-6 {
		return base.MaxX - anchor.X
	}
	return base.MinX - anchor.X
}

func anchorRefY(base geom.AABB, anchor geom.Point2) float32 {
	if absf(anchor.Y-base.MinY) < 1e-6 {
		return base.MaxY - anchor.Y
	}
	return base.MinY - anchor.Y
}

func safeScale(delta, ref float32) float32 {
	if absf(ref) < 1e-6 {
		return 1
	}
	s := delta / ref
	if absf(s) < 1e-4 {
		s = sign(s) * 1e-4
		if s == 0 {
			s = 1e-4
		}
	}
	return s
}

func (m *Manager) applySideResize(s *session, world geom.Point2, mods modifier.Mask) {
	side := int(s.subIndex)
	base := s.baseBox
	anchor := s.anchorWorld
	if mods.Has(modifier.Alt) {
		anchor = base.Center()
	}

	var scaleX, scaleY float32 = 1, 1
	switch side {
	case SideE, SideW:
		scaleX = safeScale(world.X-anchor.X, anchorRefX(base, anchor))
	case SideN, SideS:
		scaleY = safeScale(world.Y-anchor.Y, anchorRefY(base, anchor))
	}

	for _, id := range s.ids {
		snap, ok := s.snapshots[id]
		if !ok {
			continue
		}
		be := &snap.Entity
		center := be.Center()
		newCenter := geom.Point2{
			X: anchor.X + (center.X-anchor.X)*scaleX,
			Y: anchor.Y + (center.Y-anchor.Y)*scaleY,
		}
		_ = m.doc.Mutate(id, func(cur *docstore.Entity) {
			switch cur.Kind {
			case docstore.KindRect:
				w := clampExtent(be.W * scaleX)
				h := clampExtent(be.H * scaleY)
				cur.X = newCenter.X - w/2
				cur.Y = newCenter.Y - h/2
				cur.W, cur.H = w, h
			case docstore.KindCircle, docstore.KindPolygon:
				cur.CenterX, cur.CenterY = newCenter.X, newCenter.Y
				cur.RX = clampExtent(be.RX * scaleX)
				cur.RY = clampExtent(be.RY * scaleY)
			}
		})
		m.refreshIndex(id)
	}
}

func (m *Manager) applyRotate(s *session, world geom.Point2) {
	angle := world.Sub(s.pivot).AngleDeg()
	for angle-s.lastAngle > 180 {
		angle -= 360
	}
	for angle-s.lastAngle < -180 {
		angle += 360
	}
	s.accumulatedDelta += angle - s.lastAngle
	s.lastAngle = angle
	deltaDeg := s.accumulatedDelta

	for _, id := range s.ids {
		snap, ok := s.snapshots[id]
		if !ok {
			continue
		}
		be := &snap.Entity
		center := be.Center()
		newCenter := geom.RotateAround(center, s.pivot, deltaDeg)
		_ = m.doc.Mutate(id, func(cur *docstore.Entity) {
			switch cur.Kind {
			case docstore.KindCircle, docstore.KindPolygon:
				cur.CenterX, cur.CenterY = newCenter.X, newCenter.Y
				cur.RotationDeg = be.RotationDeg + deltaDeg
			case docstore.KindText:
				cur.TextPos = newCenter
				cur.TextRotationDeg = be.TextRotationDeg + deltaDeg
			case docstore.KindRect:
				cur.X = newCenter.X - be.W/2
				cur.Y = newCenter.Y - be.H/2
			case docstore.KindLine, docstore.KindArrow:
				cur.P0 = geom.RotateAround(be.P0, s.pivot, deltaDeg)
				cur.P1 = geom.RotateAround(be.P1, s.pivot, deltaDeg)
			}
		})
		m.refreshIndex(id)
	}
}

func (m *Manager) applyVertexDrag(s *session, world geom.Point2, mods modifier.Mask) {
	id := s.specificID
	snap, ok := s.snapshots[id]
	if !ok {
		return
	}
	be := &snap.Entity
	idx := int(s.subIndex)

	target := world
	if mods.Has(modifier.Shift) {
		anchor := vertexDragAnchor(be, idx, snap.Points)
		v := world.Sub(anchor)
		l := v.Length()
		if l > 1e-6 {
			snapAngle := math.Round(float64(v.AngleDeg())/45) * 45
			rad := snapAngle * math.Pi / 180
			target = geom.Point2{
				X: anchor.X + l*float32(math.Cos(rad)),
				Y: anchor.Y + l*float32(math.Sin(rad)),
			}
		}
	}

	switch be.Kind {
	case docstore.KindLine, docstore.KindArrow:
		other := be.P1
		if idx == 1 {
			other = be.P0
		}
		target = clampMinSegment(other, target)
		_ = m.doc.Mutate(id, func(cur *docstore.Entity) {
			if idx == 0 {
				cur.P0 = target
			} else {
				cur.P1 = target
			}
		})
	case docstore.KindPolyline:
		if idx < 0 || idx >= len(snap.Points) {
			return
		}
		pts := make([]geom.Point2, len(snap.Points))
		copy(pts, snap.Points)
		pts[idx] = target
		m.doc.SetPolylinePoints(be.PointOffset, be.PointCount, pts)
	}
	m.refreshIndex(id)
}

func vertexDragAnchor(e *docstore.Entity, idx int, pts []geom.Point2) geom.Point2 {
	switch e.Kind {
	case docstore.KindLine, docstore.KindArrow:
		if idx == 0 {
			return e.P1
		}
		return e.P0
	case docstore.KindPolyline:
		if idx > 0 {
			return pts[idx-1]
		}
		if len(pts) > 1 {
			return pts[1]
		}
	}
	return e.Center()
}

func clampMinSegment(anchor, p geom.Point2) geom.Point2 {
	v := p.Sub(anchor)
	l := v.Length()
	if l >= minExtent || l < 1e-9 {
		if l < 1e-9 {
			return geom.Point2{X: anchor.X + minExtent, Y: anchor.Y}
		}
		return p
	}
	scaled := v.Scale(minExtent / l)
	return anchor.Add(scaled)
}

func clampExtent(v float32) float32 {
	if v >= 0 {
		return maxf32(v, minExtent)
	}
	return -maxf32(-v, minExtent)
}

func maxf32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func sign(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}

// Commit finalizes the session (spec §4.5 Commit): writes op-codes, pushes
// the pre/post snapshots of every id that changed into the transaction
// opened by Begin, so they land in one history entry, and resets the
// session state.
func (m *Manager) Commit() CommitResult {
	if !m.Active() {
		return CommitResult{}
	}
	s := m.sess
	result := CommitResult{}

	ids := make([]docstore.EntityID, len(s.ids))
	copy(ids, s.ids)
	sortIDs(ids)

	for _, id := range ids {
		pre, ok := s.snapshots[id]
		if !ok {
			continue
		}
		post, ok := m.doc.CaptureSnapshot(id)
		if !ok {
			continue
		}
		if snapshotsEqual(pre, post) {
			continue
		}
		op, payload := opCodeFor(s.mode, pre, post, s)
		result.IDs = append(result.IDs, id)
		result.OpCodes = append(result.OpCodes, op)
		result.Payloads = append(result.Payloads, payload)
		m.hist.PushEntry(id, pre, post)
	}

	if err := m.hist.Commit(); err != nil && m.logger != nil {
		m.logger.LogError("TransformSession", err, map[string]interface{}{"mode": s.mode})
	}

	m.sess = nil
	return result
}

func snapshotsEqual(a, b docstore.Snapshot) bool {
	if a.Entity != b.Entity {
		return false
	}
	if len(a.Points) != len(b.Points) {
		return false
	}
	for i := range a.Points {
		if a.Points[i] != b.Points[i] {
			return false
		}
	}
	return true
}

func opCodeFor(mode Mode, pre, post docstore.Snapshot, s *session) (history.OpCode, [4]float32) {
	switch mode {
	case Move, EdgeDrag:
		// Entity.Center() only resolves for Rect/Circle/Polygon; Line, Arrow,
		// Polyline, and Text keep their geometry elsewhere, so the applied
		// delta is read off the session rather than re-derived from Center.
		return history.OpMove, [4]float32{s.lastDx, s.lastDy, 0, 0}
	case VertexDrag:
		p := currentVertex(&post.Entity, int(s.subIndex), post.Points)
		return history.OpVertexSet, [4]float32{p.X, p.Y, float32(s.subIndex), 0}
	case Rotate:
		return history.OpRotate, [4]float32{s.pivot.X, s.pivot.Y, float32(s.accumulatedDelta), 0}
	case SideResize:
		return history.OpSideResize, payloadXYWH(&post.Entity)
	default: // Resize
		return history.OpResize, payloadXYWH(&post.Entity)
	}
}

func payloadXYWH(e *docstore.Entity) [4]float32 {
	switch e.Kind {
	case docstore.KindCircle, docstore.KindPolygon:
		return [4]float32{e.CenterX, e.CenterY, e.RX, e.RY}
	default:
		return [4]float32{e.X, e.Y, e.W, e.H}
	}
}

func currentVertex(e *docstore.Entity, idx int, pts []geom.Point2) geom.Point2 {
	switch e.Kind {
	case docstore.KindLine, docstore.KindArrow:
		if idx == 0 {
			return e.P0
		}
		return e.P1
	case docstore.KindPolyline:
		if idx >= 0 && idx < len(pts) {
			return pts[idx]
		}
	}
	return geom.Point2{}
}

func sortIDs(ids []docstore.EntityID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// Cancel walks every snapshot in reverse and restores it byte/element-for-
// element (spec §4.5 Cancel). No history entry is produced.
func (m *Manager) Cancel() {
	if !m.Active() {
		return
	}
	s := m.sess
	ids := make([]docstore.EntityID, len(s.ids))
	copy(ids, s.ids)
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		snap, ok := s.snapshots[id]
		if !ok {
			continue
		}
		_ = m.doc.RestoreSnapshot(snap)
		m.refreshIndex(id)
	}
	if s.duplicated {
		for _, id := range s.ids {
			_ = m.doc.Delete(id)
			m.grid.Remove(spatial.ID(id))
		}
	}
	m.hist.Suppress(true)
	_ = m.hist.Commit()
	m.hist.Suppress(false)
	m.sess = nil
}
