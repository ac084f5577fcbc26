// Package pick implements the PickResolver (spec §4.3, C3): broad-phase
// lookup via the spatial grid, narrow-phase per-kind hit testing, and
// strict priority ranking of the resulting candidates.
package pick

import (
	"sort"

	"github.com/rknuus/cadcore/internal/aabbkit"
	"github.com/rknuus/cadcore/internal/docstore"
	"github.com/rknuus/cadcore/internal/geom"
	"github.com/rknuus/cadcore/internal/spatial"
	"github.com/rknuus/cadcore/internal/utilities"
)

// SubTarget is a tagged pick sub-target with an associated priority (§3).
type SubTarget int

const (
	None SubTarget = iota
	Body
	TextBody
	Edge
	Vertex
	TextCaret
	RotateHandle
	ResizeHandle
)

// priority returns the §3 priority rank for ordering (higher wins).
func (s SubTarget) priority() int {
	switch s {
	case ResizeHandle:
		return 10
	case RotateHandle:
		return 9
	case Vertex, TextCaret:
		return 8
	case Edge:
		return 5
	case Body, TextBody:
		return 1
	default:
		return 0
	}
}

// Mask selects which sub-targets a pick call considers (§4.3).
type Mask uint8

const (
	MaskBody Mask = 1 << iota
	MaskEdge
	MaskVertex
	MaskHandles
	MaskTextCaret
)

// AllMask enables every sub-target.
const AllMask Mask = MaskBody | MaskEdge | MaskVertex | MaskHandles | MaskTextCaret

func (m Mask) has(bit Mask) bool { return m&bit != 0 }

// Candidate is a ranked hit candidate (§3).
type Candidate struct {
	ID        docstore.EntityID
	Kind      docstore.Kind
	SubTarget SubTarget
	SubIndex  int32
	Distance  float32
	ZIndex    uint32
}

// Less implements the strict total order of §3: higher sub-target priority
// first; then higher zIndex; then smaller distance; stable tie-break on id.
func Less(a, b Candidate) bool {
	ap, bp := a.SubTarget.priority(), b.SubTarget.priority()
	if ap != bp {
		return ap > bp
	}
	if a.ZIndex != b.ZIndex {
		return a.ZIndex > b.ZIndex
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// Stats records per-call diagnostics (§4.3).
type Stats struct {
	CandidatesChecked int
	IndexCellsQueried int
}

// Result is the outcome of a PickEx call.
type Result struct {
	Candidate Candidate
	Found     bool
	Stats     Stats
}

// rotateOffsetPx / rotateRadiusPx are the fixed screen-space rotate-handle
// geometry constants of §4.3.
const (
	rotateOffsetPx = 15
	rotateRadiusPx = 10
)

// Resolver is the PickResolver (C3): stateless except for its collaborators.
type Resolver struct {
	grid   *spatial.Grid
	doc    *docstore.Document
	text   docstore.TextLayout
	logger utilities.ILoggingUtility

	lastStats Stats
}

// New creates a Resolver over grid and doc.
func New(grid *spatial.Grid, doc *docstore.Document, text docstore.TextLayout, logger utilities.ILoggingUtility) *Resolver {
	return &Resolver{grid: grid, doc: doc, text: text, logger: logger}
}

// LastStats returns the diagnostics recorded by the most recent PickEx call.
func (r *Resolver) LastStats() Stats { return r.lastStats }

// PickEx performs the broad + narrow phase pick described in §4.3. x, y are
// world coordinates; tolerance is in pixels and is converted to world units
// via viewScale.
func (r *Resolver) PickEx(x, y, tolerancePx, viewScale float32, mask Mask) Result {
	stats := Stats{}
	if viewScale < 1e-6 {
		viewScale = 1
	}
	worldTol := tolerancePx / viewScale
	probe := geom.Point2{X: x, Y: y}
	queryBounds := geom.AABB{MinX: x - worldTol, MinY: y - worldTol, MaxX: x + worldTol, MaxY: y + worldTol}

	ids := r.grid.Query(queryBounds, nil)
	stats.IndexCellsQueried = len(ids)
	ids = spatial.SortUnique(ids)

	var best Candidate
	found := false

	for _, sid := range ids {
		id := docstore.EntityID(sid)
		e := r.doc.EntityOrNil(id)
		if e == nil || !r.doc.Pickable(id) {
			continue
		}
		stats.CandidatesChecked++

		if mask.has(MaskHandles) {
			if c, ok := r.handleHit(e, probe, worldTol, viewScale); ok {
				r.lastStats = stats
				return Result{Candidate: c, Found: true, Stats: stats}
			}
		}

		cand, ok := r.narrowPhase(e, probe, worldTol, viewScale, mask)
		if !ok {
			continue
		}
		if !found || Less(cand, best) {
			best = cand
			found = true
		}
	}

	r.lastStats = stats
	if r.logger != nil {
		r.logger.Log(utilities.Debug, "PickResolver", "pickEx", map[string]interface{}{
			"candidatesChecked": stats.CandidatesChecked,
			"indexCellsQueried": stats.IndexCellsQueried,
			"found":             found,
		})
	}
	return Result{Candidate: best, Found: found, Stats: stats}
}

// QueryArea returns ids whose AABB overlaps the given box, sorted by zIndex
// desc then id asc (spec §4.8).
func (r *Resolver) QueryArea(box geom.AABB) []docstore.EntityID {
	ids := r.grid.Query(box, nil)
	ids = spatial.SortUnique(ids)

	type scored struct {
		id     docstore.EntityID
		zIndex uint32
	}
	out := make([]scored, 0, len(ids))
	for _, sid := range ids {
		id := docstore.EntityID(sid)
		e := r.doc.EntityOrNil(id)
		if e == nil {
			continue
		}
		eb := aabbkit.Compute(e, r.text)
		if e.Kind == docstore.KindPolyline {
			eb = aabbkit.ComputePolyline(r.doc.PolylinePoints(e.PointOffset, e.PointCount))
		}
		if !eb.Intersects(box) {
			continue
		}
		out = append(out, scored{id: id, zIndex: e.ZIndex})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].zIndex != out[j].zIndex {
			return out[i].zIndex > out[j].zIndex
		}
		return out[i].id < out[j].id
	})
	result := make([]docstore.EntityID, len(out))
	for i, s := range out {
		result[i] = s.id
	}
	return result
}

// handleHit tests resize/rotate handles. A hit here dominates and causes an
// immediate return (§4.3).
func (r *Resolver) handleHit(e *docstore.Entity, probe geom.Point2, worldTol, viewScale float32) (Candidate, bool) {
	corners := obbCorners(e)
	if corners == nil {
		return Candidate{}, false
	}
	center := e.Center()

	// Resize handles: the 4 OBB corners themselves.
	for i, c := range corners {
		if c.Sub(probe).Length() <= worldTol {
			return Candidate{ID: e.ID, Kind: e.Kind, SubTarget: ResizeHandle, SubIndex: int32(i), Distance: c.Sub(probe).Length(), ZIndex: e.ZIndex}, true
		}
	}

	// Rotate handles: offset outward from each corner by rotateOffsetPx
	// (screen space), hit radius rotateRadiusPx (screen space).
	offsetWorld := rotateOffsetPx / viewScale
	radiusWorld := rotateRadiusPx / viewScale
	for i, c := range corners {
		dir := c.Sub(center)
		l := dir.Length()
		if l < 1e-6 {
			continue
		}
		dir = dir.Scale(1 / l)
		handlePos := c.Add(dir.Scale(offsetWorld))
		if d := handlePos.Sub(probe).Length(); d <= radiusWorld {
			return Candidate{ID: e.ID, Kind: e.Kind, SubTarget: RotateHandle, SubIndex: int32(i), Distance: d, ZIndex: e.ZIndex}, true
		}
	}
	return Candidate{}, false
}

// obbCorners returns the 4 corners considered for handles, per kind.
func obbCorners(e *docstore.Entity) []geom.Point2 {
	switch e.Kind {
	case docstore.KindRect:
		return aabbkit.RectCorners(e)
	case docstore.KindCircle, docstore.KindPolygon:
		if e.RX < 1e-6 || e.RY < 1e-6 {
			return nil
		}
		local := []geom.Point2{
			{X: -e.RX, Y: -e.RY}, {X: e.RX, Y: -e.RY}, {X: e.RX, Y: e.RY}, {X: -e.RX, Y: e.RY},
		}
		center := geom.Point2{X: e.CenterX, Y: e.CenterY}
		out := make([]geom.Point2, 4)
		for i, p := range local {
			out[i] = geom.ToWorld(p, geom.Point2{}, e.RotationDeg).Add(center)
		}
		return out
	default:
		return nil
	}
}

// narrowPhase computes the best non-handle candidate for e, or false if
// none of the enabled sub-targets hit.
func (r *Resolver) narrowPhase(e *docstore.Entity, probe geom.Point2, worldTol, viewScale float32, mask Mask) (Candidate, bool) {
	if e.Kind == docstore.KindText {
		return r.textCandidate(e, probe, mask)
	}

	var best Candidate
	found := false
	consider := func(c Candidate) {
		if !found || Less(c, best) {
			best = c
			found = true
		}
	}

	if mask.has(MaskVertex) {
		if c, ok := r.vertexCandidate(e, probe, worldTol); ok {
			consider(c)
		}
	}
	if mask.has(MaskEdge) {
		if c, ok := r.edgeCandidate(e, probe, worldTol, viewScale); ok {
			consider(c)
		}
	}
	if mask.has(MaskBody) {
		if c, ok := r.bodyCandidate(e, probe); ok {
			consider(c)
		}
	}
	return best, found
}

func (r *Resolver) vertices(e *docstore.Entity) []geom.Point2 {
	switch e.Kind {
	case docstore.KindRect:
		return aabbkit.RectCorners(e)
	case docstore.KindLine, docstore.KindArrow:
		return []geom.Point2{e.P0, e.P1}
	case docstore.KindPolyline:
		return r.doc.PolylinePoints(e.PointOffset, e.PointCount)
	case docstore.KindPolygon:
		return aabbkit.PolygonVertices(e)
	default:
		return nil
	}
}

func (r *Resolver) vertexCandidate(e *docstore.Entity, probe geom.Point2, worldTol float32) (Candidate, bool) {
	pts := r.vertices(e)
	if pts == nil {
		return Candidate{}, false
	}
	bestIdx := -1
	bestDist := worldTol
	for i, p := range pts {
		d := p.Sub(probe).Length()
		if d <= bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return Candidate{}, false
	}
	return Candidate{ID: e.ID, Kind: e.Kind, SubTarget: Vertex, SubIndex: int32(bestIdx), Distance: bestDist, ZIndex: e.ZIndex}, true
}

func (r *Resolver) edgeCandidate(e *docstore.Entity, probe geom.Point2, worldTol, viewScale float32) (Candidate, bool) {
	strokeHalf := e.StrokeWidthPx / (2 * maxf(viewScale, 1e-6))
	tol := worldTol + strokeHalf

	switch e.Kind {
	case docstore.KindRect:
		corners := aabbkit.RectCorners(e)
		center := e.Center()
		local := geom.ToLocal(probe, center, e.Rotation())
		localCorners := make([]geom.Point2, len(corners))
		for i, c := range corners {
			localCorners[i] = geom.ToLocal(c, center, e.Rotation())
		}
		minX, minY := localCorners[0].X, localCorners[0].Y
		maxX, maxY := localCorners[0].X, localCorners[0].Y
		for _, c := range localCorners[1:] {
			minX, maxX = minf(minX, c.X), maxf(maxX, c.X)
			minY, maxY = minf(minY, c.Y), maxf(maxY, c.Y)
		}
		inside := local.X >= minX && local.X <= maxX && local.Y >= minY && local.Y <= maxY
		var dist float32
		if inside {
			dist = minf(minf(local.X-minX, maxX-local.X), minf(local.Y-minY, maxY-local.Y))
		} else {
			_, d := closestOnPolygonEdges(probe, corners)
			dist = d
		}
		if dist <= tol {
			return Candidate{ID: e.ID, Kind: e.Kind, SubTarget: Edge, Distance: dist, ZIndex: e.ZIndex}, true
		}
		return Candidate{}, false

	case docstore.KindLine, docstore.KindArrow:
		_, d := geom.ClosestPointOnSegment(probe, e.P0, e.P1)
		if d <= tol {
			return Candidate{ID: e.ID, Kind: e.Kind, SubTarget: Edge, Distance: d, ZIndex: e.ZIndex}, true
		}
		return Candidate{}, false

	case docstore.KindPolyline:
		pts := r.doc.PolylinePoints(e.PointOffset, e.PointCount)
		if len(pts) < 2 {
			return Candidate{}, false
		}
		best := float32(1e18)
		for i := 0; i < len(pts)-1; i++ {
			_, d := geom.ClosestPointOnSegment(probe, pts[i], pts[i+1])
			if d < best {
				best = d
			}
		}
		if best <= tol {
			return Candidate{ID: e.ID, Kind: e.Kind, SubTarget: Edge, Distance: best, ZIndex: e.ZIndex}, true
		}
		return Candidate{}, false

	case docstore.KindPolygon:
		pts := aabbkit.PolygonVertices(e)
		closedPts := append(append([]geom.Point2{}, pts...), pts[0])
		best := float32(1e18)
		for i := 0; i < len(closedPts)-1; i++ {
			_, d := geom.ClosestPointOnSegment(probe, closedPts[i], closedPts[i+1])
			if d < best {
				best = d
			}
		}
		if best <= tol {
			return Candidate{ID: e.ID, Kind: e.Kind, SubTarget: Edge, Distance: best, ZIndex: e.ZIndex}, true
		}
		return Candidate{}, false

	default:
		return Candidate{}, false
	}
}

func closestOnPolygonEdges(probe geom.Point2, pts []geom.Point2) (geom.Point2, float32) {
	best := float32(1e18)
	var bestPt geom.Point2
	n := len(pts)
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		p, d := geom.ClosestPointOnSegment(probe, a, b)
		if d < best {
			best = d
			bestPt = p
		}
	}
	return bestPt, best
}

func (r *Resolver) bodyCandidate(e *docstore.Entity, probe geom.Point2) (Candidate, bool) {
	if !e.FillEnabled {
		return Candidate{}, false
	}
	inside := false
	switch e.Kind {
	case docstore.KindRect:
		center := e.Center()
		local := geom.ToLocal(probe, center, e.Rotation())
		inside = local.X >= e.X && local.X <= e.X+e.W && local.Y >= e.Y && local.Y <= e.Y+e.H
	case docstore.KindCircle:
		if e.RX < 1e-6 || e.RY < 1e-6 {
			return Candidate{}, false
		}
		center := geom.Point2{X: e.CenterX, Y: e.CenterY}
		local := geom.ToLocal(probe, center, e.RotationDeg)
		nx, ny := local.X/e.RX, local.Y/e.RY
		inside = nx*nx+ny*ny <= 1
	case docstore.KindPolygon:
		pts := aabbkit.PolygonVertices(e)
		inside = pointInPolygon(probe, pts)
	default:
		return Candidate{}, false
	}
	if !inside {
		return Candidate{}, false
	}
	return Candidate{ID: e.ID, Kind: e.Kind, SubTarget: Body, Distance: 0, ZIndex: e.ZIndex}, true
}

func pointInPolygon(p geom.Point2, pts []geom.Point2) bool {
	inside := false
	n := len(pts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := pts[i], pts[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			xint := (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if p.X < xint {
				inside = !inside
			}
		}
	}
	return inside
}

func (r *Resolver) textCandidate(e *docstore.Entity, probe geom.Point2, mask Mask) (Candidate, bool) {
	box := aabbkit.Compute(e, r.text)
	if box.IsNull() || !box.Contains(probe) {
		return Candidate{}, false
	}
	if mask.has(MaskTextCaret) && r.text != nil {
		local := probe.Sub(e.TextPos)
		idx := r.text.HitTestCaret(e.ID, local.X, local.Y)
		return Candidate{ID: e.ID, Kind: e.Kind, SubTarget: TextCaret, SubIndex: int32(idx), Distance: 0, ZIndex: e.ZIndex}, true
	}
	return Candidate{ID: e.ID, Kind: e.Kind, SubTarget: TextBody, Distance: 0, ZIndex: e.ZIndex}, true
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
