// Package snap implements the SnapSolver (spec §4.4, C4): object-snap
// against other entities' AABB edges/centers/endpoints/midpoints, grid
// snap, and the guide/hit emission consumed by the overlay, grounded
// structurally on the now-superseded client/engines/layout_engine.go's
// DragDropFacet snap-point computation (broad-phase query the neighbors,
// score each candidate against the moving target, keep the closest within
// tolerance) re-derived for the richer multi-axis, multi-source variant
// spec §9 calls the canonical one ("the source contains two snap-solver
// variants...the richer one is canonical").
package snap

import (
	"math"

	"github.com/rknuus/cadcore/internal/aabbkit"
	"github.com/rknuus/cadcore/internal/docstore"
	"github.com/rknuus/cadcore/internal/geom"
	"github.com/rknuus/cadcore/internal/modifier"
	"github.com/rknuus/cadcore/internal/spatial"
)

// Kind tags a SnapHit's source (spec §3).
type Kind int

const (
	Endpoint Kind = iota
	Midpoint
	Center
	Nearest
	Grid
)

// Hit is a visualized snap point (spec §3).
type Hit struct {
	Kind Kind
	X, Y float32
}

// Guide is a world-space straight guide line (spec §3).
type Guide struct {
	X0, Y0, X1, Y1 float32
}

// Options configures which snap sources are active (spec §3 SnapOptions).
type Options struct {
	Enabled         bool
	EndpointEnabled bool
	MidpointEnabled bool
	CenterEnabled   bool
	NearestEnabled  bool
	GridEnabled     bool
	GridSize        float32
	TolerancePx     float32
}

// Result is the outcome of a Solve call.
type Result struct {
	Dx, Dy           float32
	SnappedX         bool
	SnappedY         bool
	Hits             []Hit
	Guides           []Guide
}

// Solver is the SnapSolver (C4).
type Solver struct {
	grid *spatial.Grid
	doc  *docstore.Document
	text docstore.TextLayout
}

// New creates a Solver over grid and doc.
func New(grid *spatial.Grid, doc *docstore.Document, text docstore.TextLayout) *Solver {
	return &Solver{grid: grid, doc: doc, text: text}
}

// GridSnapPoint rounds p to the nearest multiple of gridSize on each axis
// (spec §4.4 step 5: `round(v/gridSize)*gridSize`). Applied by the caller
// (TransformSession) to the raw world probe before delta computation.
func GridSnapPoint(p geom.Point2, gridSize float32) geom.Point2 {
	if gridSize <= 0 {
		return p
	}
	return geom.Point2{
		X: float32(math.Round(float64(p.X/gridSize))) * gridSize,
		Y: float32(math.Round(float64(p.Y/gridSize))) * gridSize,
	}
}

type axisCandidate struct {
	value float32
	kind  Kind
	point geom.Point2
}

// Solve computes the snap-adjusted (dx, dy) for a group move, plus guides
// and hits. baseBox is the session's base AABB (pre-move, union of active
// ids' AABBs); dx,dy is the proposed unsnapped delta. excludeIDs is the set
// of ids in the moving group (never matched against themselves). viewport
// is the current world-space viewport rectangle, used to span guide lines.
func (s *Solver) Solve(baseBox geom.AABB, dx, dy float32, excludeIDs map[docstore.EntityID]bool, opts Options, viewScale float32, viewport geom.AABB, mods modifier.Mask) Result {
	res := Result{Dx: dx, Dy: dy}
	if !opts.Enabled || mods.SuppressesObjectSnap() {
		return res
	}
	if viewScale < 1e-6 {
		viewScale = 1
	}
	worldTol := opts.TolerancePx / viewScale
	if worldTol <= 0 {
		return res
	}

	movedBox := geom.AABB{
		MinX: baseBox.MinX + dx, MinY: baseBox.MinY + dy,
		MaxX: baseBox.MaxX + dx, MaxY: baseBox.MaxY + dy,
	}
	queryBox := movedBox.Expanded(worldTol)

	ids := s.grid.Query(queryBox, nil)
	ids = spatial.SortUnique(ids)

	var xCands, yCands []axisCandidate
	for _, sid := range ids {
		id := docstore.EntityID(sid)
		if excludeIDs[id] {
			continue
		}
		e := s.doc.EntityOrNil(id)
		if e == nil || !s.doc.Pickable(id) {
			continue
		}
		box := aabbkit.TightBounds(e, s.text)
		if box.IsNull() {
			continue
		}
		if opts.NearestEnabled {
			minCorner := geom.Point2{X: box.MinX, Y: box.MinY}
			maxCorner := geom.Point2{X: box.MaxX, Y: box.MaxY}
			xCands = append(xCands,
				axisCandidate{value: box.MinX, kind: Nearest, point: minCorner},
				axisCandidate{value: box.MaxX, kind: Nearest, point: maxCorner},
			)
			yCands = append(yCands,
				axisCandidate{value: box.MinY, kind: Nearest, point: minCorner},
				axisCandidate{value: box.MaxY, kind: Nearest, point: maxCorner},
			)
		}
		if opts.CenterEnabled {
			c := box.Center()
			xCands = append(xCands, axisCandidate{value: c.X, kind: Center, point: c})
			yCands = append(yCands, axisCandidate{value: c.Y, kind: Center, point: c})
		}
		if opts.EndpointEnabled {
			for _, v := range vertices(s.doc, e) {
				xCands = append(xCands, axisCandidate{value: v.X, kind: Endpoint, point: v})
				yCands = append(yCands, axisCandidate{value: v.Y, kind: Endpoint, point: v})
			}
		}
		if opts.MidpointEnabled {
			for _, m := range edgeMidpoints(s.doc, e) {
				xCands = append(xCands, axisCandidate{value: m.X, kind: Midpoint, point: m})
				yCands = append(yCands, axisCandidate{value: m.Y, kind: Midpoint, point: m})
			}
		}
	}

	xTargets := []float32{movedBox.MinX, movedBox.MaxX}
	yTargets := []float32{movedBox.MinY, movedBox.MaxY}
	if opts.CenterEnabled {
		c := movedBox.Center()
		xTargets = append(xTargets, c.X)
		yTargets = append(yTargets, c.Y)
	}

	bestX, okX := bestMatch(xCands, xTargets, worldTol)
	bestY, okY := bestMatch(yCands, yTargets, worldTol)

	if okX {
		res.Dx = dx + (bestX.value - closestTarget(xTargets, bestX.value))
		res.SnappedX = true
	}
	if okY {
		res.Dy = dy + (bestY.value - closestTarget(yTargets, bestY.value))
		res.SnappedY = true
	}

	if okX {
		res.Guides = append(res.Guides, Guide{X0: bestX.value, Y0: viewport.MinY, X1: bestX.value, Y1: viewport.MaxY})
	}
	if okY {
		res.Guides = append(res.Guides, Guide{X0: viewport.MinX, Y0: bestY.value, X1: viewport.MaxX, Y1: bestY.value})
	}

	if okX && okY {
		hx := Hit{Kind: bestX.kind, X: bestX.point.X, Y: bestX.point.Y}
		hy := Hit{Kind: bestY.kind, X: bestY.point.X, Y: bestY.point.Y}
		if absf(hx.X-hy.X) < 1e-4 && absf(hx.Y-hy.Y) < 1e-4 {
			res.Hits = []Hit{hx}
		} else {
			res.Hits = []Hit{hx, hy}
		}
	} else if okX {
		res.Hits = []Hit{{Kind: bestX.kind, X: bestX.point.X, Y: bestX.point.Y}}
	} else if okY {
		res.Hits = []Hit{{Kind: bestY.kind, X: bestY.point.X, Y: bestY.point.Y}}
	}

	return res
}

func bestMatch(cands []axisCandidate, targets []float32, tol float32) (axisCandidate, bool) {
	var best axisCandidate
	bestDelta := tol
	found := false
	for _, c := range cands {
		for _, t := range targets {
			d := absf(c.value - t)
			if d <= bestDelta {
				bestDelta = d
				best = c
				found = true
			}
		}
	}
	return best, found
}

func closestTarget(targets []float32, value float32) float32 {
	best := targets[0]
	bestDelta := absf(value - best)
	for _, t := range targets[1:] {
		if d := absf(value - t); d < bestDelta {
			bestDelta = d
			best = t
		}
	}
	return best
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// vertices returns the natural endpoints of e for endpoint-snap (spec §4.4
// step 3: "its natural endpoints"). Uses the same per-kind vertex formula
// as PickResolver (§4.3), re-derived here to keep snap free of a pick
// dependency.
func vertices(doc *docstore.Document, e *docstore.Entity) []geom.Point2 {
	switch e.Kind {
	case docstore.KindRect:
		return aabbkit.RectCorners(e)
	case docstore.KindLine, docstore.KindArrow:
		return []geom.Point2{e.P0, e.P1}
	case docstore.KindPolyline:
		return doc.PolylinePoints(e.PointOffset, e.PointCount)
	case docstore.KindPolygon:
		return aabbkit.PolygonVertices(e)
	default:
		return nil
	}
}

// edgeMidpoints returns the midpoint of every edge of e for midpoint-snap.
func edgeMidpoints(doc *docstore.Document, e *docstore.Entity) []geom.Point2 {
	mid := func(a, b geom.Point2) geom.Point2 {
		return geom.Point2{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	}
	switch e.Kind {
	case docstore.KindRect:
		c := aabbkit.RectCorners(e)
		return []geom.Point2{mid(c[0], c[1]), mid(c[1], c[2]), mid(c[2], c[3]), mid(c[3], c[0])}
	case docstore.KindLine, docstore.KindArrow:
		return []geom.Point2{mid(e.P0, e.P1)}
	case docstore.KindPolyline:
		pts := doc.PolylinePoints(e.PointOffset, e.PointCount)
		if len(pts) < 2 {
			return nil
		}
		out := make([]geom.Point2, 0, len(pts)-1)
		for i := 0; i < len(pts)-1; i++ {
			out = append(out, mid(pts[i], pts[i+1]))
		}
		return out
	case docstore.KindPolygon:
		verts := aabbkit.PolygonVertices(e)
		out := make([]geom.Point2, len(verts))
		for i := range verts {
			out[i] = mid(verts[i], verts[(i+1)%len(verts)])
		}
		return out
	default:
		return nil
	}
}
