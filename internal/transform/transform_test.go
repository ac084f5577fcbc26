package transform

import (
	"testing"

	"github.com/rknuus/cadcore/internal/aabbkit"
	"github.com/rknuus/cadcore/internal/docstore"
	"github.com/rknuus/cadcore/internal/geom"
	"github.com/rknuus/cadcore/internal/history"
	"github.com/rknuus/cadcore/internal/modifier"
	"github.com/rknuus/cadcore/internal/snap"
	"github.com/rknuus/cadcore/internal/spatial"
)

func newFixture(t *testing.T) (*Manager, *docstore.Document, *spatial.Grid) {
	t.Helper()
	doc := docstore.New(nil, nil)
	grid := spatial.New(50)
	hist := history.New(doc, nil, nil)
	snapSolver := snap.New(grid, doc, nil)
	return New(doc, grid, hist, nil, snapSolver, nil), doc, grid
}

func identityVP() ViewParams {
	return ViewParams{ViewX: 0, ViewY: 0, ViewScale: 1, ViewWidth: 800, ViewHeight: 600}
}

func TestScreenToWorldFlipsY(t *testing.T) {
	vp := ViewParams{ViewX: 400, ViewY: 300, ViewScale: 2}
	got := ScreenToWorld(420, 280, vp)
	if got.X != 10 || got.Y != 10 {
		t.Fatalf("ScreenToWorld = %+v, want (10,10)", got)
	}
}

func TestMoveRectCommitsOpMove(t *testing.T) {
	mgr, doc, grid := newFixture(t)
	e := &docstore.Entity{ID: 1, Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10}
	_ = doc.Upsert(e)
	grid.Insert(spatial.ID(e.ID), aabbkit.Compute(e, nil))

	vp := identityVP()
	if err := mgr.Begin([]docstore.EntityID{1}, Move, 1, 0, 0, 0, vp, 0, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !mgr.Active() {
		t.Fatalf("expected session active after Begin")
	}
	mgr.Update(20, -20, vp, 0, snap.Options{}, geom.AABB{MinX: -1000, MinY: -1000, MaxX: 1000, MaxY: 1000})

	got := doc.EntityOrNil(1)
	if got.X != 20 || got.Y != 20 {
		t.Fatalf("after move X,Y = %v,%v want 20,20", got.X, got.Y)
	}

	res := mgr.Commit()
	if len(res.IDs) != 1 || res.IDs[0] != 1 {
		t.Fatalf("CommitResult.IDs = %v, want [1]", res.IDs)
	}
	if res.OpCodes[0] != history.OpMove {
		t.Fatalf("OpCodes[0] = %v, want OpMove", res.OpCodes[0])
	}
	if mgr.Active() {
		t.Fatalf("expected session cleared after Commit")
	}
}

func TestBeginNoOpWhenNoPickableIDs(t *testing.T) {
	mgr, doc, _ := newFixture(t)
	e := &docstore.Entity{ID: 1, Kind: docstore.KindRect, Visible: false, W: 10, H: 10}
	_ = doc.Upsert(e)

	if err := mgr.Begin([]docstore.EntityID{1}, Move, 1, 0, 0, 0, identityVP(), 0, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if mgr.Active() {
		t.Fatalf("expected no-op Begin since entity is not pickable")
	}
}

func TestCancelRestoresSnapshot(t *testing.T) {
	mgr, doc, grid := newFixture(t)
	e := &docstore.Entity{ID: 1, Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10}
	_ = doc.Upsert(e)
	grid.Insert(spatial.ID(e.ID), aabbkit.Compute(e, nil))

	vp := identityVP()
	_ = mgr.Begin([]docstore.EntityID{1}, Move, 1, 0, 0, 0, vp, 0, nil)
	mgr.Update(50, -50, vp, 0, snap.Options{}, geom.AABB{MinX: -1000, MinY: -1000, MaxX: 1000, MaxY: 1000})
	mgr.Cancel()

	got := doc.EntityOrNil(1)
	if got.X != 0 || got.Y != 0 {
		t.Fatalf("after cancel X,Y = %v,%v want 0,0", got.X, got.Y)
	}
	if mgr.Active() {
		t.Fatalf("expected session cleared after Cancel")
	}
}

func TestAltDuplicateMovePolylineDoesNotAliasOriginalPoints(t *testing.T) {
	mgr, doc, grid := newFixture(t)
	pts := []geom.Point2{{X: 0, Y: 0}, {X: 10, Y: 0}}
	offset, count := doc.AppendPolylinePoints(pts)
	e := &docstore.Entity{ID: 1, Kind: docstore.KindPolyline, Visible: true, PointOffset: offset, PointCount: count}
	_ = doc.Upsert(e)
	grid.Insert(spatial.ID(e.ID), geom.FromPoints(pts))

	nextID := docstore.EntityID(2)
	allocate := func() docstore.EntityID {
		id := nextID
		nextID++
		return id
	}

	vp := identityVP()
	if err := mgr.Begin([]docstore.EntityID{1}, Move, 1, 0, 0, 0, vp, modifier.Alt, allocate); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	mgr.Update(20, 0, vp, modifier.Alt, snap.Options{}, geom.AABB{MinX: -1000, MinY: -1000, MaxX: 1000, MaxY: 1000})
	mgr.Commit()

	originalPts := doc.PolylinePoints(offset, count)
	for i, p := range originalPts {
		if p != pts[i] {
			t.Fatalf("original polyline point %d mutated to %+v, want unchanged %+v", i, p, pts[i])
		}
	}

	dup := doc.EntityOrNil(2)
	if dup == nil {
		t.Fatalf("expected duplicate entity 2 to exist")
	}
	dupPts := doc.PolylinePoints(dup.PointOffset, dup.PointCount)
	if dupPts[0].X != 20 {
		t.Fatalf("duplicate polyline point 0 X = %v, want 20", dupPts[0].X)
	}
}

func TestResizeSingleRectAnchorsOppositeCorner(t *testing.T) {
	mgr, doc, grid := newFixture(t)
	e := &docstore.Entity{ID: 1, Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10}
	_ = doc.Upsert(e)
	grid.Insert(spatial.ID(e.ID), aabbkit.Compute(e, nil))

	vp := identityVP()
	// grab the TR corner (world 10,10) and drag it out to (20,20)
	if err := mgr.Begin([]docstore.EntityID{1}, Resize, 1, CornerTR, 10, -10, vp, 0, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	mgr.Update(20, -20, vp, 0, snap.Options{}, geom.AABB{MinX: -1000, MinY: -1000, MaxX: 1000, MaxY: 1000})

	got := doc.EntityOrNil(1)
	if got.W != 20 || got.H != 20 {
		t.Fatalf("after resize W,H = %v,%v want 20,20", got.W, got.H)
	}
	if got.X != 0 || got.Y != 0 {
		t.Fatalf("anchor corner moved: X,Y = %v,%v want 0,0", got.X, got.Y)
	}
}

func TestVertexDragShiftSnapsTo45Degrees(t *testing.T) {
	mgr, doc, grid := newFixture(t)
	e := &docstore.Entity{ID: 1, Kind: docstore.KindLine, Visible: true, P0: geom.Point2{X: 0, Y: 0}, P1: geom.Point2{X: 10, Y: 0}}
	_ = doc.Upsert(e)
	grid.Insert(spatial.ID(e.ID), aabbkit.Compute(e, nil))

	vp := identityVP()
	if err := mgr.Begin(nil, VertexDrag, 1, 1, 10, 0, vp, 0, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// drag P1 to world (2,50): close enough to vertical that 45° rounding snaps to 90°
	mgr.Update(2, -50, vp, modifier.Shift, snap.Options{}, geom.AABB{MinX: -1000, MinY: -1000, MaxX: 1000, MaxY: 1000})

	got := doc.EntityOrNil(1)
	if absf(got.P1.X-0) > 1e-3 {
		t.Fatalf("P1.X = %v, want ~0 after 90° snap", got.P1.X)
	}
}

func TestCommitNoOpWhenNothingChanged(t *testing.T) {
	mgr, doc, grid := newFixture(t)
	e := &docstore.Entity{ID: 1, Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10}
	_ = doc.Upsert(e)
	grid.Insert(spatial.ID(e.ID), aabbkit.Compute(e, nil))

	vp := identityVP()
	_ = mgr.Begin([]docstore.EntityID{1}, Move, 1, 0, 0, 0, vp, 0, nil)
	res := mgr.Commit()
	if len(res.IDs) != 0 {
		t.Fatalf("expected no changes recorded, got %v", res.IDs)
	}
}
