package pick

import (
	"testing"

	"github.com/rknuus/cadcore/internal/aabbkit"
	"github.com/rknuus/cadcore/internal/docstore"
	"github.com/rknuus/cadcore/internal/geom"
	"github.com/rknuus/cadcore/internal/spatial"
)

func newFixture(t *testing.T) (*Resolver, *docstore.Document, *spatial.Grid) {
	t.Helper()
	doc := docstore.New(nil, nil)
	grid := spatial.New(50)
	r := New(grid, doc, nil, nil)
	return r, doc, grid
}

func upsertAndIndex(t *testing.T, doc *docstore.Document, grid *spatial.Grid, e *docstore.Entity) {
	t.Helper()
	if err := doc.Upsert(e); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	grid.Insert(spatial.ID(e.ID), aabbkit.Compute(e, doc.TextLayout()))
}

func TestPickExFindsBodyHit(t *testing.T) {
	r, doc, grid := newFixture(t)
	e := &docstore.Entity{ID: 1, Kind: docstore.KindRect, Visible: true, FillEnabled: true, X: 0, Y: 0, W: 10, H: 10, ZIndex: 1}
	upsertAndIndex(t, doc, grid, e)

	res := r.PickEx(5, 5, 3, 1, AllMask)
	if !res.Found || res.Candidate.SubTarget != Body {
		t.Fatalf("expected Body hit, got %+v", res)
	}
}

func TestPickExPrefersHigherZIndexOnTie(t *testing.T) {
	r, doc, grid := newFixture(t)
	a := &docstore.Entity{ID: 1, Kind: docstore.KindRect, Visible: true, FillEnabled: true, X: 0, Y: 0, W: 10, H: 10, ZIndex: 1}
	b := &docstore.Entity{ID: 2, Kind: docstore.KindRect, Visible: true, FillEnabled: true, X: 0, Y: 0, W: 10, H: 10, ZIndex: 5}
	upsertAndIndex(t, doc, grid, a)
	upsertAndIndex(t, doc, grid, b)

	res := r.PickEx(5, 5, 3, 1, AllMask)
	if !res.Found || res.Candidate.ID != 2 {
		t.Fatalf("expected the higher zIndex entity (id=2) to win, got %+v", res.Candidate)
	}
}

func TestPickExPrefersResizeHandleOverVertexOverEdgeOverBody(t *testing.T) {
	r, doc, grid := newFixture(t)
	e := &docstore.Entity{ID: 1, Kind: docstore.KindRect, Visible: true, FillEnabled: true, X: 0, Y: 0, W: 10, H: 10, ZIndex: 1}
	upsertAndIndex(t, doc, grid, e)

	// probe exactly on the (0,0) corner: should prefer ResizeHandle.
	res := r.PickEx(0, 0, 1, 1, AllMask)
	if !res.Found || res.Candidate.SubTarget != ResizeHandle {
		t.Fatalf("expected ResizeHandle at corner, got %+v", res.Candidate)
	}
}

func TestPickExRespectsMask(t *testing.T) {
	r, doc, grid := newFixture(t)
	e := &docstore.Entity{ID: 1, Kind: docstore.KindRect, Visible: true, FillEnabled: true, X: 0, Y: 0, W: 10, H: 10, ZIndex: 1}
	upsertAndIndex(t, doc, grid, e)

	// disable handles and vertex, probe at corner: should fall through to Edge.
	res := r.PickEx(0, 0, 1, 1, MaskBody|MaskEdge)
	if !res.Found || res.Candidate.SubTarget != Edge {
		t.Fatalf("expected Edge hit with handles/vertex masked out, got %+v", res.Candidate)
	}
}

func TestPickExSkipsUnpickableEntities(t *testing.T) {
	r, doc, grid := newFixture(t)
	e := &docstore.Entity{ID: 1, Kind: docstore.KindRect, Visible: false, FillEnabled: true, X: 0, Y: 0, W: 10, H: 10}
	upsertAndIndex(t, doc, grid, e)

	res := r.PickEx(5, 5, 1, 1, AllMask)
	if res.Found {
		t.Fatalf("expected no hit on an invisible entity, got %+v", res.Candidate)
	}
}

func TestPickExMissReturnsStats(t *testing.T) {
	r, doc, grid := newFixture(t)
	e := &docstore.Entity{ID: 1, Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10}
	upsertAndIndex(t, doc, grid, e)

	res := r.PickEx(1000, 1000, 1, 1, AllMask)
	if res.Found {
		t.Fatalf("expected a miss far from the entity, got %+v", res.Candidate)
	}
	if res.Stats != r.LastStats() {
		t.Fatalf("result stats %+v differ from LastStats %+v", res.Stats, r.LastStats())
	}
}

func TestQueryAreaOrdersByZIndexThenID(t *testing.T) {
	r, doc, grid := newFixture(t)
	a := &docstore.Entity{ID: 5, Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10, ZIndex: 1}
	b := &docstore.Entity{ID: 1, Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10, ZIndex: 1}
	c := &docstore.Entity{ID: 2, Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10, ZIndex: 9}
	upsertAndIndex(t, doc, grid, a)
	upsertAndIndex(t, doc, grid, b)
	upsertAndIndex(t, doc, grid, c)

	ids := r.QueryArea(geom.AABB{MinX: -1, MinY: -1, MaxX: 11, MaxY: 11})
	if len(ids) != 3 || ids[0] != 2 || ids[1] != 1 || ids[2] != 5 {
		t.Fatalf("QueryArea order = %v, want [2,1,5]", ids)
	}
}
