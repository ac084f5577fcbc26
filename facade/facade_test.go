package facade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknuus/cadcore/internal/docstore"
	"github.com/rknuus/cadcore/internal/draft"
	"github.com/rknuus/cadcore/internal/geom"
	"github.com/rknuus/cadcore/internal/history"
	"github.com/rknuus/cadcore/internal/modifier"
	"github.com/rknuus/cadcore/internal/snap"
	"github.com/rknuus/cadcore/internal/spatial"
	"github.com/rknuus/cadcore/internal/transform"
)

func identityVP() ViewParams {
	return ViewParams{ViewX: 0, ViewY: 0, ViewScale: 1, ViewWidth: 800, ViewHeight: 600}
}

func fullViewport() geom.AABB {
	return geom.AABB{MinX: -1000, MinY: -1000, MaxX: 1000, MaxY: 1000}
}

func TestScenarioRectMove(t *testing.T) {
	f := New(nil, nil, nil)
	doc := f.Document()
	e := &docstore.Entity{ID: doc.AllocateID(), Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10}
	require.NoError(t, doc.Upsert(e))

	vp := identityVP()
	_, err := f.BeginTransform([]docstore.EntityID{e.ID}, transform.Move, e.ID, 0, 10, 0, vp, 0)
	require.NoError(t, err)
	f.UpdateTransform(60, 0, vp, 0, snap.Options{}, fullViewport())
	res := f.CommitTransform()

	final := doc.EntityOrNil(e.ID)
	assert.Equal(t, float32(50), final.X)
	assert.Equal(t, float32(0), final.Y)
	assert.Equal(t, float32(10), final.W)
	assert.Equal(t, float32(10), final.H)

	require.Len(t, res.IDs, 1)
	assert.Equal(t, e.ID, res.IDs[0])
	assert.Equal(t, history.OpMove, res.OpCodes[0])
	assert.InDelta(t, float32(50), res.Payloads[0][0], 1e-4)
	assert.InDelta(t, float32(0), res.Payloads[0][1], 1e-4)
}

func TestScenarioSnapToEndpointDuringMove(t *testing.T) {
	f := New(nil, nil, nil)
	doc := f.Document()
	grid := f.Grid()
	moving := &docstore.Entity{ID: doc.AllocateID(), Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10}
	other := &docstore.Entity{ID: doc.AllocateID(), Kind: docstore.KindRect, Visible: true, X: 30, Y: 0, W: 10, H: 10}
	require.NoError(t, doc.Upsert(moving))
	require.NoError(t, doc.Upsert(other))
	grid.Insert(spatial.ID(other.ID), geom.AABB{MinX: 30, MinY: 0, MaxX: 40, MaxY: 10})

	vp := identityVP()
	opts := snap.Options{Enabled: true, EndpointEnabled: true, NearestEnabled: true, TolerancePx: 5}
	_, err := f.BeginTransform([]docstore.EntityID{moving.ID}, transform.Move, moving.ID, 0, 0, 0, vp, 0)
	require.NoError(t, err)
	f.UpdateTransform(19, 0, vp, 0, opts, fullViewport())

	final := doc.EntityOrNil(moving.ID)
	assert.Equal(t, float32(20), final.X, "expected the move to snap onto id2's left edge")

	guides := f.GetSnapGuides()
	require.Len(t, guides, 1)
	assert.Equal(t, float32(20), guides[0].X0)
	assert.Equal(t, float32(20), guides[0].X1)

	f.CommitTransform()
}

func TestScenarioGroupResizeScalesAboutAnchor(t *testing.T) {
	f := New(nil, nil, nil)
	doc := f.Document()
	a := &docstore.Entity{ID: doc.AllocateID(), Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10}
	b := &docstore.Entity{ID: doc.AllocateID(), Kind: docstore.KindRect, Visible: true, X: 20, Y: 0, W: 10, H: 10}
	require.NoError(t, doc.Upsert(a))
	require.NoError(t, doc.Upsert(b))

	vp := identityVP()
	_, err := f.BeginTransform([]docstore.EntityID{a.ID, b.ID}, transform.Resize, a.ID, transform.CornerTR, 30, -10, vp, 0)
	require.NoError(t, err)
	f.UpdateTransform(60, -20, vp, 0, snap.Options{}, fullViewport())
	f.CommitTransform()

	fa, fb := doc.EntityOrNil(a.ID), doc.EntityOrNil(b.ID)
	assert.InDelta(t, float32(0), fa.X, 1e-3)
	assert.InDelta(t, float32(0), fa.Y, 1e-3)
	assert.InDelta(t, float32(20), fa.W, 1e-3)
	assert.InDelta(t, float32(20), fa.H, 1e-3)
	assert.InDelta(t, float32(40), fb.X, 1e-3)
	assert.InDelta(t, float32(0), fb.Y, 1e-3)
	assert.InDelta(t, float32(20), fb.W, 1e-3)
	assert.InDelta(t, float32(20), fb.H, 1e-3)
}

func TestScenarioDraftPolylineShift45PreservesLengthAndSnapsAngle(t *testing.T) {
	f := New(nil, nil, nil)
	vp := identityVP()

	token := f.BeginDraft(draft.Payload{Kind: docstore.KindPolyline, Start: geom.Point2{X: 0, Y: 0}})
	require.NotEqual(t, token.String(), "00000000-0000-0000-0000-000000000000")
	f.AppendDraftPoint(10, 6, vp, modifier.Shift)

	id, ok := f.CommitDraft()
	require.True(t, ok)

	final := f.Document().EntityOrNil(id)
	pts := f.Document().PolylinePoints(final.PointOffset, final.PointCount)
	require.Len(t, pts, 2)

	v := pts[1].Sub(pts[0])
	assert.InDelta(t, absf(v.X), absf(v.Y), 1e-3, "expected the 45° Shift snap to equalize |dx| and |dy|")
	assert.InDelta(t, 11.6619, float64(v.Length()), 1e-3, "expected the Shift snap to keep the length of (10,6), sqrt(136)")
}

func TestBeginTransformRejectedWhileDraftActive(t *testing.T) {
	f := New(nil, nil, nil)
	doc := f.Document()
	e := &docstore.Entity{ID: doc.AllocateID(), Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10}
	require.NoError(t, doc.Upsert(e))

	f.BeginDraft(draft.Payload{Kind: docstore.KindRect, Start: geom.Point2{X: 0, Y: 0}})

	vp := identityVP()
	token, err := f.BeginTransform([]docstore.EntityID{e.ID}, transform.Move, e.ID, 0, 0, 0, vp, 0)
	require.NoError(t, err)
	assert.Equal(t, token.String(), "00000000-0000-0000-0000-000000000000")
	assert.False(t, f.transformMgr.Active())
}

func TestGenerationAdvancesOnlyWhenEntityMutated(t *testing.T) {
	f := New(nil, nil, nil)
	doc := f.Document()
	e := &docstore.Entity{ID: doc.AllocateID(), Kind: docstore.KindRect, Visible: true, X: 0, Y: 0, W: 10, H: 10}
	require.NoError(t, doc.Upsert(e))

	before := f.Generation()
	vp := identityVP()
	_, err := f.BeginTransform([]docstore.EntityID{e.ID}, transform.Move, e.ID, 0, 0, 0, vp, 0)
	require.NoError(t, err)
	f.UpdateTransform(10, 0, vp, 0, snap.Options{}, fullViewport())
	after := f.Generation()
	assert.Greater(t, after, before)
	f.CommitTransform()
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
