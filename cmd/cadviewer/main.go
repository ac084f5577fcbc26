// Command cadviewer is an optional debug viewer exercising the
// InteractionFacade end to end: it seeds a small demo document, renders it
// with Fyne, and maps mouse gestures to pick/transform calls so the core
// can be driven interactively outside of a real front-end. Grounded on the
// deleted client/ui/application_root.go's ApplicationRoot (one fyne.App +
// fyne.Window wired to the domain layer) and board_view.go's
// custom-widget-plus-renderer convention, generalized from kanban board
// rendering to world-space entity rendering.
package main

import (
	"image/color"
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/rknuus/cadcore/facade"
	"github.com/rknuus/cadcore/internal/aabbkit"
	"github.com/rknuus/cadcore/internal/docstore"
	"github.com/rknuus/cadcore/internal/draft"
	"github.com/rknuus/cadcore/internal/geom"
	"github.com/rknuus/cadcore/internal/modifier"
	"github.com/rknuus/cadcore/internal/snap"
	"github.com/rknuus/cadcore/internal/spatial"
	"github.com/rknuus/cadcore/internal/transform"
	"github.com/rknuus/cadcore/internal/utilities"
)

func main() {
	logger := utilities.NewLoggingUtility()
	f := facade.New(logger, nil, nil)
	seedDemoDocument(f)

	a := app.New()
	w := a.NewWindow("cadcore viewer")

	board := newBoardCanvas(f)
	w.SetContent(board)
	w.Resize(fyne.NewSize(800, 600))
	w.ShowAndRun()
}

// seedDemoDocument upserts one Rect, Circle, Polygon and Line entity so the
// viewer has something to pick/drag immediately.
func seedDemoDocument(f *facade.Facade) {
	doc := f.Document()
	grid := f.Grid()

	entities := []*docstore.Entity{
		{ID: doc.AllocateID(), Kind: docstore.KindRect, Visible: true, ZIndex: 1, X: -150, Y: -50, W: 100, H: 60, StrokeWidthPx: 2},
		{ID: doc.AllocateID(), Kind: docstore.KindCircle, Visible: true, ZIndex: 2, CenterX: 50, CenterY: 30, RX: 40, RY: 25, RotationDeg: 20, StrokeWidthPx: 2},
		{ID: doc.AllocateID(), Kind: docstore.KindPolygon, Visible: true, ZIndex: 3, CenterX: 150, CenterY: -60, RX: 35, RY: 35, Sides: 6, StrokeWidthPx: 2},
		{ID: doc.AllocateID(), Kind: docstore.KindLine, Visible: true, ZIndex: 4, P0: geom.Point2{X: -180, Y: 100}, P1: geom.Point2{X: -60, Y: 160}, StrokeWidthPx: 2},
	}
	for _, e := range entities {
		_ = doc.Upsert(e)
		grid.Insert(spatial.ID(e.ID), aabbkit.Compute(e, doc.TextLayout()))
	}
}

// boardCanvas is a minimal custom widget rendering the document and
// forwarding mouse gestures to the facade.
type boardCanvas struct {
	widget.BaseWidget

	facadeRef *facade.Facade
	dragging  bool
	viewScale float32
}

func newBoardCanvas(f *facade.Facade) *boardCanvas {
	b := &boardCanvas{facadeRef: f, viewScale: 1}
	b.ExtendBaseWidget(b)
	return b
}

func (b *boardCanvas) CreateRenderer() fyne.WidgetRenderer {
	r := &boardRenderer{board: b}
	r.Refresh()
	return r
}

// boardRenderer rebuilds a flat list of canvas.Line objects from the
// facade's SelectionOutline buffer every Refresh.
type boardRenderer struct {
	board   *boardCanvas
	objects []fyne.CanvasObject
}

func (r *boardRenderer) Destroy()                     {}
func (r *boardRenderer) Layout(fyne.Size)              { r.Refresh() }
func (r *boardRenderer) MinSize() fyne.Size            { return fyne.NewSize(400, 300) }
func (r *boardRenderer) Objects() []fyne.CanvasObject  { return r.objects }
func (r *boardRenderer) BackgroundColor() color.Color  { return color.Black }

func (r *boardRenderer) Refresh() {
	b := r.board
	doc := b.facadeRef.Document()
	ids := doc.DrawOrder()
	outline := b.facadeRef.SelectionOutline(ids)

	var objs []fyne.CanvasObject
	for _, prim := range outline.Primitives {
		pts := b.floatsToScreen(outline.Floats, prim.Offset, prim.Count)
		switch prim.Kind {
		case 0: // Polygon: closed loop
			for i := range pts {
				j := (i + 1) % len(pts)
				objs = append(objs, lineBetween(pts[i], pts[j]))
			}
		case 1: // Segment: open chain
			for i := 0; i+1 < len(pts); i++ {
				objs = append(objs, lineBetween(pts[i], pts[i+1]))
			}
		}
	}
	r.objects = objs
}

type screenPt struct{ X, Y float32 }

func (b *boardCanvas) floatsToScreen(floats []float32, offset, count uint32) []screenPt {
	out := make([]screenPt, 0, count)
	size := b.Size()
	cx, cy := size.Width/2, size.Height/2
	for i := uint32(0); i < count; i++ {
		wx := floats[offset+i*2]
		wy := floats[offset+i*2+1]
		out = append(out, screenPt{X: cx + wx*b.viewScale, Y: cy - wy*b.viewScale})
	}
	return out
}

func lineBetween(a, b screenPt) *canvas.Line {
	l := canvas.NewLine(color.White)
	l.Position1 = fyne.NewPos(a.X, a.Y)
	l.Position2 = fyne.NewPos(b.X, b.Y)
	l.StrokeWidth = 2
	return l
}

// MouseDown begins either a transform (on a hit entity) or a rect draft
// (on empty space), exercising both TransformSession and DraftSession.
func (b *boardCanvas) MouseDown(ev *desktop.MouseEvent) {
	vp := b.viewParams()
	id, found := b.facadeRef.Pick(b.worldX(ev.Position), b.worldY(ev.Position), 6, b.viewScale)
	if found {
		b.dragging = true
		_, _ = b.facadeRef.BeginTransform([]docstore.EntityID{id}, transform.Move, id, 0, ev.Position.X, ev.Position.Y, vp, modMask(ev.Modifier))
		return
	}
	b.facadeRef.BeginDraft(draft.Payload{
		Kind:          docstore.KindRect,
		Start:         geom.Point2{X: b.worldX(ev.Position), Y: b.worldY(ev.Position)},
		StrokeWidthPx: 2,
	})
}

func (b *boardCanvas) MouseUp(ev *desktop.MouseEvent) {
	defer b.Refresh()
	if b.dragging {
		res := b.facadeRef.CommitTransform()
		log.Printf("committed %d changes", len(res.IDs))
		b.dragging = false
		return
	}
	if id, ok := b.facadeRef.CommitDraft(); ok {
		log.Printf("drafted entity %d", id)
	}
}

func (b *boardCanvas) Dragged(ev *fyne.DragEvent) {
	vp := b.viewParams()
	opts := snap.Options{Enabled: true, EndpointEnabled: true, NearestEnabled: true, TolerancePx: 6}
	viewport := geom.AABB{MinX: -2000, MinY: -2000, MaxX: 2000, MaxY: 2000}
	if b.dragging {
		b.facadeRef.UpdateTransform(ev.Position.X, ev.Position.Y, vp, 0, opts, viewport)
	} else {
		b.facadeRef.UpdateDraft(ev.Position.X, ev.Position.Y, vp, 0)
	}
	b.Refresh()
}

func (b *boardCanvas) DragEnd() {}

func modMask(mod fyne.KeyModifier) modifier.Mask {
	var m modifier.Mask
	if mod&fyne.KeyModifierShift != 0 {
		m |= modifier.Shift
	}
	if mod&fyne.KeyModifierControl != 0 {
		m |= modifier.Ctrl
	}
	if mod&fyne.KeyModifierAlt != 0 {
		m |= modifier.Alt
	}
	return m
}

func (b *boardCanvas) viewParams() transform.ViewParams {
	size := b.Size()
	return transform.ViewParams{
		ViewX: size.Width / 2, ViewY: size.Height / 2,
		ViewScale: b.viewScale, ViewWidth: size.Width, ViewHeight: size.Height,
	}
}

func (b *boardCanvas) worldX(pos fyne.Position) float32 {
	return (pos.X - b.Size().Width/2) / b.viewScale
}

func (b *boardCanvas) worldY(pos fyne.Position) float32 {
	return -(pos.Y - b.Size().Height/2) / b.viewScale
}
