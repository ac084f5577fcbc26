// Package facade implements InteractionFacade (spec §4.8, C8): the single
// public entry point wiring every internal component together — pick,
// spatial index, snap, transform, draft, history, and overlay — behind the
// narrow verb set the front-end actually calls. Grounded on the teacher's
// iDesign ApplicationRoot/Manager convention (cmd/eisenkan's
// application_root.go wires every manager/engine together behind one
// struct) generalized from kanban board wiring to this document's
// collaborators.
package facade

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rknuus/cadcore/internal/docstore"
	"github.com/rknuus/cadcore/internal/draft"
	"github.com/rknuus/cadcore/internal/geom"
	"github.com/rknuus/cadcore/internal/history"
	"github.com/rknuus/cadcore/internal/modifier"
	"github.com/rknuus/cadcore/internal/overlay"
	"github.com/rknuus/cadcore/internal/pick"
	"github.com/rknuus/cadcore/internal/snap"
	"github.com/rknuus/cadcore/internal/spatial"
	"github.com/rknuus/cadcore/internal/transform"
	"github.com/rknuus/cadcore/internal/utilities"
)

// ViewParams re-exports transform.ViewParams so callers need only import
// the facade package.
type ViewParams = transform.ViewParams

// Mask re-exports modifier.Mask.
type Mask = modifier.Mask

const (
	Shift = modifier.Shift
	Ctrl  = modifier.Ctrl
	Alt   = modifier.Alt
	Meta  = modifier.Meta
)

// PickResult is pickEx's return value (spec §4.8).
type PickResult struct {
	Found     bool
	ID        docstore.EntityID
	SubTarget pick.SubTarget
	SubIndex  int32
	Distance  float32
}

// CommitResult mirrors the §6 op-code parallel arrays.
type CommitResult = transform.CommitResult

// Facade is InteractionFacade (C8).
type Facade struct {
	mu sync.Mutex

	doc  *docstore.Document
	grid *spatial.Grid
	hist *history.Manager

	pickResolver *pick.Resolver
	snapSolver   *snap.Solver
	transformMgr *transform.Manager
	draftMgr     *draft.Manager
	overlayGen   *overlay.Producer

	logger utilities.ILoggingUtility

	lastCommit         CommitResult
	lastTransformToken uuid.UUID
	lastDraftToken     uuid.UUID
}

// New wires every collaborator together over a fresh document. logger and
// sink may be nil (sink disables durable checkpointing).
func New(logger utilities.ILoggingUtility, sink history.CheckpointSink, text docstore.TextLayout) *Facade {
	doc := docstore.New(logger, text)
	grid := spatial.New(spatial.DefaultCellSize)
	hist := history.New(doc, logger, sink)

	f := &Facade{
		doc:          doc,
		grid:         grid,
		hist:         hist,
		pickResolver: pick.New(grid, doc, doc.TextLayout(), logger),
		snapSolver:   snap.New(grid, doc, doc.TextLayout()),
		draftMgr:     draft.New(doc, grid, logger),
		overlayGen:   overlay.New(doc, doc.TextLayout()),
		logger:       logger,
	}
	f.transformMgr = transform.New(doc, grid, hist, doc.TextLayout(), f.snapSolver, logger)
	return f
}

// Document exposes the underlying entity store so a caller can seed it
// (upsert entities, set layer visibility) before interacting.
func (f *Facade) Document() *docstore.Document { return f.doc }

// Grid exposes the spatial index so a caller can index entities it upserts
// directly (the facade never does this implicitly, per §6: "the index
// stays the facade's concern" — meaning the embedding application's, here
// this Facade's, caller).
func (f *Facade) Grid() *spatial.Grid { return f.grid }

// Generation returns the document's coherence token (spec §5).
func (f *Facade) Generation() uint64 { return f.doc.Generation() }

// Pick resolves the highest-priority hit at (x,y), or (0, false) (spec
// §4.8 pick).
func (f *Facade) Pick(x, y, tolerancePx, viewScale float32) (docstore.EntityID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := f.pickResolver.PickEx(x, y, tolerancePx, viewScale, pick.AllMask)
	return res.Candidate.ID, res.Found
}

// PickEx resolves a masked hit test (spec §4.8 pickEx).
func (f *Facade) PickEx(x, y, tolerancePx, viewScale float32, mask pick.Mask) PickResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := f.pickResolver.PickEx(x, y, tolerancePx, viewScale, mask)
	return PickResult{
		Found:     res.Found,
		ID:        res.Candidate.ID,
		SubTarget: res.Candidate.SubTarget,
		SubIndex:  res.Candidate.SubIndex,
		Distance:  res.Candidate.Distance,
	}
}

// QueryArea returns every entity overlapping box, sort-unique then ordered
// by zIndex desc, id asc (spec §4.8 queryArea).
func (f *Facade) QueryArea(box geom.AABB) []docstore.EntityID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pickResolver.QueryArea(box)
}

// BeginTransform starts a TransformSession (spec §4.8 beginTransform).
// Rejected as a no-op if a draft is active (mutual exclusion, spec §3).
func (f *Facade) BeginTransform(ids []docstore.EntityID, mode transform.Mode, specificID docstore.EntityID, subIndex int32, screenX, screenY float32, vp ViewParams, mods Mask) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draftMgr.Active() {
		return uuid.Nil, nil // NoOp: mutually exclusive with an active draft
	}
	var allocateDup func() docstore.EntityID
	if mods.Has(modifier.Alt) && mode == transform.Move {
		allocateDup = f.doc.AllocateID
	}
	if err := f.transformMgr.Begin(ids, mode, specificID, subIndex, screenX, screenY, vp, mods, allocateDup); err != nil {
		return uuid.Nil, fmt.Errorf("Facade.BeginTransform: %w", err)
	}
	if f.transformMgr.Active() {
		f.lastTransformToken = uuid.New()
	}
	return f.lastTransformToken, nil
}

// UpdateTransform streams one frame of the active session (spec §4.8
// updateTransform).
func (f *Facade) UpdateTransform(screenX, screenY float32, vp ViewParams, mods Mask, opts snap.Options, viewport geom.AABB) transform.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transformMgr.Update(screenX, screenY, vp, mods, opts, viewport)
}

// CommitTransform finalizes the session, clearing and overwriting the
// facade's result buffers (spec §4.8/§4.8 "cleared at the start of every
// commitTransform").
func (f *Facade) CommitTransform() CommitResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCommit = f.transformMgr.Commit()
	return f.lastCommit
}

// CancelTransform discards the active session (spec §4.8 cancelTransform).
func (f *Facade) CancelTransform() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transformMgr.Cancel()
}

// GetTransformState returns the read-only TransformState (spec §4.8).
func (f *Facade) GetTransformState() transform.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transformMgr.State()
}

// GetSnapGuides/GetSnapHits expose the last computed snap visualization
// (spec §4.8).
func (f *Facade) GetSnapGuides() []snap.Guide {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transformMgr.Guides()
}

func (f *Facade) GetSnapHits() []snap.Hit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transformMgr.Hits()
}

// GetCommitResult returns the parallel Ids/OpCodes/Payloads arrays from the
// last CommitTransform (spec §4.8 getCommitResult).
func (f *Facade) GetCommitResult() CommitResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCommit
}

// BeginDraft starts a DraftSession (spec §4.8 beginDraft). Rejected as a
// no-op if a transform is active.
func (f *Facade) BeginDraft(payload draft.Payload) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transformMgr.Active() {
		return uuid.Nil
	}
	f.draftMgr.BeginDraft(payload)
	if f.draftMgr.Active() {
		f.lastDraftToken = uuid.New()
	}
	return f.lastDraftToken
}

// UpdateDraft moves the draft cursor (spec §4.8 updateDraft).
func (f *Facade) UpdateDraft(screenX, screenY float32, vp ViewParams, mods Mask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draftMgr.UpdateDraft(screenX, screenY, vp, mods)
}

// AppendDraftPoint appends a polyline draft point (spec §4.8
// appendDraftPoint).
func (f *Facade) AppendDraftPoint(screenX, screenY float32, vp ViewParams, mods Mask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draftMgr.AppendDraftPoint(screenX, screenY, vp, mods)
}

// CommitDraft finalizes the draft into a real entity (spec §4.8
// commitDraft). The bool is false for a silently-dropped degenerate draft.
func (f *Facade) CommitDraft() (docstore.EntityID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draftMgr.CommitDraft(f.doc.AllocateID)
}

// CancelDraft discards the draft (spec §4.8 cancelDraft).
func (f *Facade) CancelDraft() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draftMgr.CancelDraft()
}

// GetDraftDimensions exposes the live draft's measurements (spec §4.6).
func (f *Facade) GetDraftDimensions() draft.Dimensions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draftMgr.GetDraftDimensions()
}

// SelectionOutline/SelectionHandles/SnapOverlay expose OverlayMeta (spec
// §4.7/§4.8 overlay getters). Callers should gate rebuilds on Generation()
// changing.
func (f *Facade) SelectionOutline(ids []docstore.EntityID) overlay.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlayGen.SelectionOutline(ids)
}

func (f *Facade) SelectionHandles(ids []docstore.EntityID) overlay.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlayGen.SelectionHandles(ids)
}

func (f *Facade) SnapOverlay() overlay.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return overlay.SnapOverlay(f.transformMgr.Guides(), f.transformMgr.Hits())
}

// Undo/Redo expose the history manager's supplemented verbs (spec.md's
// overview names "undo/redo"; see internal/history's DESIGN.md entry).
func (f *Facade) Undo() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hist.Undo()
}

func (f *Facade) Redo() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hist.Redo()
}
