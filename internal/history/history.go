// Package history implements the History manager external collaborator of
// spec §6: transaction begin/commit, per-entity snapshot capture, and an
// append-only entry log, grounded on the teacher's resource-access layer
// pattern of a narrow interface over a mutex-protected struct
// (internal/utilities/versioning_utility.go's Repository) rather than an
// event-sourcing framework.
package history

import (
	"fmt"
	"sync"

	"github.com/rknuus/cadcore/internal/docstore"
	"github.com/rknuus/cadcore/internal/utilities"
)

// OpCode is a wire-level stable commit op-code (spec §6).
type OpCode uint16

const (
	OpMove OpCode = iota + 1
	OpVertexSet
	OpResize
	OpRotate
	OpSideResize
)

// Change captures one entity's pre/post snapshot within a transaction entry.
type Change struct {
	ID   docstore.EntityID
	Pre  docstore.Snapshot
	Post docstore.Snapshot
}

// Entry is one pushed history transaction: pre/post snapshots for every id
// that changed, sorted by id (spec §6 "sorted by id for determinism").
type Entry struct {
	Seq     uint64
	Changes []Change
}

// Manager is the History manager (consumed collaborator, spec §6):
// beginTransaction/commit, which batch several pushEntry calls into a single
// pushed entry, captureEntitySnapshot, and a suppression flag that makes
// Commit discard the pending entry instead of pushing it.
type Manager struct {
	mu sync.Mutex

	doc *docstore.Document

	entries []Entry
	nextSeq uint64

	txOpen    bool
	suppress  bool
	undoStack []Entry
	redoStack []Entry

	logger utilities.ILoggingUtility
	sink   CheckpointSink // optional, may be nil
}

// CheckpointSink receives a durable copy of every pushed entry. Implemented
// by GitCheckpointStore; nil means no durable trail is kept.
type CheckpointSink interface {
	WriteCheckpoint(entry Entry) error
}

// New creates a Manager bound to doc. sink may be nil.
func New(doc *docstore.Document, logger utilities.ILoggingUtility, sink CheckpointSink) *Manager {
	return &Manager{doc: doc, logger: logger, sink: sink}
}

// BeginTransaction opens a suppression window: subsequent pushEntry calls
// are buffered as Changes on one pending entry instead of each producing
// their own entry, until Commit. Nested calls are a no-op (NoOp taxonomy,
// spec §7) since the spec models sessions as opening at most one
// transaction at a time.
func (m *Manager) BeginTransaction() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txOpen {
		return
	}
	m.txOpen = true
	m.entries = append(m.entries, Entry{})
}

// CaptureEntitySnapshot delegates to the document's canonical snapshot
// factory (§9 Open Question 3: only Document.CaptureSnapshot produces
// snapshots, never a copy re-derived here).
func (m *Manager) CaptureEntitySnapshot(id docstore.EntityID) (docstore.Snapshot, bool) {
	return m.doc.CaptureSnapshot(id)
}

// PushEntry records pre/post snapshots for one id into the open transaction
// (or, if none is open, immediately commits a single-change entry).
func (m *Manager) PushEntry(id docstore.EntityID, pre, post docstore.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	change := Change{ID: id, Pre: pre, Post: post}
	if m.txOpen {
		last := &m.entries[len(m.entries)-1]
		last.Changes = append(last.Changes, change)
		return
	}
	m.finalizeLocked(Entry{Changes: []Change{change}})
}

// Commit finalizes the currently open transaction. If no changes were
// recorded, no entry is pushed (spec §5 "commit with no snapshots → no
// history push"). Returns an error only if a durable checkpoint sink is
// configured and rejects the write (HistoryFailure, spec §7); the mutation
// itself always stands regardless.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.txOpen {
		return nil
	}
	m.txOpen = false
	if len(m.entries) == 0 {
		return nil
	}
	pending := m.entries[len(m.entries)-1]
	m.entries = m.entries[:len(m.entries)-1]
	if len(pending.Changes) == 0 {
		return nil
	}
	return m.finalizeLocked(pending)
}

// Suppress toggles the suppression flag of spec §6 (a caller can suppress
// pushEntry side effects entirely, e.g. while replaying for testing).
func (m *Manager) Suppress(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppress = v
}

func (m *Manager) finalizeLocked(e Entry) error {
	if m.suppress {
		return nil
	}
	sortChangesByID(e.Changes)
	m.nextSeq++
	e.Seq = m.nextSeq
	m.entries = append(m.entries, e)
	m.undoStack = append(m.undoStack, e)
	m.redoStack = nil

	if m.logger != nil {
		m.logger.Log(utilities.Debug, "History", "pushEntry", map[string]interface{}{
			"seq":     e.Seq,
			"changed": len(e.Changes),
		})
	}
	if m.sink != nil {
		if err := m.sink.WriteCheckpoint(e); err != nil {
			if m.logger != nil {
				m.logger.LogError("History", err, map[string]interface{}{"seq": e.Seq})
			}
			return utilities.NewCoreError(utilities.KindHistoryFailure, "History", "checkpoint write failed", err)
		}
	}
	return nil
}

func sortChangesByID(changes []Change) {
	for i := 1; i < len(changes); i++ {
		for j := i; j > 0 && changes[j].ID < changes[j-1].ID; j-- {
			changes[j], changes[j-1] = changes[j-1], changes[j]
		}
	}
}

// Entries returns a copy of the pushed entry log, oldest first.
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Undo restores the most recently pushed entry's pre-snapshots and moves it
// to the redo stack. This supplements spec.md's overview ("undo/redo")
// which the distilled operation table never names explicitly; the
// mechanism it requires (pre/post snapshot entries) is fully specified,
// only the public verb is supplemented here.
func (m *Manager) Undo() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undoStack) == 0 {
		return false, nil
	}
	e := m.undoStack[len(m.undoStack)-1]
	m.undoStack = m.undoStack[:len(m.undoStack)-1]
	for i := len(e.Changes) - 1; i >= 0; i-- {
		if err := m.doc.RestoreSnapshot(e.Changes[i].Pre); err != nil {
			return false, fmt.Errorf("History.Undo: %w", err)
		}
	}
	m.redoStack = append(m.redoStack, e)
	return true, nil
}

// Redo re-applies the most recently undone entry's post-snapshots.
func (m *Manager) Redo() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redoStack) == 0 {
		return false, nil
	}
	e := m.redoStack[len(m.redoStack)-1]
	m.redoStack = m.redoStack[:len(m.redoStack)-1]
	for _, c := range e.Changes {
		if err := m.doc.RestoreSnapshot(c.Post); err != nil {
			return false, fmt.Errorf("History.Redo: %w", err)
		}
	}
	m.undoStack = append(m.undoStack, e)
	return true, nil
}
