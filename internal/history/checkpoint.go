package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rknuus/cadcore/internal/utilities"
)

// GitCheckpointStore writes each pushed Entry as a JSON file under
// <repo>/.cadcore/history and commits it, giving the in-memory ring a
// durable, diffable trail. Grounded on internal/utilities/
// versioning_utility.go's Repository (the teacher's git-backed persistence
// layer for board state), repurposed here for undo-entry checkpoints
// instead of kanban board snapshots.
type GitCheckpointStore struct {
	repo utilities.Repository
	dir  string
}

// NewGitCheckpointStore opens or initializes a git repository at path and
// returns a checkpoint sink backed by it.
func NewGitCheckpointStore(path string, author utilities.AuthorConfiguration) (*GitCheckpointStore, error) {
	repo, err := utilities.InitializeRepositoryWithConfig(path, &author)
	if err != nil {
		return nil, fmt.Errorf("GitCheckpointStore: %w", err)
	}
	dir := filepath.Join(path, ".cadcore", "history")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("GitCheckpointStore: %w", err)
	}
	return &GitCheckpointStore{repo: repo, dir: dir}, nil
}

// checkpointRecord is the JSON-on-disk shape of one Entry.
type checkpointRecord struct {
	Seq     uint64   `json:"seq"`
	Changed []uint32 `json:"changedIds"`
}

// WriteCheckpoint implements history.CheckpointSink.
func (g *GitCheckpointStore) WriteCheckpoint(e Entry) error {
	rec := checkpointRecord{Seq: e.Seq}
	for _, c := range e.Changes {
		rec.Changed = append(rec.Changed, uint32(c.ID))
	}
	blob, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("GitCheckpointStore.WriteCheckpoint: %w", err)
	}
	name := fmt.Sprintf("%08d.json", e.Seq)
	full := filepath.Join(g.dir, name)
	if err := os.WriteFile(full, blob, 0o644); err != nil {
		return fmt.Errorf("GitCheckpointStore.WriteCheckpoint: %w", err)
	}
	rel := filepath.Join(".cadcore", "history", name)
	if err := g.repo.Stage([]string{rel}); err != nil {
		return fmt.Errorf("GitCheckpointStore.WriteCheckpoint: %w", err)
	}
	if _, err := g.repo.Commit(fmt.Sprintf("checkpoint: history entry %d", e.Seq)); err != nil {
		return fmt.Errorf("GitCheckpointStore.WriteCheckpoint: %w", err)
	}
	return nil
}

// Repository exposes the underlying versioned repository, chiefly so
// callers/tests can inspect GetHistory() growth.
func (g *GitCheckpointStore) Repository() utilities.Repository { return g.repo }

// Close releases the underlying repository handle.
func (g *GitCheckpointStore) Close() error { return g.repo.Close() }
