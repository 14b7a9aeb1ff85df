// Package checkpoint persists run progress as a single JSON document,
// overwritten atomically on every save so a reader never observes a
// half-written state. One extraction driver process owns the file at a time.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/webtrawl/trawl/models"
)

// Store reads and writes CheckpointState at a fixed path.
type Store struct {
	path string
}

// NewStore creates a store for the given checkpoint file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the checkpoint file location.
func (s *Store) Path() string { return s.path }

// Load reads the persisted state. It returns (nil, nil) when no checkpoint
// exists (fresh run) and a CHECKPOINT_CORRUPT error when the file exists but
// cannot be parsed. Corruption is non-fatal to the caller: the output sink's
// row count remains the source of truth for the resume offset.
func (s *Store) Load() (*models.CheckpointState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewPipelineError(
			models.ErrCodeCheckpointCorrupt,
			"failed to read checkpoint file",
			err,
		)
	}

	var state models.CheckpointState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, models.NewPipelineError(
			models.ErrCodeCheckpointCorrupt,
			"failed to parse checkpoint file",
			err,
		)
	}
	if state.LastProcessedIndex < -1 {
		return nil, models.NewPipelineError(
			models.ErrCodeCheckpointCorrupt,
			fmt.Sprintf("checkpoint claims impossible index %d", state.LastProcessedIndex),
			nil,
		)
	}

	return &state, nil
}

// Save writes the state atomically: marshal to a temp file in the same
// directory, fsync, then rename over the previous checkpoint. The rename
// either lands completely or not at all, so a failed save leaves the
// previous checkpoint intact and readable.
func (s *Store) Save(state models.CheckpointState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return models.NewPipelineError(models.ErrCodeCheckpointSave, "failed to encode checkpoint", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return models.NewPipelineError(models.ErrCodeCheckpointSave, "failed to create temp checkpoint", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		if rmErr := os.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("failed to remove temp checkpoint", "path", tmpName, "error", rmErr)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return models.NewPipelineError(models.ErrCodeCheckpointSave, "failed to write temp checkpoint", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return models.NewPipelineError(models.ErrCodeCheckpointSave, "failed to sync temp checkpoint", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return models.NewPipelineError(models.ErrCodeCheckpointSave, "failed to close temp checkpoint", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return models.NewPipelineError(models.ErrCodeCheckpointSave, "failed to replace checkpoint", err)
	}
	return nil
}
