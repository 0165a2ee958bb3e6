package episodes

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
)

// Writer creates new episodes in a store. One Writer may open any number of
// episodes; each EpisodeWriter belongs to a single recording session.
type Writer struct {
	root string
}

// NewWriter returns a writer rooted at the same data directory a Store reads
// from.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Begin allocates a fresh episode directory and returns the per-episode
// writer. The episode is not visible to loaders until Finalize writes
// episode.json.
func (w *Writer) Begin(initialURL string, screenW, screenH int) (*EpisodeWriter, error) {
	id := uuid.NewString()
	dir := filepath.Join(w.root, "episodes", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create episode directory: %w", err)
	}
	return &EpisodeWriter{
		dir: dir,
		episode: schemas.Episode{
			ID:         id,
			InitialURL: initialURL,
			ScreenW:    screenW,
			ScreenH:    screenH,
			CreatedAt:  time.Now().UTC(),
		},
	}, nil
}

// EpisodeWriter accumulates steps for one episode and finalizes it on disk.
type EpisodeWriter struct {
	dir       string
	episode   schemas.Episode
	finalized bool
}

// ID returns the episode identifier (the directory name).
func (ew *EpisodeWriter) ID() string { return ew.episode.ID }

// AppendStep saves the pre-action screenshot and queues the step record.
// Step indices are assigned sequentially from 0.
func (ew *EpisodeWriter) AppendStep(action schemas.Action, screenshot []byte) error {
	if ew.finalized {
		return fmt.Errorf("episode %s is already finalized", ew.episode.ID)
	}
	if err := action.Validate(); err != nil {
		return fmt.Errorf("refusing to record invalid action: %w", err)
	}

	idx := len(ew.episode.Steps)
	name := fmt.Sprintf("step_%d.png", idx)
	if err := os.WriteFile(filepath.Join(ew.dir, name), screenshot, 0o644); err != nil {
		return fmt.Errorf("failed to save screenshot for step %d: %w", idx, err)
	}

	ew.episode.Steps = append(ew.episode.Steps, schemas.Step{
		Index:      idx,
		Screenshot: name,
		Action:     action,
		Timestamp:  float64(time.Now().UnixMilli()),
	})
	return nil
}

// Finalize writes episode.json atomically (temp file + rename) and marks the
// writer closed. A truncated session passes incomplete=true; the episode is
// kept and flagged rather than silently discarded.
func (ew *EpisodeWriter) Finalize(incomplete bool) error {
	if ew.finalized {
		return fmt.Errorf("episode %s is already finalized", ew.episode.ID)
	}
	ew.episode.Incomplete = incomplete

	data, err := json.MarshalIndent(&ew.episode, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal episode: %w", err)
	}

	tmp, err := os.CreateTemp(ew.dir, ".episode-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp episode file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write episode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp episode file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(ew.dir, EpisodeFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish episode: %w", err)
	}
	ew.finalized = true
	return nil
}
