package prior

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
)

// SaveCheckpoint writes a checkpoint atomically: the JSON is written to a
// temp file in the destination directory and renamed into place, so readers
// never observe a partially written checkpoint.
func SaveCheckpoint(path string, cp *schemas.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid checkpoint: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp checkpoint file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads and validates a checkpoint. The version is checked
// before the rest of the content is interpreted so that an incompatible file
// fails with a CheckpointVersionError instead of a misleading schema error.
func LoadCheckpoint(path string) (*schemas.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}

	var probe struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &SchemaError{Path: path, Err: err}
	}
	if probe.Version == nil {
		return nil, &SchemaError{Path: path, Err: fmt.Errorf("missing version field")}
	}
	if *probe.Version != schemas.CheckpointVersion {
		return nil, &CheckpointVersionError{Path: path, Got: *probe.Version, Want: schemas.CheckpointVersion}
	}

	var cp schemas.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, &SchemaError{Path: path, Err: err}
	}
	if err := cp.Validate(); err != nil {
		return nil, &SchemaError{Path: path, Err: err}
	}
	return &cp, nil
}
