package schemas

import (
	"fmt"
)

// CheckpointVersion is the only checkpoint schema version this build reads
// and writes. Loaders reject any other version outright rather than guess at
// field meanings.
const CheckpointVersion = 1

// Checkpoint is a trained behavior prior: smoothed action-type marginals, a
// per-type spatial density grid, and a first-order transition table. It is
// written once by the trainer and treated as immutable by every reader.
type Checkpoint struct {
	Version int `json:"version"`
	ScreenW int `json:"screen_w"`
	ScreenH int `json:"screen_h"`
	// GridSize is the edge length N of each N x N spatial grid.
	GridSize int `json:"grid_size"`

	ActionTypeProbs map[ActionType]float64                `json:"action_type_probs"`
	SpatialGrid     map[ActionType][][]float64            `json:"spatial_grid"`
	TransitionProbs map[ActionType]map[ActionType]float64 `json:"transition_probs"`

	// Training-run metadata. Deliberately excludes wall-clock fields so that
	// identical episode sets always serialize to identical bytes.
	EpisodeCount int `json:"episode_count"`
	StepCount    int `json:"step_count"`
}

// Validate checks structural integrity: every action type present, grids of
// the declared size, and no zero or negative probability anywhere. A trained
// checkpoint always satisfies this because of add-one smoothing.
func (c *Checkpoint) Validate() error {
	if c.ScreenW <= 0 || c.ScreenH <= 0 {
		return fmt.Errorf("invalid screen geometry %dx%d", c.ScreenW, c.ScreenH)
	}
	if c.GridSize <= 0 {
		return fmt.Errorf("invalid grid size %d", c.GridSize)
	}
	for _, t := range ActionTypes {
		p, ok := c.ActionTypeProbs[t]
		if !ok {
			return fmt.Errorf("action_type_probs missing %q", t)
		}
		if p <= 0 || p > 1 {
			return fmt.Errorf("action_type_probs[%q] = %v out of (0,1]", t, p)
		}

		grid, ok := c.SpatialGrid[t]
		if !ok {
			return fmt.Errorf("spatial_grid missing %q", t)
		}
		if len(grid) != c.GridSize {
			return fmt.Errorf("spatial_grid[%q] has %d rows, want %d", t, len(grid), c.GridSize)
		}
		for r, row := range grid {
			if len(row) != c.GridSize {
				return fmt.Errorf("spatial_grid[%q] row %d has %d cells, want %d", t, r, len(row), c.GridSize)
			}
			for cidx, v := range row {
				if v <= 0 || v > 1 {
					return fmt.Errorf("spatial_grid[%q][%d][%d] = %v out of (0,1]", t, r, cidx, v)
				}
			}
		}

		row, ok := c.TransitionProbs[t]
		if !ok {
			return fmt.Errorf("transition_probs missing row %q", t)
		}
		for _, next := range ActionTypes {
			p, ok := row[next]
			if !ok {
				return fmt.Errorf("transition_probs[%q] missing %q", t, next)
			}
			if p <= 0 || p > 1 {
				return fmt.Errorf("transition_probs[%q][%q] = %v out of (0,1]", t, next, p)
			}
		}
	}
	return nil
}
