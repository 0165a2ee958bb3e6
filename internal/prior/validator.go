package prior

import (
	"fmt"
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
	"github.com/xkilldash9x/sherpa-cli/internal/config"
)

// State tracks the validator lifecycle. There is no transition back to
// StateUninitialized: once a checkpoint is loaded the validator always has
// one.
type State int32

const (
	StateUninitialized State = iota
	StateLoaded
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateLoaded:
		return "LOADED"
	case StateActive:
		return "ACTIVE"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Validator scores proposed actions against a loaded behavior prior and
// optionally adjusts or rejects them. An instance holds an immutable
// checkpoint reference; Score and Adjust are pure functions over it and are
// safe for concurrent use from any number of sessions. Reload swaps the
// reference atomically, so calls in flight complete against the checkpoint
// they captured.
type Validator struct {
	cfg config.PriorConfig
	log *zap.Logger

	checkpoint atomic.Pointer[schemas.Checkpoint]
	state      atomic.Int32
	// consecutive counts enforce-mode rejections since the last accepted
	// action, shared across sessions by design: the cap is a process-level
	// loop breaker.
	consecutive atomic.Int64
	mode        atomic.Value // config.PriorMode
}

// NewValidator constructs an uninitialized validator. Load must succeed
// before Score, Adjust, or Validate may be called.
func NewValidator(cfg config.PriorConfig, logger *zap.Logger) *Validator {
	v := &Validator{
		cfg: cfg,
		log: logger.Named("prior_validator"),
	}
	v.mode.Store(cfg.Mode)
	return v
}

// Load reads the checkpoint at path and moves the validator to StateLoaded.
// A version mismatch or corrupt file is fatal to the caller: an agent that
// explicitly requested a prior cannot safely proceed without one.
func (v *Validator) Load(path string) error {
	cp, err := LoadCheckpoint(path)
	if err != nil {
		return err
	}
	v.checkpoint.Store(cp)
	v.state.CompareAndSwap(int32(StateUninitialized), int32(StateLoaded))
	v.log.Info("Behavior prior loaded",
		zap.String("path", path),
		zap.Int("version", cp.Version),
		zap.Int("episodes", cp.EpisodeCount),
		zap.Int("steps", cp.StepCount))
	return nil
}

// Reload swaps in a new checkpoint atomically. Scoring already in flight
// completes against the previous checkpoint; there are no torn reads.
func (v *Validator) Reload(path string) error {
	if v.State() == StateUninitialized {
		return fmt.Errorf("cannot reload: validator has never loaded a checkpoint")
	}
	return v.Load(path)
}

// State returns the current lifecycle state.
func (v *Validator) State() State {
	return State(v.state.Load())
}

// Mode returns the current operating mode.
func (v *Validator) Mode() config.PriorMode {
	return v.mode.Load().(config.PriorMode)
}

// SetMode toggles between observe and enforce at runtime.
func (v *Validator) SetMode(m config.PriorMode) {
	v.mode.Store(m)
}

// Checkpoint returns the currently loaded checkpoint, or nil before Load.
func (v *Validator) Checkpoint() *schemas.Checkpoint {
	return v.checkpoint.Load()
}

// Score returns the prior probability of an action in [0,1]: the product of
// the action-type marginal, the spatial-cell probability (1.0 for actions
// without coordinates), and the transition probability given the previous
// action type (1.0 when there is no previous action). The product of
// marginals is an explicit independence approximation, not a joint density.
func (v *Validator) Score(action schemas.Action, prev *schemas.Action) float64 {
	cp := v.checkpoint.Load()
	if cp == nil {
		return 0
	}
	v.state.CompareAndSwap(int32(StateLoaded), int32(StateActive))
	return score(cp, action, prev)
}

func score(cp *schemas.Checkpoint, action schemas.Action, prev *schemas.Action) float64 {
	p := cp.ActionTypeProbs[action.Type]

	if x, y, ok := action.Coordinates(); ok {
		if grid, has := cp.SpatialGrid[action.Type]; has {
			r := cellIndex(Normalize(y, cp.ScreenH), cp.GridSize)
			c := cellIndex(Normalize(x, cp.ScreenW), cp.GridSize)
			p *= grid[r][c]
		}
	}

	if prev != nil {
		if row, has := cp.TransitionProbs[prev.Type]; has {
			p *= row[action.Type]
		}
	}

	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Adjust returns the action with implausible click coordinates snapped to
// the centroid of the best nearby cell. A click whose cell probability is at
// or above the threshold is returned unchanged, as is any action without
// coordinates. The replacement cell must itself exceed the threshold and its
// centroid must lie within MaxSnapDistancePx of the original point, which
// prevents large unintended jumps; if no such cell exists the original
// action is kept. The result never leaves the training screen bounds.
func (v *Validator) Adjust(action schemas.Action) schemas.Action {
	cp := v.checkpoint.Load()
	if cp == nil {
		return action
	}
	v.state.CompareAndSwap(int32(StateLoaded), int32(StateActive))

	x, y, ok := action.Coordinates()
	if !ok {
		return action
	}
	grid, has := cp.SpatialGrid[action.Type]
	if !has {
		return action
	}

	// Out-of-bounds proposals are pulled to the screen edge before anything
	// else; adjustment never emits a point outside the training geometry.
	cx := clamp(x, 0, float64(cp.ScreenW-1))
	cy := clamp(y, 0, float64(cp.ScreenH-1))
	if cx != x || cy != y {
		x, y = cx, cy
		action = action.WithCoordinates(x, y)
	}

	n := cp.GridSize
	r := cellIndex(Normalize(y, cp.ScreenH), n)
	c := cellIndex(Normalize(x, cp.ScreenW), n)
	if grid[r][c] >= v.cfg.CellThreshold {
		return action
	}

	bestProb := -1.0
	bestX, bestY := 0.0, 0.0
	maxDist := v.cfg.MaxSnapDistancePx

	for rr := 0; rr < n; rr++ {
		for cc := 0; cc < n; cc++ {
			p := grid[rr][cc]
			if p < v.cfg.CellThreshold {
				continue
			}
			cx := Denormalize((float64(cc)+0.5)/float64(n), cp.ScreenW)
			cy := Denormalize((float64(rr)+0.5)/float64(n), cp.ScreenH)
			if math.Hypot(cx-x, cy-y) > maxDist {
				continue
			}
			if p > bestProb {
				bestProb = p
				bestX, bestY = cx, cy
			}
		}
	}
	if bestProb < 0 {
		return action
	}

	bestX = clamp(bestX, 0, float64(cp.ScreenW-1))
	bestY = clamp(bestY, 0, float64(cp.ScreenH-1))
	v.log.Debug("Adjusted low-probability click",
		zap.Float64("from_x", x), zap.Float64("from_y", y),
		zap.Float64("to_x", bestX), zap.Float64("to_y", bestY),
		zap.Float64("cell_prob", bestProb))
	return action.WithCoordinates(bestX, bestY)
}

// Validate is the per-step entry point for the agent loop: it scores the
// proposed action, rejects it in enforce mode when the score is below the
// floor, and otherwise returns the (possibly adjusted) action to execute.
//
// A rejection is a recoverable signal (*RejectionError); the caller supplies
// a fallback or asks for an alternative. After MaxConsecutiveRejections
// rejections in a row the error becomes a fatal *RejectionLimitError.
func (v *Validator) Validate(action schemas.Action, prev *schemas.Action) (schemas.Action, error) {
	cp := v.checkpoint.Load()
	if cp == nil {
		return action, fmt.Errorf("validator is %s: no checkpoint loaded", v.State())
	}
	v.state.CompareAndSwap(int32(StateLoaded), int32(StateActive))

	s := score(cp, action, prev)

	if v.Mode() == config.ModeEnforce && s < v.cfg.ScoreFloor {
		n := v.consecutive.Add(1)
		if n > int64(v.cfg.MaxConsecutiveRejections) {
			return action, &RejectionLimitError{Limit: v.cfg.MaxConsecutiveRejections}
		}
		v.log.Warn("Action rejected by behavior prior",
			zap.String("action", string(action.Type)),
			zap.Float64("score", s),
			zap.Float64("floor", v.cfg.ScoreFloor),
			zap.Int64("consecutive", n))
		return action, &RejectionError{Action: action, Score: s, Floor: v.cfg.ScoreFloor, Consecutive: int(n)}
	}

	v.consecutive.Store(0)
	adjusted := v.Adjust(action)
	v.log.Debug("Action scored",
		zap.String("action", string(action.Type)),
		zap.Float64("score", s),
		zap.String("mode", string(v.Mode())))
	return adjusted, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
