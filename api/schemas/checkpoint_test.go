package schemas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
)

func validCheckpoint() *schemas.Checkpoint {
	cp := &schemas.Checkpoint{
		Version:         schemas.CheckpointVersion,
		ScreenW:         1440,
		ScreenH:         900,
		GridSize:        2,
		ActionTypeProbs: map[schemas.ActionType]float64{},
		SpatialGrid:     map[schemas.ActionType][][]float64{},
		TransitionProbs: map[schemas.ActionType]map[schemas.ActionType]float64{},
	}
	for _, t := range schemas.ActionTypes {
		cp.ActionTypeProbs[t] = 1.0 / 7.0
		cp.SpatialGrid[t] = [][]float64{{0.25, 0.25}, {0.25, 0.25}}
		row := map[schemas.ActionType]float64{}
		for _, next := range schemas.ActionTypes {
			row[next] = 1.0 / 7.0
		}
		cp.TransitionProbs[t] = row
	}
	return cp
}

func TestCheckpointValidate(t *testing.T) {
	t.Run("well-formed checkpoint", func(t *testing.T) {
		assert.NoError(t, validCheckpoint().Validate())
	})

	t.Run("rejects bad geometry", func(t *testing.T) {
		cp := validCheckpoint()
		cp.ScreenW = 0
		assert.Error(t, cp.Validate())
	})

	t.Run("rejects a missing action type", func(t *testing.T) {
		cp := validCheckpoint()
		delete(cp.ActionTypeProbs, schemas.ActionWait)
		assert.Error(t, cp.Validate())
	})

	t.Run("rejects zero probabilities", func(t *testing.T) {
		cp := validCheckpoint()
		cp.ActionTypeProbs[schemas.ActionClick] = 0
		assert.Error(t, cp.Validate())
	})

	t.Run("rejects a misshapen grid", func(t *testing.T) {
		cp := validCheckpoint()
		cp.SpatialGrid[schemas.ActionScroll] = [][]float64{{0.5, 0.5}}
		assert.Error(t, cp.Validate())

		cp = validCheckpoint()
		cp.SpatialGrid[schemas.ActionScroll] = [][]float64{{0.5, 0.5}, {0.5}}
		assert.Error(t, cp.Validate())
	})

	t.Run("rejects an incomplete transition row", func(t *testing.T) {
		cp := validCheckpoint()
		delete(cp.TransitionProbs[schemas.ActionKey], schemas.ActionDone)
		assert.Error(t, cp.Validate())
	})
}
