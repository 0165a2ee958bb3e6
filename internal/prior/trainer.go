package prior

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
)

// TrainOptions tunes a training run.
type TrainOptions struct {
	// GridSize is the edge length N of the spatial density grids.
	GridSize int
	// Workers is the number of parallel aggregation goroutines. Training is
	// deterministic for any worker count because partial aggregates are
	// merged by pure summation.
	Workers int
}

// aggregate holds raw observation counts. All slices are indexed by the
// canonical position of an action type in schemas.ActionTypes, which keeps
// merging and normalization independent of processing order.
type aggregate struct {
	actionCounts []int64
	// grid[t] is a flattened n*n cell count for action type t.
	grid [][]int64
	// trans[prev][next] counts observed (prev, next) pairs.
	trans [][]int64

	episodes int64
	steps    int64
}

func newAggregate(n int) *aggregate {
	k := len(schemas.ActionTypes)
	a := &aggregate{
		actionCounts: make([]int64, k),
		grid:         make([][]int64, k),
		trans:        make([][]int64, k),
	}
	for i := range a.grid {
		a.grid[i] = make([]int64, n*n)
		a.trans[i] = make([]int64, k)
	}
	return a
}

// merge adds other into a. Summation is commutative, so the merged result is
// the same regardless of which worker processed which episode.
func (a *aggregate) merge(other *aggregate) {
	for i := range a.actionCounts {
		a.actionCounts[i] += other.actionCounts[i]
		for j := range a.grid[i] {
			a.grid[i][j] += other.grid[i][j]
		}
		for j := range a.trans[i] {
			a.trans[i][j] += other.trans[i][j]
		}
	}
	a.episodes += other.episodes
	a.steps += other.steps
}

// observe folds one episode into the aggregate.
func (a *aggregate) observe(ep schemas.Episode, screenW, screenH, gridSize int) {
	a.episodes++
	host := ep.Host()
	prev := schemas.ActionType("")
	for _, step := range ep.Steps {
		fv := Extract(step, screenW, screenH, len(ep.Steps), host, prev)

		ti, ok := typeIndex(fv.Type)
		if !ok {
			// Parse-time validation makes this unreachable for loaded
			// episodes; skip defensively for hand-built ones.
			continue
		}
		a.steps++
		a.actionCounts[ti]++

		if fv.HasCoords {
			cell := cellIndex(fv.Y, gridSize)*gridSize + cellIndex(fv.X, gridSize)
			a.grid[ti][cell]++
		}
		if pi, ok := typeIndex(fv.PrevType); ok {
			a.trans[pi][ti]++
		}
		prev = fv.Type
	}
}

func typeIndex(t schemas.ActionType) (int, bool) {
	for i, at := range schemas.ActionTypes {
		if at == t {
			return i, true
		}
	}
	return 0, false
}

// Train performs a single streaming pass over the episodes and produces a
// smoothed checkpoint. Memory is O(1) per aggregation bucket regardless of
// dataset size. An empty episode sequence is not an error: smoothing alone
// yields a uniform checkpoint, which degrades the validator to a no-op.
//
// Training is deterministic: the same episode set produces a bit-identical
// checkpoint for any worker count and any episode ordering.
func Train(ctx context.Context, episodes iter.Seq[schemas.Episode], screenW, screenH int, opts TrainOptions, logger *zap.Logger) (*schemas.Checkpoint, error) {
	if screenW <= 0 || screenH <= 0 {
		return nil, fmt.Errorf("screen geometry must be positive, got %dx%d", screenW, screenH)
	}
	n := opts.GridSize
	if n <= 0 {
		n = 8
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	log := logger.Named("trainer")

	total := newAggregate(n)

	if workers == 1 {
		for ep := range episodes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			total.observe(ep, screenW, screenH, n)
		}
	} else {
		partials := make([]*aggregate, workers)
		feed := make(chan schemas.Episode)

		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < workers; w++ {
			part := newAggregate(n)
			partials[w] = part
			g.Go(func() error {
				for ep := range feed {
					part.observe(ep, screenW, screenH, n)
				}
				return nil
			})
		}
		g.Go(func() error {
			defer close(feed)
			for ep := range episodes {
				select {
				case feed <- ep:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, part := range partials {
			total.merge(part)
		}
	}

	cp := normalize(total, screenW, screenH, n)
	log.Info("Training pass complete",
		zap.Int64("episodes", total.episodes),
		zap.Int64("steps", total.steps),
		zap.Int("grid_size", n),
		zap.Int("workers", workers))
	return cp, nil
}

// normalize converts raw counts into smoothed probabilities. Add-one
// (Laplace) smoothing guarantees every action type, grid cell, and
// transition entry has nonzero probability even with zero raw observations.
func normalize(a *aggregate, screenW, screenH, n int) *schemas.Checkpoint {
	k := len(schemas.ActionTypes)
	cells := n * n

	cp := &schemas.Checkpoint{
		Version:         schemas.CheckpointVersion,
		ScreenW:         screenW,
		ScreenH:         screenH,
		GridSize:        n,
		ActionTypeProbs: make(map[schemas.ActionType]float64, k),
		SpatialGrid:     make(map[schemas.ActionType][][]float64, k),
		TransitionProbs: make(map[schemas.ActionType]map[schemas.ActionType]float64, k),
		EpisodeCount:    int(a.episodes),
		StepCount:       int(a.steps),
	}

	var totalActions int64
	for _, c := range a.actionCounts {
		totalActions += c
	}

	for i, t := range schemas.ActionTypes {
		cp.ActionTypeProbs[t] = float64(a.actionCounts[i]+1) / float64(totalActions+int64(k))

		var gridTotal int64
		for _, c := range a.grid[i] {
			gridTotal += c
		}
		grid := make([][]float64, n)
		for r := 0; r < n; r++ {
			row := make([]float64, n)
			for c := 0; c < n; c++ {
				row[c] = float64(a.grid[i][r*n+c]+1) / float64(gridTotal+int64(cells))
			}
			grid[r] = row
		}
		cp.SpatialGrid[t] = grid

		var rowTotal int64
		for _, c := range a.trans[i] {
			rowTotal += c
		}
		row := make(map[schemas.ActionType]float64, k)
		for j, next := range schemas.ActionTypes {
			row[next] = float64(a.trans[i][j]+1) / float64(rowTotal+int64(k))
		}
		cp.TransitionProbs[t] = row
	}

	return cp
}
