// Package recorder collects interaction episodes by driving a browser with a
// safe-biased random policy and persisting each session to the episode store.
package recorder

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
	"github.com/xkilldash9x/sherpa-cli/internal/config"
	"github.com/xkilldash9x/sherpa-cli/internal/episodes"
	"github.com/xkilldash9x/sherpa-cli/pkg/browser"
)

// Recorder runs recording sessions against one browser driver.
type Recorder struct {
	cfg       config.RecorderConfig
	allowlist []string
	driver    browser.Driver
	writer    *episodes.Writer
	log       *zap.Logger
	rng       *rand.Rand
}

// New builds a recorder. The seed makes the action policy reproducible.
func New(cfg config.RecorderConfig, allowlist []string, driver browser.Driver, writer *episodes.Writer, logger *zap.Logger) *Recorder {
	return &Recorder{
		cfg:       cfg,
		allowlist: allowlist,
		driver:    driver,
		writer:    writer,
		log:       logger.Named("recorder"),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Run collects the configured number of episodes. A failure inside one
// episode truncates and finalizes it as incomplete; the remaining episodes
// still run.
func (r *Recorder) Run(ctx context.Context) error {
	for i := 0; i < r.cfg.Episodes; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, err := r.recordEpisode(ctx)
		if err != nil {
			return fmt.Errorf("episode %d/%d: %w", i+1, r.cfg.Episodes, err)
		}
		r.log.Info("Episode recorded",
			zap.String("episode", id),
			zap.Int("completed", i+1),
			zap.Int("total", r.cfg.Episodes))
	}
	return nil
}

// recordEpisode runs one session: navigate to the initial URL, then sample
// and execute actions until the step budget runs out.
func (r *Recorder) recordEpisode(ctx context.Context) (string, error) {
	w, h := r.driver.ScreenSize()
	ew, err := r.writer.Begin(r.cfg.InitialURL, w, h)
	if err != nil {
		return "", err
	}

	state, err := r.driver.Navigate(ctx, r.cfg.InitialURL)
	if err != nil {
		// Nothing observed yet; finalize the empty episode as incomplete so
		// the directory is not left dangling.
		if ferr := ew.Finalize(true); ferr != nil {
			r.log.Warn("Failed to finalize empty episode", zap.Error(ferr))
		}
		return ew.ID(), fmt.Errorf("initial navigation: %w", err)
	}

	incomplete := true
	for step := 0; step < r.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			break
		}

		var action schemas.Action
		if !schemas.HostAllowed(hostOf(state.URL), r.allowlist) {
			// Left the allowed domains; steer back instead of sampling.
			action = schemas.NewNavigate(r.cfg.InitialURL)
		} else {
			action = r.sampleAction(w, h)
		}

		if err := ew.AppendStep(action, state.Screenshot); err != nil {
			r.log.Warn("Failed to record step, truncating episode", zap.Error(err))
			break
		}

		next, err := browser.Execute(ctx, r.driver, action)
		if err != nil {
			// Keep the episode alive on execution errors, mirroring how
			// flaky pages behave in practice.
			r.log.Debug("Action execution failed, continuing", zap.String("action", string(action.Type)), zap.Error(err))
			next, err = r.driver.State(ctx)
			if err != nil {
				break
			}
		}
		state = next

		if step == r.cfg.MaxSteps-1 {
			incomplete = false
		}
	}

	if err := ew.Finalize(incomplete); err != nil {
		return ew.ID(), fmt.Errorf("finalizing episode: %w", err)
	}
	return ew.ID(), nil
}

// sampleAction draws from a safe-biased policy: mostly scrolls and clicks,
// occasional typing, keys, and waits. Click targets avoid the top edge where
// browser chrome lives.
func (r *Recorder) sampleAction(w, h int) schemas.Action {
	switch v := r.rng.Float64(); {
	case v < 0.35:
		dy := float64(200 + r.rng.Intn(600))
		if r.rng.Float64() < 0.25 {
			dy = -dy
		}
		return schemas.NewScroll(0, dy)
	case v < 0.70:
		x := float64(10 + r.rng.Intn(max(w-20, 1)))
		y := float64(80 + r.rng.Intn(max(h-90, 1)))
		return schemas.NewClick(x, y)
	case v < 0.80:
		return schemas.NewTypeText(searchTerms[r.rng.Intn(len(searchTerms))])
	case v < 0.88:
		return schemas.NewKey("Enter")
	default:
		return schemas.NewWait(500 + r.rng.Intn(1500))
	}
}

// searchTerms feed the occasional type action with harmless queries.
var searchTerms = []string{
	"weather today",
	"news",
	"open source licenses",
	"golang tutorial",
	"public holidays",
}

func hostOf(rawURL string) string {
	ep := schemas.Episode{InitialURL: rawURL}
	return ep.Host()
}
