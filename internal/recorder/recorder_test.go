package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
	"github.com/xkilldash9x/sherpa-cli/internal/config"
	"github.com/xkilldash9x/sherpa-cli/internal/episodes"
	"github.com/xkilldash9x/sherpa-cli/pkg/browser"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDriver is an in-memory browser: every action succeeds and returns the
// current fake page state.
type fakeDriver struct {
	url     string
	navErr  error
	actions []schemas.ActionType
}

func (d *fakeDriver) state() browser.PageState {
	return browser.PageState{URL: d.url, Screenshot: []byte("png")}
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) (browser.PageState, error) {
	d.actions = append(d.actions, schemas.ActionNavigate)
	if d.navErr != nil {
		return browser.PageState{}, d.navErr
	}
	d.url = url
	return d.state(), nil
}
func (d *fakeDriver) Click(ctx context.Context, x, y float64) (browser.PageState, error) {
	d.actions = append(d.actions, schemas.ActionClick)
	return d.state(), nil
}
func (d *fakeDriver) TypeText(ctx context.Context, text string) (browser.PageState, error) {
	d.actions = append(d.actions, schemas.ActionTypeText)
	return d.state(), nil
}
func (d *fakeDriver) Scroll(ctx context.Context, dx, dy float64) (browser.PageState, error) {
	d.actions = append(d.actions, schemas.ActionScroll)
	return d.state(), nil
}
func (d *fakeDriver) Key(ctx context.Context, code string) (browser.PageState, error) {
	d.actions = append(d.actions, schemas.ActionKey)
	return d.state(), nil
}
func (d *fakeDriver) Wait(ctx context.Context, dur time.Duration) (browser.PageState, error) {
	d.actions = append(d.actions, schemas.ActionWait)
	return d.state(), nil
}
func (d *fakeDriver) State(ctx context.Context) (browser.PageState, error) {
	return d.state(), nil
}
func (d *fakeDriver) ScreenSize() (int, int) { return 1440, 900 }
func (d *fakeDriver) Close() error           { return nil }

func recorderConfig() config.RecorderConfig {
	return config.RecorderConfig{
		Episodes:   2,
		MaxSteps:   6,
		InitialURL: "https://www.example.com",
		Seed:       42,
	}
}

func loadAll(t *testing.T, root string) []schemas.Episode {
	t.Helper()
	store := episodes.NewStore(root, zaptest.NewLogger(t))
	var out []schemas.Episode
	for ep := range store.Episodes() {
		out = append(out, ep)
	}
	return out
}

func TestRecorderRun(t *testing.T) {
	t.Run("records the configured number of episodes", func(t *testing.T) {
		root := t.TempDir()
		driver := &fakeDriver{}
		rec := New(recorderConfig(), nil, driver, episodes.NewWriter(root), zaptest.NewLogger(t))

		require.NoError(t, rec.Run(context.Background()))

		eps := loadAll(t, root)
		require.Len(t, eps, 2)
		for _, ep := range eps {
			assert.Len(t, ep.Steps, 6)
			assert.False(t, ep.Incomplete, "a full-budget episode is complete")
			assert.Equal(t, "https://www.example.com", ep.InitialURL)
			assert.Equal(t, 1440, ep.ScreenW)
			assert.Equal(t, 900, ep.ScreenH)
			for i, step := range ep.Steps {
				assert.Equal(t, i, step.Index)
				assert.NoError(t, step.Action.Validate())
			}
		}
	})

	t.Run("same seed replays the same action sequence", func(t *testing.T) {
		run := func() []schemas.ActionType {
			root := t.TempDir()
			driver := &fakeDriver{}
			rec := New(recorderConfig(), nil, driver, episodes.NewWriter(root), zaptest.NewLogger(t))
			require.NoError(t, rec.Run(context.Background()))

			var types []schemas.ActionType
			for _, ep := range loadAll(t, root) {
				for _, step := range ep.Steps {
					types = append(types, step.Action.Type)
				}
			}
			return types
		}
		assert.Equal(t, run(), run())
	})

	t.Run("navigation failure finalizes an incomplete episode", func(t *testing.T) {
		root := t.TempDir()
		driver := &fakeDriver{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
		rec := New(recorderConfig(), nil, driver, episodes.NewWriter(root), zaptest.NewLogger(t))

		err := rec.Run(context.Background())
		require.Error(t, err)

		eps := loadAll(t, root)
		require.Len(t, eps, 1)
		assert.True(t, eps[0].Incomplete)
		assert.Empty(t, eps[0].Steps)
	})

	t.Run("steers back when the page leaves the allowlist", func(t *testing.T) {
		cfg := recorderConfig()
		cfg.Episodes = 1

		// The initial URL's host is not in the allowlist, so every sampled
		// step is replaced with a steer-back navigation.
		driver := &fakeDriver{}
		rec := New(cfg, []string{"trusted.org"}, driver, episodes.NewWriter(t.TempDir()), zaptest.NewLogger(t))
		require.NoError(t, rec.Run(context.Background()))

		require.GreaterOrEqual(t, len(driver.actions), 2)
		for _, a := range driver.actions[1:] {
			assert.Equal(t, schemas.ActionNavigate, a)
		}
	})

	t.Run("honors context cancellation between episodes", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		rec := New(recorderConfig(), nil, &fakeDriver{}, episodes.NewWriter(t.TempDir()), zaptest.NewLogger(t))
		assert.ErrorIs(t, rec.Run(ctx), context.Canceled)
	})
}
