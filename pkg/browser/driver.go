// Package browser provides the driver abstraction the recorder and the agent
// loop execute actions through, plus a chromedp-backed local implementation.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
)

// PageState is the observation returned after every executed action: the
// current URL and a PNG screenshot of the viewport.
type PageState struct {
	URL        string
	Screenshot []byte
}

// Driver executes browser actions. Implementations own one browser session;
// calls are not required to be concurrency-safe because an agent session is
// single-threaded.
type Driver interface {
	// Navigate loads a URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) (PageState, error)
	// Click dispatches a left click at absolute viewport coordinates.
	Click(ctx context.Context, x, y float64) (PageState, error)
	// TypeText inserts text at the current focus.
	TypeText(ctx context.Context, text string) (PageState, error)
	// Scroll dispatches a mouse wheel event with the given pixel deltas.
	Scroll(ctx context.Context, dx, dy float64) (PageState, error)
	// Key dispatches a key press identified by its DOM code, e.g. "Enter".
	Key(ctx context.Context, code string) (PageState, error)
	// Wait pauses for the given duration, returning early if ctx is done.
	Wait(ctx context.Context, d time.Duration) (PageState, error)
	// State captures the current page state without acting.
	State(ctx context.Context) (PageState, error)
	// ScreenSize returns the viewport geometry in pixels.
	ScreenSize() (w, h int)
	// Close tears the session down.
	Close() error
}

// Execute dispatches one schema action to a driver. A done action only
// captures the current state.
func Execute(ctx context.Context, d Driver, a schemas.Action) (PageState, error) {
	switch p := a.Params.(type) {
	case schemas.ClickParams:
		return d.Click(ctx, p.X, p.Y)
	case schemas.TypeTextParams:
		return d.TypeText(ctx, p.Text)
	case schemas.ScrollParams:
		return d.Scroll(ctx, p.DX, p.DY)
	case schemas.KeyParams:
		return d.Key(ctx, p.Code)
	case schemas.WaitParams:
		return d.Wait(ctx, time.Duration(p.Ms)*time.Millisecond)
	case schemas.NavigateParams:
		return d.Navigate(ctx, p.URL)
	case schemas.DoneParams:
		return d.State(ctx)
	default:
		return PageState{}, fmt.Errorf("unsupported action type %q", a.Type)
	}
}
