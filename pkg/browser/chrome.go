package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sherpa-cli/internal/config"
)

// Chrome is the local chromedp-backed Driver. It owns a dedicated browser
// process whose lifetime matches the Chrome value.
type Chrome struct {
	log *zap.Logger
	cfg config.BrowserConfig

	allocCancel context.CancelFunc
	sessionCtx  context.Context
	sessCancel  context.CancelFunc
}

var _ Driver = (*Chrome)(nil)

// NewChrome launches a browser process and opens one session tab sized to
// the configured screen geometry.
func NewChrome(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Chrome, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.ScreenW, cfg.ScreenH),
	)
	for _, arg := range cfg.Args {
		name, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if found {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	sessionCtx, sessCancel := chromedp.NewContext(allocCtx)

	c := &Chrome{
		log:         logger.Named("chrome_driver"),
		cfg:         cfg,
		allocCancel: allocCancel,
		sessionCtx:  sessionCtx,
		sessCancel:  sessCancel,
	}

	// Start the browser eagerly so a broken Chrome install fails here, not
	// on the first action.
	if err := chromedp.Run(sessionCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	c.log.Info("Browser session started",
		zap.Bool("headless", cfg.Headless),
		zap.Int("screen_w", cfg.ScreenW),
		zap.Int("screen_h", cfg.ScreenH))
	return c, nil
}

// ScreenSize returns the configured viewport geometry.
func (c *Chrome) ScreenSize() (int, int) {
	return c.cfg.ScreenW, c.cfg.ScreenH
}

// Navigate loads the URL within the configured navigation timeout.
func (c *Chrome) Navigate(ctx context.Context, url string) (PageState, error) {
	timeout := c.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.run(navCtx, chromedp.Navigate(url)); err != nil {
		return PageState{}, fmt.Errorf("navigate to %s: %w", url, err)
	}
	return c.State(ctx)
}

// Click dispatches a raw mouse press/release pair at the given point.
func (c *Chrome) Click(ctx context.Context, x, y float64) (PageState, error) {
	press := input.DispatchMouseEvent(input.MousePressed, x, y).
		WithButton(input.Left).
		WithClickCount(1)
	release := input.DispatchMouseEvent(input.MouseReleased, x, y).
		WithButton(input.Left).
		WithClickCount(1)
	if err := c.run(ctx, press, release); err != nil {
		return PageState{}, fmt.Errorf("click at (%.0f, %.0f): %w", x, y, err)
	}
	return c.State(ctx)
}

// TypeText inserts text at the current focus without synthesizing per-key
// events.
func (c *Chrome) TypeText(ctx context.Context, text string) (PageState, error) {
	if err := c.run(ctx, input.InsertText(text)); err != nil {
		return PageState{}, fmt.Errorf("type text: %w", err)
	}
	return c.State(ctx)
}

// Scroll dispatches a mouse wheel event at the viewport center.
func (c *Chrome) Scroll(ctx context.Context, dx, dy float64) (PageState, error) {
	cx := float64(c.cfg.ScreenW) / 2
	cy := float64(c.cfg.ScreenH) / 2
	wheel := input.DispatchMouseEvent(input.MouseWheel, cx, cy).
		WithDeltaX(dx).
		WithDeltaY(dy)
	if err := c.run(ctx, wheel); err != nil {
		return PageState{}, fmt.Errorf("scroll by (%.0f, %.0f): %w", dx, dy, err)
	}
	return c.State(ctx)
}

// Key dispatches a named key such as "Enter" or "Escape".
func (c *Chrome) Key(ctx context.Context, code string) (PageState, error) {
	if err := c.run(ctx, chromedp.KeyEvent(keyChord(code))); err != nil {
		return PageState{}, fmt.Errorf("key %q: %w", code, err)
	}
	return c.State(ctx)
}

// Wait pauses without touching the page.
func (c *Chrome) Wait(ctx context.Context, d time.Duration) (PageState, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return PageState{}, ctx.Err()
	}
	return c.State(ctx)
}

// State captures the current URL and a viewport screenshot.
func (c *Chrome) State(ctx context.Context) (PageState, error) {
	var url string
	var shot []byte
	err := c.run(ctx, chromedp.Location(&url), chromedp.CaptureScreenshot(&shot))
	if err != nil {
		return PageState{}, fmt.Errorf("capture page state: %w", err)
	}
	return PageState{URL: url, Screenshot: shot}, nil
}

// Close tears down the tab and the browser process.
func (c *Chrome) Close() error {
	c.sessCancel()
	c.allocCancel()
	return nil
}

// run executes chromedp actions on the session, honoring the caller's
// context cancellation.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(c.sessionCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// keyChord maps DOM key codes to the raw sequences chromedp's keyboard layer
// understands. Unknown codes are sent through verbatim.
func keyChord(code string) string {
	switch code {
	case "Enter":
		return kb.Enter
	case "Tab":
		return kb.Tab
	case "Escape":
		return kb.Escape
	case "Backspace":
		return kb.Backspace
	case "Delete":
		return kb.Delete
	case "ArrowUp":
		return kb.ArrowUp
	case "ArrowDown":
		return kb.ArrowDown
	case "ArrowLeft":
		return kb.ArrowLeft
	case "ArrowRight":
		return kb.ArrowRight
	case "Home":
		return kb.Home
	case "End":
		return kb.End
	case "PageUp":
		return kb.PageUp
	case "PageDown":
		return kb.PageDown
	default:
		return code
	}
}
