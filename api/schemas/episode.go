package schemas

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Step is one recorded transition inside an episode: the screenshot observed
// before the action, the action itself, and when it was taken.
type Step struct {
	// Index is strictly increasing from 0 within an episode.
	Index int `json:"index"`
	// Screenshot is the file name of the pre-action screenshot, relative to
	// the episode directory (e.g. "step_0.png").
	Screenshot string `json:"screenshot"`
	Action     Action `json:"action"`
	// Timestamp is Unix milliseconds.
	Timestamp float64 `json:"timestamp"`
}

// Episode is one recorded browser-agent session.
type Episode struct {
	// ID is the episode directory name. It is populated by the loader and
	// the recorder rather than read from episode.json.
	ID         string `json:"id,omitempty"`
	InitialURL string `json:"initial_url"`
	ScreenW    int    `json:"screen_w"`
	ScreenH    int    `json:"screen_h"`
	Steps      []Step `json:"steps"`
	// CreatedAt is recorder metadata; older episodes may omit it.
	CreatedAt time.Time `json:"created_at,omitzero"`
	// Incomplete marks a truncated episode. The recorder sets it when a
	// session ends before reaching a done action; such episodes are kept,
	// not discarded.
	Incomplete bool `json:"incomplete,omitempty"`
}

// Validate enforces the required fields and the step-index monotonicity
// invariant. Loaders treat a failure here as a per-episode schema error.
func (e *Episode) Validate() error {
	if e.InitialURL == "" {
		return fmt.Errorf("episode missing initial_url")
	}
	if e.ScreenW <= 0 || e.ScreenH <= 0 {
		return fmt.Errorf("episode has invalid screen geometry %dx%d", e.ScreenW, e.ScreenH)
	}
	prev := -1
	for i := range e.Steps {
		s := &e.Steps[i]
		if s.Index <= prev {
			return fmt.Errorf("step %d: index %d is not strictly increasing (previous %d)", i, s.Index, prev)
		}
		if i == 0 && s.Index != 0 {
			return fmt.Errorf("step indices must start at 0, got %d", s.Index)
		}
		if err := s.Action.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", s.Index, err)
		}
		prev = s.Index
	}
	return nil
}

// Host returns the lower-cased host of the episode's initial URL, or ""
// when it cannot be parsed.
func (e *Episode) Host() string {
	u, err := url.Parse(e.InitialURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// HostAllowed reports whether host matches the allowlist by exact match or
// dot-boundary suffix (allowing "example.com" to cover "www.example.com").
// An empty allowlist permits everything.
func HostAllowed(host string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, d := range allowlist {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
