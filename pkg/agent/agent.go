// Package agent runs the model-driven browser session loop. Every proposed
// action passes through the behavior-prior validator before it executes.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
	"github.com/xkilldash9x/sherpa-cli/internal/config"
	"github.com/xkilldash9x/sherpa-cli/internal/episodes"
	"github.com/xkilldash9x/sherpa-cli/internal/prior"
	"github.com/xkilldash9x/sherpa-cli/pkg/browser"
)

// Session drives one browser session toward an objective. It is
// single-threaded: one session per driver.
type Session struct {
	id        string
	cfg       config.AgentConfig
	mind      Mind
	driver    browser.Driver
	validator *prior.Validator
	// writer is optional; when set, the session is persisted as an episode
	// so it can feed later training runs.
	writer *episodes.Writer
	log    *zap.Logger
}

// Result summarizes a finished session.
type Result struct {
	SessionID string
	Steps     int
	// Completed is true when the mind emitted done before the step budget
	// ran out.
	Completed bool
	EpisodeID string
}

// NewSession wires a session. validator is required: a session explicitly
// constructed with a prior must not run without one. writer may be nil.
func NewSession(cfg config.AgentConfig, mind Mind, driver browser.Driver, validator *prior.Validator, writer *episodes.Writer, logger *zap.Logger) (*Session, error) {
	if validator == nil {
		return nil, fmt.Errorf("session requires a loaded validator")
	}
	if validator.State() == prior.StateUninitialized {
		return nil, fmt.Errorf("validator has no checkpoint loaded")
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		cfg:       cfg,
		mind:      mind,
		driver:    driver,
		validator: validator,
		writer:    writer,
		log:       logger.Named("agent").With(zap.String("session", id)),
	}, nil
}

// Run executes the session loop: observe, ask the mind for an action, vet it
// against the prior, execute, repeat. A rejection is recoverable — the mind
// is asked for an alternative with the rejection as feedback — until the
// validator's consecutive-rejection cap escalates to a fatal error.
func (s *Session) Run(ctx context.Context, objective, startURL string) (Result, error) {
	res := Result{SessionID: s.id}

	state, err := s.driver.Navigate(ctx, startURL)
	if err != nil {
		return res, fmt.Errorf("initial navigation to %s: %w", startURL, err)
	}

	var ew *episodes.EpisodeWriter
	if s.writer != nil {
		w, h := s.driver.ScreenSize()
		ew, err = s.writer.Begin(startURL, w, h)
		if err != nil {
			return res, fmt.Errorf("opening episode: %w", err)
		}
		res.EpisodeID = ew.ID()
	}
	finish := func(completed bool) {
		if ew == nil {
			return
		}
		if err := ew.Finalize(!completed); err != nil {
			s.log.Warn("Failed to finalize session episode", zap.Error(err))
		}
	}

	var prev *schemas.Action
	for step := 0; step < s.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			finish(false)
			return res, err
		}

		action, err := s.nextAction(ctx, objective, Observation{
			URL:       state.URL,
			StepIndex: step,
			MaxSteps:  s.cfg.MaxSteps,
		}, prev)
		if err != nil {
			finish(false)
			return res, err
		}

		if ew != nil {
			if err := ew.AppendStep(action, state.Screenshot); err != nil {
				s.log.Warn("Failed to record step", zap.Error(err))
			}
		}

		res.Steps = step + 1
		if action.Type == schemas.ActionDone {
			s.log.Info("Objective reported complete", zap.Int("steps", res.Steps))
			res.Completed = true
			finish(true)
			return res, nil
		}

		state, err = browser.Execute(ctx, s.driver, action)
		if err != nil {
			finish(false)
			return res, fmt.Errorf("executing %s at step %d: %w", action.Type, step, err)
		}
		a := action
		prev = &a
	}

	s.log.Info("Step budget exhausted", zap.Int("steps", res.Steps))
	finish(false)
	return res, nil
}

// nextAction asks the mind for a proposal and vets it against the prior,
// feeding rejections back as requests for an alternative. An unparseable
// model reply degrades to a short wait rather than killing the session.
func (s *Session) nextAction(ctx context.Context, objective string, obs Observation, prev *schemas.Action) (schemas.Action, error) {
	for {
		proposed, err := s.mind.ProposeAction(ctx, objective, obs)
		if err != nil {
			if ctx.Err() != nil {
				return schemas.Action{}, err
			}
			s.log.Warn("Mind failed to propose, falling back to wait", zap.Error(err))
			proposed = schemas.NewWait(1000)
		}

		vetted, err := s.validator.Validate(proposed, prev)
		if err == nil {
			return vetted, nil
		}

		var rejected *prior.RejectionError
		if errors.As(err, &rejected) {
			// Recoverable: ask for an alternative. The validator's own cap
			// turns a run of these into a RejectionLimitError.
			obs.Feedback = fmt.Sprintf("%s action scored %.2g, below the acceptance floor", rejected.Action.Type, rejected.Score)
			continue
		}
		return schemas.Action{}, err
	}
}
