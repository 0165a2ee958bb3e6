package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
	"github.com/xkilldash9x/sherpa-cli/internal/llmclient"
)

// Observation is what the mind sees before proposing the next action.
type Observation struct {
	URL       string
	StepIndex int
	MaxSteps  int
	// Feedback carries the reason the previous proposal was rejected, when
	// the validator asked for an alternative.
	Feedback string
}

// Mind proposes the next action for a session. Implementations must return
// an action from the closed action-type set.
type Mind interface {
	ProposeAction(ctx context.Context, objective string, obs Observation) (schemas.Action, error)
}

// GeminiMind asks the remote model for the next action as a single JSON
// object and parses it through the tagged-union action schema.
type GeminiMind struct {
	client llmclient.Client
	log    *zap.Logger
}

// NewGeminiMind wraps a model client.
func NewGeminiMind(client llmclient.Client, logger *zap.Logger) *GeminiMind {
	return &GeminiMind{
		client: client,
		log:    logger.Named("gemini_mind"),
	}
}

const systemPrompt = `You control a web browser one action at a time.
Respond with exactly one JSON object and nothing else. Valid shapes:
  {"type":"click","x":<px>,"y":<px>}
  {"type":"type","text":"..."}
  {"type":"scroll","dx":<px>,"dy":<px>}
  {"type":"key","code":"Enter"}
  {"type":"wait","ms":<int>}
  {"type":"navigate","url":"https://..."}
  {"type":"done"}
Coordinates are absolute pixels within the viewport. Emit {"type":"done"}
once the objective is complete.`

// ProposeAction builds the step prompt, queries the model, and parses the
// reply. A reply that fails to parse is an error; the session loop decides
// whether to retry.
func (m *GeminiMind) ProposeAction(ctx context.Context, objective string, obs Observation) (schemas.Action, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Objective: %s\n", objective)
	fmt.Fprintf(&sb, "Current URL: %s\n", obs.URL)
	fmt.Fprintf(&sb, "Step %d of %d.\n", obs.StepIndex+1, obs.MaxSteps)
	if obs.Feedback != "" {
		fmt.Fprintf(&sb, "Your previous proposal was not accepted: %s\nPropose a different action.\n", obs.Feedback)
	}
	sb.WriteString("Next action:")

	reply, err := m.client.GenerateText(ctx, systemPrompt, sb.String())
	if err != nil {
		return schemas.Action{}, err
	}

	action, err := parseActionReply(reply)
	if err != nil {
		m.log.Warn("Model reply did not parse as an action",
			zap.String("reply", truncate(reply, 200)),
			zap.Error(err))
		return schemas.Action{}, fmt.Errorf("unparseable model reply: %w", err)
	}
	return action, nil
}

// jsonObjectRe pulls the first JSON object out of a reply that may be
// wrapped in prose or a markdown fence.
var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

func parseActionReply(reply string) (schemas.Action, error) {
	raw := jsonObjectRe.FindString(reply)
	if raw == "" {
		return schemas.Action{}, fmt.Errorf("no JSON object in reply")
	}
	return schemas.ParseAction([]byte(raw))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
