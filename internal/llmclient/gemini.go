// Package llmclient talks to the remote model that proposes browser actions.
package llmclient

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/sherpa-cli/internal/config"
)

// Client generates text completions for the agent loop.
type Client interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// GeminiClient implements Client against the Gemini API with retries and
// client-side rate limiting.
type GeminiClient struct {
	client  *genai.Client
	cfg     config.AgentConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

var _ Client = (*GeminiClient)(nil)

// NewGemini constructs the client. The API key is required; this fails fast
// at startup rather than on the first step of a session.
func NewGemini(ctx context.Context, cfg config.AgentConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set SHERPA_GEMINI_API_KEY)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	return &GeminiClient{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rpm/60.0), 1),
		log:     logger.Named("llm_client.gemini"),
	}, nil
}

// GenerateText sends the prompt and returns the model's text, retrying
// transient failures with exponential backoff.
func (c *GeminiClient) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var out string
	operation := func() error {
		reqCtx := ctx
		if c.cfg.APITimeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.cfg.APITimeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := c.client.Models.GenerateContent(reqCtx, c.cfg.Model, genai.Text(prompt), genCfg)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log.Warn("Model request failed, retrying", zap.Error(err))
			return err
		}

		text := resp.Text()
		if text == "" {
			return fmt.Errorf("model returned an empty response")
		}
		c.log.Debug("Model response received",
			zap.Duration("latency", time.Since(start)),
			zap.Int("chars", len(text)))
		out = text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("model request failed after retries: %w", err)
	}
	return out, nil
}
