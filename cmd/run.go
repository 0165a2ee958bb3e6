// -- cmd/run.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sherpa-cli/internal/config"
	"github.com/xkilldash9x/sherpa-cli/internal/episodes"
	"github.com/xkilldash9x/sherpa-cli/internal/llmclient"
	"github.com/xkilldash9x/sherpa-cli/internal/observability"
	"github.com/xkilldash9x/sherpa-cli/internal/prior"
	"github.com/xkilldash9x/sherpa-cli/pkg/agent"
	"github.com/xkilldash9x/sherpa-cli/pkg/browser"
)

var (
	flagObjective string
	flagStartURL  string
	flagEnforce   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a model-driven browser session vetted by the behavior prior.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagObjective == "" || flagStartURL == "" {
			return fmt.Errorf("--objective and --url are required")
		}
		ctx := cmd.Context()
		logger := observability.GetLogger()

		// Model and checkpoint problems surface here, before any browser
		// time is spent.
		validator := prior.NewValidator(cfg.Prior, logger)
		if err := validator.Load(cfg.Prior.CheckpointPath); err != nil {
			return err
		}
		if flagEnforce {
			validator.SetMode(config.ModeEnforce)
		}

		client, err := llmclient.NewGemini(ctx, cfg.Agent, logger)
		if err != nil {
			return err
		}

		driver, err := browser.NewChrome(ctx, cfg.Browser, logger)
		if err != nil {
			return err
		}
		defer driver.Close()

		var writer *episodes.Writer
		if cfg.Agent.RecordEpisodes {
			writer = episodes.NewWriter(cfg.Episodes.Root)
		}

		session, err := agent.NewSession(cfg.Agent, agent.NewGeminiMind(client, logger), driver, validator, writer, logger)
		if err != nil {
			return err
		}

		result, err := session.Run(ctx, flagObjective, flagStartURL)
		if err != nil {
			return err
		}
		logger.Info("Session finished",
			zap.String("session", result.SessionID),
			zap.Int("steps", result.Steps),
			zap.Bool("completed", result.Completed),
			zap.String("episode", result.EpisodeID))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&flagObjective, "objective", "", "natural-language objective for the session")
	runCmd.Flags().StringVar(&flagStartURL, "url", "", "URL the session starts at")
	runCmd.Flags().BoolVar(&flagEnforce, "enforce", false, "reject low-probability actions instead of only logging them")
	rootCmd.AddCommand(runCmd)
}
