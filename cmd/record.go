// -- cmd/record.go --
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sherpa-cli/internal/episodes"
	"github.com/xkilldash9x/sherpa-cli/internal/observability"
	"github.com/xkilldash9x/sherpa-cli/internal/recorder"
	"github.com/xkilldash9x/sherpa-cli/pkg/browser"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Collect interaction episodes by driving a browser with a random policy.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := observability.GetLogger()

		driver, err := browser.NewChrome(ctx, cfg.Browser, logger)
		if err != nil {
			return err
		}
		defer driver.Close()

		writer := episodes.NewWriter(cfg.Episodes.Root)
		rec := recorder.New(cfg.Recorder, cfg.Episodes.Allowlist, driver, writer, logger)

		logger.Info("Recording episodes",
			zap.Int("episodes", cfg.Recorder.Episodes),
			zap.Int("max_steps", cfg.Recorder.MaxSteps),
			zap.String("initial_url", cfg.Recorder.InitialURL),
			zap.String("root", cfg.Episodes.Root))
		return rec.Run(ctx)
	},
}

func init() {
	recordCmd.Flags().IntVar(&flagEpisodes, "episodes", 0, "number of episodes to record (overrides config)")
	recordCmd.Flags().StringVar(&flagInitialURL, "url", "", "initial URL (overrides config)")
	recordCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if flagEpisodes > 0 {
			cfg.Recorder.Episodes = flagEpisodes
		}
		if flagInitialURL != "" {
			cfg.Recorder.InitialURL = flagInitialURL
		}
	}
	rootCmd.AddCommand(recordCmd)
}

var (
	flagEpisodes   int
	flagInitialURL string
)
