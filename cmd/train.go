// -- cmd/train.go --
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sherpa-cli/internal/episodes"
	"github.com/xkilldash9x/sherpa-cli/internal/observability"
	"github.com/xkilldash9x/sherpa-cli/internal/prior"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a behavior prior from recorded episodes and write a checkpoint.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		store := episodes.NewStore(cfg.Episodes.Root, logger)
		eps := store.Filtered(cfg.Episodes.Allowlist)

		cp, err := prior.Train(cmd.Context(), eps, cfg.Browser.ScreenW, cfg.Browser.ScreenH, prior.TrainOptions{
			GridSize: cfg.Prior.GridSize,
			Workers:  cfg.Prior.TrainWorkers,
		}, logger)
		if err != nil {
			return err
		}

		if err := prior.SaveCheckpoint(cfg.Prior.CheckpointPath, cp); err != nil {
			return err
		}
		logger.Info("Checkpoint written",
			zap.String("path", cfg.Prior.CheckpointPath),
			zap.Int("episodes", cp.EpisodeCount),
			zap.Int("steps", cp.StepCount))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
}
