package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/app"
)

var (
	replayFile   string
	replayDryRun bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a historical price CSV through the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayFile == "" {
			return fmt.Errorf("--file must be provided")
		}

		opts := app.ReplayOptions{
			Path:   replayFile,
			DryRun: replayDryRun,
		}

		return getApp().Replay(cmd.Context(), opts)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFile, "file", "", "CSV file of timestamp,price rows")
	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false, "Run without writing to storage")
}
