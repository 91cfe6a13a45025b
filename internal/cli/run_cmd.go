package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gauntlet-ci/gauntlet/internal/report"
	"github.com/gauntlet-ci/gauntlet/internal/run"
	"github.com/gauntlet-ci/gauntlet/internal/scheduler"
	"github.com/gauntlet-ci/gauntlet/internal/tui"
)

var (
	runFlagChannel string
	runFlagVersion string
	runFlagMatrix  string
	runFlagWatch   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the full test matrix",
	Long: `Execute every (topology, test) cell of the matrix: resolve the server
image, deploy the topologies, run the test command per cell, and print the
aggregated summary. The exit code is 0 when the run passed and 1 when any
non-tolerated cell failed.

Examples:
  gauntlet run                      # default channel from gauntlet.toml
  gauntlet run --channel lts        # pin the release channel
  gauntlet run --version 25.0.0-rc1 # explicit image tag, bypassing channels
  gauntlet run --watch              # live dashboard while the matrix runs`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		req := run.Request{
			Channel:    runFlagChannel,
			Version:    runFlagVersion,
			MatrixFile: runFlagMatrix,
		}

		// Interrupts cancel the run context; the scheduler's deferred
		// teardown still removes every container before we exit.
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var summary report.Summary
		if runFlagWatch {
			events := make(chan scheduler.Event, 256)
			driver := run.NewDriver(cfg, run.WithEvents(events))
			summary, err = tui.Run(ctx, events, func(ctx context.Context) (report.Summary, error) {
				defer close(events)
				return driver.Execute(ctx, req)
			})
		} else {
			driver := run.NewDriver(cfg)
			summary, err = driver.Execute(ctx, req)
		}
		if err != nil {
			return err
		}

		fmt.Print(report.Render(summary))
		if summary.Failed() {
			return errRunFailed
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlagChannel, "channel", "", "Release channel to resolve the server image from")
	runCmd.Flags().StringVar(&runFlagVersion, "version", "", "Explicit server image tag (overrides --channel)")
	runCmd.Flags().StringVar(&runFlagMatrix, "matrix", "", "Path to the matrix file (overrides project.matrix_file)")
	runCmd.Flags().BoolVar(&runFlagWatch, "watch", false, "Show a live dashboard while the matrix runs")
	rootCmd.AddCommand(runCmd)
}
