package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gauntlet-ci/gauntlet/internal/run"
)

var planFlagMatrix string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Expand the matrix without executing anything",
	Long: `Expand and validate the test matrix, printing every (topology, test)
cell the run would dispatch. No image is resolved and no container is
started; a non-zero exit means the matrix itself is invalid.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		plan, err := run.NewDriver(cfg).Plan(run.Request{MatrixFile: planFlagMatrix})
		if err != nil {
			return err
		}

		bold := lipgloss.NewStyle().Bold(true)
		dim := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		testCommand := strings.Join(cfg.Run.TestCommand, " ")
		for _, tp := range plan.Topologies {
			fmt.Printf("%s %s\n", bold.Render(tp.Name), dim.Render(fmt.Sprintf("(%s, %d node(s), capture=%t)", tp.Kind, tp.Nodes, tp.Capture)))
			for _, u := range tp.Units {
				marker := ""
				if u.Tolerated {
					marker = "  [tolerated]"
				}
				fmt.Printf("  %-40s %s\n", u.Test+marker, dim.Render(fmt.Sprintf("$ %s %s_%s", testCommand, u.Kind, u.Test)))
			}
		}
		fmt.Printf("\n%d unit(s) across %d topolog(ies)\n", len(plan.Units()), len(plan.Topologies))
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&planFlagMatrix, "matrix", "", "Path to the matrix file (overrides project.matrix_file)")
	rootCmd.AddCommand(planCmd)
}
