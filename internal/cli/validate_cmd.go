package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gauntlet-ci/gauntlet/internal/matrix"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and matrix files",
	Long: `Check gauntlet.toml and the matrix file for errors without running
anything. Exits non-zero when either file is unusable; warnings are printed
but do not fail validation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if path == "" {
			fmt.Println("no gauntlet.toml found; defaults are valid")
		} else {
			fmt.Printf("%s: ok\n", path)
		}

		doc, err := matrix.Load(cfg.Project.MatrixFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "matrix error: %v\n", err)
			return fmt.Errorf("invalid matrix file %s", cfg.Project.MatrixFile)
		}
		plan, err := matrix.BuildPlan(doc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "matrix error: %v\n", err)
			return fmt.Errorf("invalid matrix file %s", cfg.Project.MatrixFile)
		}

		fmt.Printf("%s: ok (%d units)\n", cfg.Project.MatrixFile, len(plan.Units()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
