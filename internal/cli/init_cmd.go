package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/gauntlet-ci/gauntlet/internal/config"
)

var (
	initFlagForce    bool
	initFlagDefaults bool
)

// sampleMatrix is the starter matrix written by `gauntlet init`.
const sampleMatrix = `# Test matrix: each topology lists the tests that run under it.
# Flag a flaky test with "tolerated: true" to record its failures without
# failing the run.
topologies:
  - name: single
    kind: single
    tests:
      - streams
      - projections
  - name: secure
    kind: secure
    tests:
      - streams
  - name: cluster
    kind: cluster
    nodes: 3
    tests:
      - streams
      - persistent_subscriptions
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create gauntlet.toml and a starter matrix in the current directory",
	Long: `Interactively scaffold a new project: prompts for the server image,
release channel, and test command, then writes gauntlet.toml and a starter
matrix.yaml. Existing files are preserved unless --force is supplied.

Examples:
  gauntlet init             # interactive setup
  gauntlet init --defaults  # skip the prompts, write defaults
  gauntlet init --force     # overwrite existing files`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initFlagForce, "force", false, "Overwrite existing files")
	initCmd.Flags().BoolVar(&initFlagDefaults, "defaults", false, "Write default configuration without prompting")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !initFlagForce {
		if _, err := os.Stat(config.ConfigFileName); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", config.ConfigFileName)
		}
	}

	cfg := config.NewDefaults()
	cfg.Run.TestCommand = []string{"cargo", "test", "--"}

	if !initFlagDefaults {
		if err := promptForConfig(cfg); err != nil {
			return err
		}
	}

	if err := writeConfigFile(config.ConfigFileName, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", config.ConfigFileName)

	if _, err := os.Stat(cfg.Project.MatrixFile); err == nil && !initFlagForce {
		fmt.Printf("%s already exists, leaving it untouched\n", cfg.Project.MatrixFile)
		return nil
	}
	if err := os.WriteFile(cfg.Project.MatrixFile, []byte(sampleMatrix), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.Project.MatrixFile, err)
	}
	fmt.Printf("wrote %s\n", cfg.Project.MatrixFile)
	return nil
}

// promptForConfig collects the project settings interactively. Numeric
// fields go through raw string inputs and are parsed on completion.
func promptForConfig(cfg *config.Config) error {
	channels := make([]string, 0, len(cfg.Provision.Channels))
	for name := range cfg.Provision.Channels {
		channels = append(channels, name)
	}

	testCommand := strings.Join(cfg.Run.TestCommand, " ")
	rawConcurrency := strconv.Itoa(cfg.Run.Concurrency)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Value(&cfg.Project.Name),
			huh.NewInput().
				Title("Image repository").
				Description("Registry path of the server image").
				Value(&cfg.Docker.Repository),
			huh.NewInput().
				Title("Image name").
				Value(&cfg.Docker.Image),
			huh.NewSelect[string]().
				Title("Default release channel").
				Options(huh.NewOptions(channels...)...).
				Value(&cfg.Provision.DefaultChannel),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Test command").
				Description("Run once per matrix cell; the cell identifier is appended").
				Value(&testCommand).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("test command must not be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Unit concurrency").
				Description("Concurrent tests per topology").
				Value(&rawConcurrency).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 {
						return fmt.Errorf("must be a positive integer")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	cfg.Run.TestCommand = strings.Fields(testCommand)
	cfg.Run.Concurrency, _ = strconv.Atoi(rawConcurrency)
	return nil
}

func writeConfigFile(path string, cfg *config.Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
