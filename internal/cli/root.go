// Package cli wires the gauntlet command tree.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/gauntlet-ci/gauntlet/internal/config"
	"github.com/gauntlet-ci/gauntlet/internal/logging"
)

// Global flag values accessible to all subcommands.
var (
	flagVerbose bool
	flagQuiet   bool
	flagConfig  string
	flagDir     string
	flagNoColor bool
)

// errRunFailed signals a failed run verdict: the summary has already been
// printed, so Execute maps it to exit code 1 without extra output.
var errRunFailed = errors.New("run failed")

// rootCmd is the base command for gauntlet.
var rootCmd = &cobra.Command{
	Use:   "gauntlet",
	Short: "Matrix test runner for database client integration suites",
	Long: `Gauntlet runs a client integration test suite against a matrix of server
deployments -- single node, TLS-secured, and clustered -- resolving the
server image once per run, deploying each topology in containers, fanning
the test cases out concurrently, and aggregating a single pass/fail verdict
with failure artifacts for every hard failure.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Check env vars for flags not explicitly set on command line.
		if !cmd.Flags().Changed("verbose") && os.Getenv("GAUNTLET_VERBOSE") != "" {
			flagVerbose = true
		}
		if !cmd.Flags().Changed("quiet") && os.Getenv("GAUNTLET_QUIET") != "" {
			flagQuiet = true
		}
		if !cmd.Flags().Changed("no-color") && (os.Getenv("NO_COLOR") != "" || os.Getenv("GAUNTLET_NO_COLOR") != "") {
			flagNoColor = true
		}

		jsonFormat := os.Getenv("GAUNTLET_LOG_FORMAT") == "json"
		logging.Setup(flagVerbose, flagQuiet, jsonFormat)

		if flagNoColor {
			lipgloss.SetColorProfile(termenv.Ascii)
		}

		if flagDir != "" {
			if err := os.Chdir(flagDir); err != nil {
				return fmt.Errorf("changing directory to %s: %w", flagDir, err)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (debug) output (env: GAUNTLET_VERBOSE)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress all output except errors (env: GAUNTLET_QUIET)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to gauntlet.toml config file")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Override working directory")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output (env: GAUNTLET_NO_COLOR, NO_COLOR)")
}

// Execute runs the root command and returns the exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errRunFailed) {
			return 1
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// loadConfig resolves and validates the configuration for commands that
// need one. Honors --config; otherwise walks up from the working directory.
func loadConfig() (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		meta *toml.MetaData
		err  error
	)

	if flagConfig != "" {
		var md toml.MetaData
		cfg, md, err = config.LoadFromFile(flagConfig)
		if err != nil {
			return nil, "", err
		}
		config.ApplyDefaults(cfg)
		path, meta = flagConfig, &md
	} else {
		cwd, werr := os.Getwd()
		if werr != nil {
			return nil, "", werr
		}
		cfg, path, meta, err = config.Load(cwd)
		if err != nil {
			return nil, "", err
		}
	}

	result := config.Validate(cfg, meta)
	for _, issue := range result.Warnings() {
		logging.New("config").Warn(issue.Message, "field", issue.Field)
	}
	if result.HasErrors() {
		for _, issue := range result.Errors() {
			fmt.Fprintf(os.Stderr, "config error: %s: %s\n", issue.Field, issue.Message)
		}
		name := path
		if name == "" {
			name = config.ConfigFileName
		}
		return nil, "", fmt.Errorf("invalid configuration in %s", filepath.Base(name))
	}
	return cfg, path, nil
}
