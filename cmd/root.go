package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/sdc-prioritizer/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "sdc-prioritizer",
	Short: "Self-driving car test prioritization with REST and MCP servers",
	Long: `sdc-prioritizer ranks simulated self-driving car tests so that the ones most
likely to reveal a defect run first. Each test is a road; strategies rank roads
by geometric features or by how much of an outlier they are within their suite.
Rankings are scored with APFD against a deterministic fault simulator,
optionally under a budget of road points.

Suites can be bundled, read from a directory, or uploaded through the REST API.
Every evaluation is recorded in an embedded history store.

When run without subcommands, it starts the MCP server (equivalent to 'sdc-prioritizer serve').`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level, _ := cfg.Level()
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
		return nil
	},
}

// cfg is loaded before any subcommand runs.
var cfg *config.Config

// serveCmd is stored so the root command can delegate to it by default.
var serveCmd *cobra.Command

var (
	buildCommit = "unknown"
	buildDate   = "unknown"
)

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// SetBuildInfo sets the commit and build date for the version command.
func SetBuildInfo(commit, date string) {
	buildCommit = commit
	buildDate = date
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "sdc-prioritizer version %s\n" .Version}}`)

	// Default to the serve command when invoked without arguments.
	// We use Run (not RunE) to print the help text directing the user to use
	// an explicit subcommand, since the root command cannot parse serve-specific
	// flags (like --transport, --http-addr).
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stderr, "No subcommand specified. Defaulting to 'serve' (stdio transport).")
		fmt.Fprintln(os.Stderr, "For HTTP transport or OAuth, use: sdc-prioritizer serve --transport streamable-http")
		fmt.Fprintln(os.Stderr)
		if err := serveCmd.RunE(serveCmd, args); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	serveCmd = newServeCmd()
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newAPICmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newStrategiesCmd())
	rootCmd.AddCommand(newPrioritizeCmd())
	rootCmd.AddCommand(newEvaluateCmd())
	rootCmd.AddCommand(newExperimentCmd())
	rootCmd.AddCommand(newHistoryCmd())

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ./config.yaml or /etc/sdc-prioritizer/config.yaml)")
	rootCmd.PersistentFlags().String("store", "", "Path to the history store (overrides store.path)")
	rootCmd.PersistentFlags().String("suites-dir", "", "External test suites directory")
}
