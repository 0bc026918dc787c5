package main

import (
	"fmt"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor runs function trees",
	Long: `Arbor executes trees of functions declared in YAML: steps run in order,
branches are chosen at runtime and every step is reported as an event.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("debugger") {
			cfg.RemoteDebugger, _ = cmd.Flags().GetString("debugger")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		settings = cfg
		return nil
	},
}

// settings is the configuration resolved before each command runs.
var settings config.Config

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options resolves the shared command options. A positional directory wins
// over the default of --dir.
func options(cmd *cobra.Command, args []string) cli.Options {
	dir, _ := cmd.Flags().GetString("dir")
	if !cmd.Flags().Changed("dir") && len(args) > 1 {
		dir = args[0]
	}
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Options{Dir: dir, Debug: debug, Config: settings}
}

// treeArg is the tree name: the last positional argument.
func treeArg(args []string) string {
	return args[len(args)-1]
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the YAML trees")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every step to stderr")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error (overrides ARBOR_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("debugger", "", "Remote debugger address host:port (overrides ARBOR_REMOTE_DEBUGGER)")
}
