package main

import (
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check the trees for consistency",
	Long:  `Loads every tree of the directory and reports unknown functions, invalid nodes and duplicate names.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options(cmd, nil)
		if !cmd.Flags().Changed("dir") && len(args) == 1 {
			opts.Dir = args[0]
		}
		return cli.Validate(opts, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
