package main

import (
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [dir] <tree>",
	Short: "Describe a tree",
	Long:  `Prints a markdown description of a tree: its functions in index order and its graph.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		style, _ := cmd.Flags().GetString("style")
		raw, _ := cmd.Flags().GetBool("raw")

		return cli.Inspect(cli.InspectOptions{
			Options: options(cmd, args),
			Tree:    treeArg(args),
			Style:   style,
			Raw:     raw,
		}, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().String("style", "", "Glamour style (dark, light, notty); detected by default")
	inspectCmd.Flags().Bool("raw", false, "Print the markdown source")
}
