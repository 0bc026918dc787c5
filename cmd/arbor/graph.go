package main

import (
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [dir] <tree>",
	Short: "Export the tree graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of a tree. With --trace the run recorded
in the JSONL file (the last one, or --execution) is highlighted.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracePath, _ := cmd.Flags().GetString("trace")
		executionID, _ := cmd.Flags().GetString("execution")

		return cli.Graph(cli.GraphOptions{
			Options:     options(cmd, args),
			Tree:        treeArg(args),
			TracePath:   tracePath,
			ExecutionID: executionID,
		}, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().String("trace", "", "JSONL trace file to overlay")
	graphCmd.Flags().String("execution", "", "Execution ID within --trace")
}
