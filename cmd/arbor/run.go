package main

import (
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [dir] <tree>",
	Short: "Run a tree",
	Long: `Runs a tree once, printing a timeline of its events and the final payload.
With --trace every event is appended to a JSONL file that graph --trace can overlay.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, _ := cmd.Flags().GetString("payload")
		tracePath, _ := cmd.Flags().GetString("trace")
		jsonMode, _ := cmd.Flags().GetBool("json")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Run(ctx, cli.RunOptions{
			Options:   options(cmd, args),
			Tree:      treeArg(args),
			Payload:   payload,
			TracePath: tracePath,
			JSON:      jsonMode,
		}, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("payload", "p", "", "Initial payload as a JSON object")
	runCmd.Flags().String("trace", "", "Append events to this JSONL file")
	runCmd.Flags().Bool("json", false, "Print only the final payload")
}
