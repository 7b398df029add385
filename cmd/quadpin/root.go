package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Running without a subcommand serves the UI.
func newRootCmd() *cobra.Command {
	var debug bool
	root := &cobra.Command{
		Use:   "quadpin",
		Short: "Corner-pin captured content onto a projection surface",
		Long: `quadpin serves a browser page that warps its content into an arbitrary
quadrilateral. Drag the four corners in edit mode to line the content up with
a physical surface; the corners are saved and restored on the next start.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), debug)
		},
	}
	root.Flags().BoolVar(&debug, "debug", false, "enable verbose debug logging")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSolveCmd())
	root.AddCommand(newPointsCmd())
	root.AddCommand(newPasswordCmd())
	return root
}
