package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Index a directory and keep watching it for changes",
		Long: `Runs the same initial pass as "ragindex index", then starts the
filesystem watcher and keeps the index current until interrupted
(Ctrl+C).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, resolvePath(args), true)
		},
	}
	return cmd
}
