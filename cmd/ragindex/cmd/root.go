// Package cmd provides the CLI commands for ragindex.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/ragindex/internal/logging"
	"github.com/aman-cerp/ragindex/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the ragindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragindex",
		Short: "Local hybrid (BM25 + semantic) retrieval engine",
		Long: `ragindex indexes a directory tree and serves hybrid (keyword + vector)
search over it for a local AI assistant's retrieval-augmented generation
pipeline.

It runs entirely locally with zero required configuration.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("ragindex version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to the ragindex log directory")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

func startLogging(cmd *cobra.Command, args []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logCfg.WriteToStderr = false

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging failure is not fatal for a CLI invocation.
		slog.Warn("failed to set up file logging", slog.String("error", err.Error()))
		return nil
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

func stopLogging(cmd *cobra.Command, args []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
	}
	return nil
}
