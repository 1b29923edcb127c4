package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/aman-cerp/ragindex/internal/config"
)

// ansiGreen/ansiBold/ansiReset are the only escapes status output ever
// needs: the section header in bold, the counts in green.
const (
	ansiGreen = "\x1b[32m"
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

// colorEnabled reports whether w is a real terminal and NO_COLOR isn't
// set, mirroring the teacher's ui.IsTTY/DetectNoColor gate.
func colorEnabled(w io.Writer) bool {
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func colorize(s, code string, enabled bool) string {
	if !enabled {
		return s
	}
	return code + s + ansiReset
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Report indexing status for a directory",
		Long:  `Reports how many files are currently recorded in the state repository and the vector/keyword store sizes, without running a new indexing pass.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, resolvePath(args))
		},
	}
	return cmd
}

func runStatus(cmd *cobra.Command, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	cfg, err := config.Load(absPath)
	if err != nil {
		cfg = config.NewConfig()
	}

	p, err := buildPipeline(absPath, cfg, false)
	if err != nil {
		return err
	}
	defer p.close()

	files, err := p.state.ListFiles(cmd.Context())
	if err != nil {
		return fmt.Errorf("list indexed files: %w", err)
	}

	out := cmd.OutOrStdout()
	color := colorEnabled(out)

	_, _ = fmt.Fprintf(out, "%s %s\n", colorize("root:", ansiBold, color), absPath)
	_, _ = fmt.Fprintf(out, "%s %s\n", colorize("indexed files:", ansiBold, color), colorize(fmt.Sprint(len(files)), ansiGreen, color))
	_, _ = fmt.Fprintf(out, "%s %s\n", colorize("vector store entries:", ansiBold, color), colorize(fmt.Sprint(p.vectors.Count()), ansiGreen, color))

	keywordIDs, err := p.keywords.AllIDs()
	if err != nil {
		return fmt.Errorf("list keyword ids: %w", err)
	}
	_, _ = fmt.Fprintf(out, "%s %s\n", colorize("keyword store entries:", ansiBold, color), colorize(fmt.Sprint(len(keywordIDs)), ansiGreen, color))

	return nil
}
