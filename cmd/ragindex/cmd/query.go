package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/ragindex/internal/config"
	"github.com/aman-cerp/ragindex/internal/inject"
	"github.com/aman-cerp/ragindex/internal/search"
)

func newQueryCmd() *cobra.Command {
	var (
		maxResults    int
		skipClassify  bool
		absolutePaths bool
		citationStyle string
	)

	cmd := &cobra.Command{
		Use:   "query [path] <question>",
		Short: "Run a hybrid search query against an existing index",
		Long: `Fuses BM25 keyword and semantic vector results with Reciprocal Rank
Fusion, classifies whether the question even needs retrieval, and prints
the question wrapped with the retrieved context the way it would be
handed to an assistant's prompt.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			question := args[0]
			if len(args) > 1 {
				path = args[0]
				question = strings.Join(args[1:], " ")
			}
			return runQuery(cmd.Context(), cmd, path, question, maxResults, skipClassify, absolutePaths, citationStyle)
		},
	}

	cmd.Flags().IntVar(&maxResults, "max-results", 8, "Maximum number of fused chunks to retrieve")
	cmd.Flags().BoolVar(&skipClassify, "no-classify", false, "Skip the intent classifier and always retrieve")
	cmd.Flags().BoolVar(&absolutePaths, "absolute-paths", false, "Cite sources as file:// links instead of bare file names")
	cmd.Flags().StringVar(&citationStyle, "citation-style", "compact", "Citation style: minimal, compact, or detailed")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, path, question string, maxResults int, skipClassify, absolutePaths bool, citationStyle string) error {
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

	useRAG := true
	if !skipClassify {
		classifier := search.NewIntentClassifier(search.IntentClassifierConfig{OllamaHost: cfg.Embeddings.OllamaHost})
		useRAG = classifier.ShouldUseRAG(ctx, question, nil)
	}

	var chunks []search.Content
	if useRAG {
		retriever := search.NewHybridRetriever(p.vectors, p.keywords, p.embedder).WithRRFConstant(cfg.Search.RRFConstant)
		chunks, err = retriever.Retrieve(ctx, question, maxResults)
		if err != nil {
			return fmt.Errorf("retrieve: %w", err)
		}
	}

	injector := inject.New(inject.Config{
		Style:         parseCitationStyle(citationStyle),
		AbsolutePaths: absolutePaths,
	})

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), injector.Inject(chunks, question))
	return nil
}

func parseCitationStyle(s string) inject.CitationStyle {
	switch strings.ToLower(s) {
	case "minimal":
		return inject.StyleMinimal
	case "detailed":
		return inject.StyleDetailed
	default:
		return inject.StyleCompact
	}
}
