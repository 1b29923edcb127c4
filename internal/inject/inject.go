// Package inject implements the ContentInjector: folding retrieved chunks
// and citation hints into the user's chat message before it reaches the
// LLM.
package inject

import (
	"fmt"
	"strings"

	"github.com/aman-cerp/ragindex/internal/search"
)

// CitationStyle controls how much of a chunk's location is surfaced to the
// model alongside its text.
type CitationStyle string

const (
	// StyleMinimal cites just the file name (or a clickable link in
	// absolute-path mode).
	StyleMinimal CitationStyle = "MINIMAL"
	// StyleCompact cites the file name plus its chunk position.
	StyleCompact CitationStyle = "COMPACT"
	// StyleDetailed cites the full absolute path and chunk position, with a
	// secondary "Path:" line.
	StyleDetailed CitationStyle = "DETAILED"
)

const defaultTemplate = "{context}\n\n{question}"

// Config configures a ContentInjector.
type Config struct {
	Style CitationStyle
	// Template overrides the default "{context}\n\n{question}" layout.
	// Must contain both placeholders to be honored.
	Template string
	// AbsolutePaths renders citations as file:// markdown links instead of
	// inline-code-formatted file names.
	AbsolutePaths bool
}

// ContentInjector rewrites a user message to embed retrieved chunks and
// their citations.
type ContentInjector struct {
	config Config
}

// New constructs a ContentInjector, defaulting Style to COMPACT and
// Template to the built-in layout when unset.
func New(config Config) *ContentInjector {
	if config.Style == "" {
		config.Style = StyleCompact
	}
	if config.Template == "" {
		config.Template = defaultTemplate
	}
	return &ContentInjector{config: config}
}

// Inject returns userMessage rewritten to include chunks as cited context.
// An empty chunks list returns userMessage unchanged.
func (ci *ContentInjector) Inject(chunks []search.Content, userMessage string) string {
	if len(chunks) == 0 {
		return userMessage
	}

	template := ci.config.Template
	if !strings.Contains(template, "{context}") || !strings.Contains(template, "{question}") {
		template = defaultTemplate
	}

	var context strings.Builder
	for i, c := range chunks {
		if i > 0 {
			context.WriteString("\n\n")
		}
		context.WriteString(ci.citation(c))
		context.WriteString("\n")
		context.WriteString(c.Text)
	}

	out := strings.ReplaceAll(template, "{context}", context.String())
	out = strings.ReplaceAll(out, "{question}", userMessage)
	return out
}

func (ci *ContentInjector) citation(c search.Content) string {
	name := fileName(c.FilePath)

	switch ci.config.Style {
	case StyleMinimal:
		if ci.config.AbsolutePaths {
			return fmt.Sprintf("[%s](file://%s)", name, c.FilePath)
		}
		return fmt.Sprintf("`%s`", name)
	case StyleDetailed:
		ref := fmt.Sprintf("chunk %d", c.ChunkIndex)
		if ci.config.AbsolutePaths {
			return fmt.Sprintf("[%s, %s](file://%s)\nPath: %s", name, ref, c.FilePath, c.FilePath)
		}
		return fmt.Sprintf("`%s`, %s\nPath: %s", name, ref, c.FilePath)
	default: // StyleCompact
		ref := fmt.Sprintf("chunk %d", c.ChunkIndex)
		if ci.config.AbsolutePaths {
			return fmt.Sprintf("[%s (%s)](file://%s)", name, ref, c.FilePath)
		}
		return fmt.Sprintf("`%s` (%s)", name, ref)
	}
}

func fileName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
