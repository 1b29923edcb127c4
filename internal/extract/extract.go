// Package extract implements the TextExtractor: turning a file on disk
// into the plain-text body the ChunkPlanner consumes.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// PDFParser is an injected capability for extracting text from PDF files.
// No implementation ships in this module (Non-goal) — callers that need
// PDF support provide their own and pass it to New.
type PDFParser interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Extractor turns a file's bytes into text.
type Extractor struct {
	pdf PDFParser
}

// New constructs an Extractor. pdf may be nil, in which case .pdf files
// fail with ErrPDFUnsupported.
func New(pdf PDFParser) *Extractor {
	return &Extractor{pdf: pdf}
}

// ErrPDFUnsupported is returned from Extract for a .pdf file when no
// PDFParser was configured.
var ErrPDFUnsupported = fmt.Errorf("extract: no PDF parser configured")

// Extract reads path and returns its text content, dispatching on
// extension. Plain files are read as UTF-8; invalid byte sequences are
// replaced with the Unicode replacement character rather than failing the
// whole extraction, since a handful of mis-encoded bytes in an otherwise
// indexable source file shouldn't sink the file.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(extOf(path))

	if ext == ".pdf" {
		if e.pdf == nil {
			return "", ErrPDFUnsupported
		}
		return e.pdf.ExtractText(ctx, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("extract: read %s: %w", path, err)
	}

	return toValidUTF8(raw), nil
}

// toValidUTF8 returns s as a valid UTF-8 string, replacing any invalid
// byte sequences with U+FFFD rather than dropping or erroring on them.
func toValidUTF8(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	var b strings.Builder
	b.Grow(len(raw))
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		b.WriteRune(r)
		raw = raw[size:]
	}
	return b.String()
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}
