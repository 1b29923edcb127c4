package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PlainUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	e := New(nil)
	got, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", got)
}

func TestExtract_InvalidUTF8FallsBackToReplacement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte{'h', 'i', 0xff, 0xfe, 'x'}, 0o644))

	e := New(nil)
	got, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, got, "hi")
	assert.Contains(t, got, "x")
	assert.Contains(t, got, "�")
}

func TestExtract_PDFWithoutParserFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644))

	e := New(nil)
	_, err := e.Extract(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPDFUnsupported))
}

type fakePDFParser struct{ text string }

func (f fakePDFParser) ExtractText(ctx context.Context, path string) (string, error) {
	return f.text, nil
}

func TestExtract_PDFWithParserDelegates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644))

	e := New(fakePDFParser{text: "extracted body"})
	got, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "extracted body", got)
}

func TestExtract_MissingFile(t *testing.T) {
	e := New(nil)
	_, err := e.Extract(context.Background(), "/nonexistent/path.txt")
	assert.Error(t, err)
}
