package inject

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aman-cerp/ragindex/internal/search"
)

func TestInject_NoChunksReturnsMessageUnchanged(t *testing.T) {
	ci := New(Config{})
	assert.Equal(t, "hello", ci.Inject(nil, "hello"))
}

func TestInject_MinimalStyleUsesBareFileName(t *testing.T) {
	ci := New(Config{Style: StyleMinimal})
	out := ci.Inject([]search.Content{{FilePath: "/p/a.go", ChunkIndex: 0, Text: "package main"}}, "how does this work?")
	assert.Contains(t, out, "`a.go`")
	assert.Contains(t, out, "package main")
	assert.Contains(t, out, "how does this work?")
}

func TestInject_DetailedStyleIncludesPathLine(t *testing.T) {
	ci := New(Config{Style: StyleDetailed})
	out := ci.Inject([]search.Content{{FilePath: "/p/a.go", ChunkIndex: 2, Text: "func main() {}"}}, "q")
	assert.Contains(t, out, "chunk 2")
	assert.Contains(t, out, "Path: /p/a.go")
}

func TestInject_AbsolutePathsProducesFileLinks(t *testing.T) {
	ci := New(Config{Style: StyleCompact, AbsolutePaths: true})
	out := ci.Inject([]search.Content{{FilePath: "/p/a.go", ChunkIndex: 0, Text: "x"}}, "q")
	assert.Contains(t, out, "file:///p/a.go")
}

func TestInject_CustomTemplateOverridesDefault(t *testing.T) {
	ci := New(Config{Template: "CONTEXT:\n{context}\nQUESTION:\n{question}"})
	out := ci.Inject([]search.Content{{FilePath: "/a.go", Text: "x"}}, "q")
	assert.Contains(t, out, "CONTEXT:")
	assert.Contains(t, out, "QUESTION:")
}

func TestInject_InvalidCustomTemplateFallsBackToDefault(t *testing.T) {
	ci := New(Config{Template: "no placeholders here"})
	out := ci.Inject([]search.Content{{FilePath: "/a.go", Text: "x"}}, "q")
	assert.Contains(t, out, "q")
	assert.NotContains(t, out, "no placeholders here")
}
