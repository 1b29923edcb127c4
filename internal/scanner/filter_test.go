package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return abs
}

func TestIsIndexable_RejectsHiddenAndVendorDirs(t *testing.T) {
	root := t.TempDir()
	f := New(Config{})

	hidden := writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")
	assert.False(t, f.IsIndexable(hidden, root))

	vendored := writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}\n")
	assert.False(t, f.IsIndexable(vendored, root))

	good := writeFile(t, root, "main.go", "package main\n")
	assert.True(t, f.IsIndexable(good, root))
}

func TestIsIndexable_RejectsBinaryExtension(t *testing.T) {
	root := t.TempDir()
	f := New(Config{})
	img := writeFile(t, root, "logo.png", "\x89PNG\r\n")
	assert.False(t, f.IsIndexable(img, root))
}

func TestIsIndexable_RejectsSensitiveFiles(t *testing.T) {
	root := t.TempDir()
	f := New(Config{})

	env := writeFile(t, root, ".env", "SECRET=1\n")
	assert.False(t, f.IsIndexable(env, root))

	key := writeFile(t, root, "certs/server.key", "-----BEGIN KEY-----\n")
	assert.False(t, f.IsIndexable(key, root))
}

func TestIsIndexable_RejectsOversizeFile(t *testing.T) {
	root := t.TempDir()
	f := New(Config{MaxFileBytes: 10})
	big := writeFile(t, root, "big.txt", "0123456789ABCDEF")
	assert.False(t, f.IsIndexable(big, root))
}

func TestIsIndexable_RejectsNullByteContent(t *testing.T) {
	root := t.TempDir()
	f := New(Config{})
	bin := filepath.Join(root, "data.bin")
	require.NoError(t, os.WriteFile(bin, []byte{0x00, 0x01, 0x02, 'a', 'b'}, 0o644))
	assert.False(t, f.IsIndexable(bin, root))
}

func TestIsIndexable_UnsupportedExtensionRejected(t *testing.T) {
	root := t.TempDir()
	f := New(Config{})
	odd := writeFile(t, root, "weird.xyz123", "hello\n")
	assert.False(t, f.IsIndexable(odd, root))
}

func TestIsIndexable_RespectsGitignoreWhenEnabled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.txt\nbuild/\n")
	logFile := writeFile(t, root, "debug.txt", "log line\n")
	buildFile := writeFile(t, root, "build/out.txt", "artifact\n")
	kept := writeFile(t, root, "README.md", "# hi\n")

	f := New(Config{RespectGitignore: true})
	assert.False(t, f.IsIndexable(logFile, root))
	assert.False(t, f.IsIndexable(buildFile, root))
	assert.True(t, f.IsIndexable(kept, root))
}

func TestIsIndexable_IgnoresGitignoreWhenDisabled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.txt\n")
	logFile := writeFile(t, root, "debug.txt", "log line\n")

	f := New(Config{RespectGitignore: false})
	assert.True(t, f.IsIndexable(logFile, root))
}

func TestDetectProjectType(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/foo\n")

	f := New(Config{})
	assert.Equal(t, "go", f.DetectProjectType(root))
	// second call hits the cache path
	assert.Equal(t, "go", f.DetectProjectType(root))
}

func TestDetectProjectType_NoMarkersReturnsEmpty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt", "just some notes\n")

	f := New(Config{})
	assert.Equal(t, "", f.DetectProjectType(root))
}

func TestMatchesAnyGlob(t *testing.T) {
	assert.True(t, matchesAnyGlob("src/build/out.o", []string{"build/**"}))
	assert.True(t, matchesAnyGlob("a/build/b.txt", []string{"build/"}))
	assert.True(t, matchesAnyGlob("pkg/generated.pb.go", []string{"*.pb.go"}))
	assert.False(t, matchesAnyGlob("pkg/main.go", []string{"*.pb.go"}))
}

func TestInvalidateGitignoreCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.txt\n")
	f := New(Config{RespectGitignore: true})

	logFile := writeFile(t, root, "debug.txt", "x\n")
	assert.False(t, f.IsIndexable(logFile, root))

	// Rewrite .gitignore to stop ignoring *.txt, then invalidate the cache.
	writeFile(t, root, ".gitignore", "*.tmp\n")
	f.InvalidateGitignoreCache(root)
	assert.True(t, f.IsIndexable(logFile, root))
}
