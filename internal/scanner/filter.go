package scanner

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aman-cerp/ragindex/internal/gitignore"
)

// defaultExcludeDirs are directory basenames rejected outright regardless
// of project type.
var defaultExcludeDirs = []string{
	".git", ".svn", ".hg",
	"node_modules", "vendor", "bower_components",
	"dist", "build", "out", "target", "bin", "obj",
	".next", ".nuxt", ".cache", ".parcel-cache",
	"__pycache__", ".pytest_cache", ".mypy_cache", ".tox",
	".venv", "venv", "env",
	".idea", ".vscode", ".vs",
	"coverage", ".nyc_output",
	".terraform",
}

// defaultExcludeFiles are exact basenames always rejected.
var defaultExcludeFiles = []string{
	".DS_Store", "Thumbs.db", ".gitignore", ".gitattributes",
}

// sensitiveFilePatterns are glob-like patterns (matched against basename)
// for files that must never be indexed regardless of configuration.
var sensitiveFilePatterns = []string{
	".env", ".env.*", "*.pem", "*.key", "*.p12", "*.pfx",
	"id_rsa", "id_rsa.*", "id_ed25519", "id_ed25519.*",
	"*.secret", "*secrets*", "credentials*", "*.crt",
}

// binaryExtensions are rejected without reading file content.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true, ".webp": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".wav": true, ".flac": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true, ".rar": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true, ".o": true,
	".pdf": true, ".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".class": true, ".jar": true, ".pyc": true, ".wasm": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
}

const defaultMaxFileSize = 10 * 1024 * 1024 // 10MB

// projectMarkers maps a project type tag to root-level marker entries used
// for detection (§4.2 project-type detection).
var projectMarkers = map[string][]string{
	"go":         {"go.mod"},
	"node":       {"package.json"},
	"python":     {"pyproject.toml", "setup.py", "requirements.txt"},
	"rust":       {"Cargo.toml"},
	"java":       {"pom.xml", "build.gradle", "build.gradle.kts"},
	"ruby":       {"Gemfile"},
	"php":        {"composer.json"},
	"dotnet":     {"*.csproj", "*.sln"},
}

// Config controls FileFilter behavior; all fields have sane zero-value
// defaults (RespectGitignore defaults false, MaxFileBytes defaults to
// defaultMaxFileSize when zero).
type Config struct {
	RespectGitignore bool
	MaxFileBytes     int64
	// ExtraExcludeGlobs are additional user-configured exclusion globs,
	// applied with the same semantics as the built-in project-type globs.
	ExtraExcludeGlobs []string
}

// FileFilter decides whether a given file under a knowledge source root is
// indexable, per §4.2: hidden names, binary extensions, exact exclude
// names, exclude globs, unsupported extension, size cap, then the opt-in
// gitignore layer.
type FileFilter struct {
	cfg Config

	mu           sync.RWMutex
	projectCache *lru.Cache[string, string] // root -> detected project type
	gitignoreMu  sync.RWMutex
	gitignores   *lru.Cache[string, *gitignore.Matcher]
}

// New constructs a FileFilter. cfg may be the zero Config.
func New(cfg Config) *FileFilter {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxFileSize
	}
	projectCache, _ := lru.New[string, string](64)
	gitignores, _ := lru.New[string, *gitignore.Matcher](64)
	return &FileFilter{cfg: cfg, projectCache: projectCache, gitignores: gitignores}
}

// DetectProjectType inspects root for marker files/globs and returns the
// first matching project type tag, or "" if none match. Results are
// cached per root.
func (f *FileFilter) DetectProjectType(root string) string {
	f.mu.RLock()
	if v, ok := f.projectCache.Get(root); ok {
		f.mu.RUnlock()
		return v
	}
	f.mu.RUnlock()

	entries, err := os.ReadDir(root)
	detected := ""
	if err == nil {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
	outer:
		for _, ptype := range orderedProjectTypes {
			for _, marker := range projectMarkers[ptype] {
				if strings.ContainsAny(marker, "*?") {
					for _, n := range names {
						if ok, _ := filepath.Match(marker, n); ok {
							detected = ptype
							break outer
						}
					}
					continue
				}
				for _, n := range names {
					if n == marker {
						detected = ptype
						break outer
					}
				}
			}
		}
	}

	f.mu.Lock()
	f.projectCache.Add(root, detected)
	f.mu.Unlock()
	return detected
}

// orderedProjectTypes fixes DetectProjectType's scan order so results are
// deterministic when a root happens to carry markers for more than one
// type.
var orderedProjectTypes = []string{"go", "node", "python", "rust", "java", "ruby", "php", "dotnet"}

// IsIndexable reports whether absPath (a regular file under root) should
// be indexed, applying the reject rules of §4.2 in order.
func (f *FileFilter) IsIndexable(absPath, root string) bool {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := baseName(rel)

	if hasHiddenSegment(rel) {
		return false
	}

	ext := strings.ToLower(extension(base))
	if binaryExtensions[ext] {
		return false
	}

	for _, name := range defaultExcludeFiles {
		if base == name {
			return false
		}
	}

	for _, seg := range strings.Split(rel, "/") {
		for _, dir := range defaultExcludeDirs {
			if seg == dir {
				return false
			}
		}
	}

	if matchesAnyPattern(base, sensitiveFilePatterns) {
		return false
	}

	if matchesAnyGlob(rel, f.cfg.ExtraExcludeGlobs) {
		return false
	}

	if DetectLanguage(rel) == "" {
		// Unknown extension: only admit it if it's a recognized dotfile-less
		// plain-text marker; otherwise reject per "unsupported extension".
		if ext != "" {
			return false
		}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return false
	}
	if info.Size() > f.cfg.MaxFileBytes {
		return false
	}

	if f.cfg.RespectGitignore {
		matcher := f.getGitignoreMatcher(root)
		if matcher != nil && matcher.Match(rel, info.IsDir()) {
			return false
		}
	}

	if isBinaryFile(absPath) {
		return false
	}

	return true
}

func hasHiddenSegment(relPath string) bool {
	for _, seg := range strings.Split(relPath, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}

// matchesAnyPattern matches basename-style patterns: exact, prefix* ,
// *suffix, or *interior*.
func matchesAnyPattern(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// matchesAnyGlob applies the teacher's dir/file glob semantics: a
// "foo/"-suffixed pattern matches a path segment; "dir/**" (or
// "**/dir/**") matches anything under a dir segment at any depth;
// otherwise the pattern matches by filename via filepath.Match, or as a
// substring of the full relative path.
func matchesAnyGlob(relPath string, patterns []string) bool {
	for _, pat := range patterns {
		if pat == "" {
			continue
		}
		switch {
		case strings.HasSuffix(pat, "/**"):
			prefix := strings.TrimPrefix(strings.TrimSuffix(pat, "/**"), "**/")
			if relPath == prefix || strings.HasPrefix(relPath, prefix+"/") || strings.Contains(relPath, "/"+prefix+"/") {
				return true
			}
		case strings.HasSuffix(pat, "/"):
			seg := strings.TrimSuffix(pat, "/")
			for _, s := range strings.Split(relPath, "/") {
				if s == seg {
					return true
				}
			}
		case strings.HasPrefix(pat, "**/"):
			suffix := strings.TrimPrefix(pat, "**/")
			if ok, _ := filepath.Match(suffix, baseName(relPath)); ok {
				return true
			}
		default:
			if ok, _ := filepath.Match(pat, baseName(relPath)); ok {
				return true
			}
			if strings.Contains(relPath, pat) {
				return true
			}
		}
	}
	return false
}

// getGitignoreMatcher returns (building and caching if necessary) the
// gitignore matcher for root.
func (f *FileFilter) getGitignoreMatcher(root string) *gitignore.Matcher {
	f.gitignoreMu.RLock()
	if m, ok := f.gitignores.Get(root); ok {
		f.gitignoreMu.RUnlock()
		return m
	}
	f.gitignoreMu.RUnlock()

	m, err := gitignore.Load(root)
	if err != nil {
		m = nil
	}

	f.gitignoreMu.Lock()
	f.gitignores.Add(root, m)
	f.gitignoreMu.Unlock()
	return m
}

// InvalidateGitignoreCache drops the cached matcher for root, forcing a
// reload on next use (e.g. after a watcher event on .gitignore itself).
func (f *FileFilter) InvalidateGitignoreCache(root string) {
	f.gitignoreMu.Lock()
	f.gitignores.Remove(root)
	f.gitignoreMu.Unlock()
}

// isBinaryFile sniffs the first 512 bytes of path for a NUL byte.
func isBinaryFile(path string) bool {
	fh, err := os.Open(path)
	if err != nil {
		return false
	}
	defer fh.Close()

	buf := make([]byte, 512)
	n, _ := fh.Read(buf)
	return bytes.IndexByte(buf[:n], 0) != -1
}
