package gitignore

import (
	"os"
	"path/filepath"
)

// Load walks root and builds a single Matcher from every .gitignore file
// found (root's own plus any nested ones), each scoped to its containing
// directory via AddFromFile's base parameter. Returns a Matcher with zero
// rules (never nil) if root carries no .gitignore files at all, so callers
// can treat a "no gitignore" project the same as "writes nothing".
func Load(root string) (*Matcher, error) {
	m := New()

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Skip unreadable entries rather than aborting the whole scan.
			return nil
		}
		if info.IsDir() {
			name := info.Name()
			if path != root && (name == ".git" || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() != ".gitignore" {
			return nil
		}

		rel, relErr := filepath.Rel(root, filepath.Dir(path))
		if relErr != nil {
			return nil
		}
		base := filepath.ToSlash(rel)
		if base == "." {
			base = ""
		}
		return m.AddFromFile(path, base)
	})
	if err != nil {
		return m, err
	}
	return m, nil
}
