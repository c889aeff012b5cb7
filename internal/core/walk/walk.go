// Package walk enumerates workspace source files, honoring .gitignore and
// the include/exclude globs from the index configuration.
package walk

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

type Options struct {
	IncludeGlobs []string
	ExcludeGlobs []string
	ScanAll      bool
}

func ListFiles(root string, opts Options) ([]string, error) {
	filter, err := NewFilter(root, opts)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if !filter.ShouldInclude(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if filter.ShouldInclude(rel, false) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// IsSourceFile reports whether the name has an extension the extractors
// understand. Without include globs, only these files are walked.
func IsSourceFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".go", ".c", ".cc", ".cpp", ".cxx", ".h", ".hh", ".hpp", ".hxx":
		return true
	default:
		return false
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isDefaultSkippedDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "build", "dist", "target":
		return true
	default:
		return false
	}
}

func anyGlobMatch(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matchesGlob(pat, rel) {
			return true
		}
	}
	return false
}

func matchesGlob(pattern string, rel string) bool {
	pat := strings.TrimSpace(pattern)
	if pat == "" {
		return false
	}
	pat = strings.ReplaceAll(pat, "\\", "/")
	rel = filepath.ToSlash(rel)

	// Support csv passed via -x "*.cc,*.h" when not using StringSliceVar.
	if strings.Contains(pat, ",") {
		for _, piece := range strings.Split(pat, ",") {
			if matchesGlob(strings.TrimSpace(piece), rel) {
				return true
			}
		}
		return false
	}

	// Treat patterns without path separators as basename patterns.
	if !strings.Contains(pat, "/") {
		ok, _ := path.Match(pat, path.Base(rel))
		return ok
	}

	ok, _ := path.Match(pat, rel)
	return ok
}
