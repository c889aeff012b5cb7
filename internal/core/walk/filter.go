package walk

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Filter answers include/exclude questions for workspace paths: the initial
// walk and the filesystem watcher share one instance so both apply the same
// gitignore patterns and glob options.
type Filter struct {
	opts    Options
	ignored gitignore.Matcher
}

// NewFilter reads the workspace's .gitignore files once; ScanAll skips them
// along with every other default exclusion.
func NewFilter(root string, opts Options) (*Filter, error) {
	f := &Filter{opts: opts}
	if !opts.ScanAll {
		patterns, err := gitignore.ReadPatterns(osfs.New(root), nil)
		if err != nil {
			return nil, err
		}
		f.ignored = gitignore.NewMatcher(patterns)
	}
	return f, nil
}

func (f *Filter) gitIgnored(rel string, isDir bool) bool {
	if f.ignored == nil {
		return false
	}
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return false
	}
	return f.ignored.Match(strings.Split(rel, "/"), isDir)
}

// ShouldInclude decides for a slash-or-native relative path. Excluded
// directories prune their whole subtree.
func (f *Filter) ShouldInclude(rel string, isDir bool) bool {
	if f == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	name := path.Base(rel)

	if isDir {
		if f.opts.ScanAll {
			return true
		}
		return !isHidden(name) && !isDefaultSkippedDir(name) && !f.gitIgnored(rel, true)
	}

	if !f.opts.ScanAll && (isHidden(name) || f.gitIgnored(rel, false)) {
		return false
	}
	if len(f.opts.IncludeGlobs) > 0 {
		if !anyGlobMatch(f.opts.IncludeGlobs, rel) {
			return false
		}
	} else if !f.opts.ScanAll && !IsSourceFile(name) {
		return false
	}
	return !anyGlobMatch(f.opts.ExcludeGlobs, rel)
}
