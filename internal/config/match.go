package config

import (
	"path"
	"path/filepath"
	"strings"
)

// PathMatcher applies the highlight whitelist/blacklist globs. It is built
// once from configuration at startup (or on reload) and handed to the
// highlight engine; it keeps no hidden per-call state.
type PathMatcher struct {
	whitelist []string
	blacklist []string
}

func NewPathMatcher(whitelist, blacklist []string) *PathMatcher {
	return &PathMatcher{
		whitelist: normalizeGlobs(whitelist),
		blacklist: normalizeGlobs(blacklist),
	}
}

// Matches reports whether path passes the filter: it must match some
// whitelist glob (if any are set) and no blacklist glob.
func (m *PathMatcher) Matches(p string) bool {
	if m == nil {
		return true
	}
	p = filepath.ToSlash(p)
	if len(m.whitelist) > 0 && !anyGlobMatch(m.whitelist, p) {
		return false
	}
	return !anyGlobMatch(m.blacklist, p)
}

func normalizeGlobs(patterns []string) []string {
	var out []string
	for _, pat := range patterns {
		pat = strings.TrimSpace(strings.ReplaceAll(pat, "\\", "/"))
		if pat == "" {
			continue
		}
		out = append(out, pat)
	}
	return out
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
	// Patterns without path separators match the basename only.
	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(rel))
		return ok
	}
	ok, _ := path.Match(pattern, rel)
	return ok
}
