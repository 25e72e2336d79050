package mirror

import (
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/mirrorbox/mirrorbox/internal/utils"
)

// Always excluded, on top of the configured patterns.
var defaultExcludeLines = []string{
	// mirrorbox
	".mirrorbox/",
	"*.mbx.tmp.*",
	// VCS
	".git/",
	// general
	"*.tmp",
	"*.swp",
	// OS
	".DS_Store",
	"Thumbs.db",
}

// RuleSet resolves the configured include patterns against a source tree
// and applies gitignore-style exclusions. Exclusions always win, regardless
// of declaration order.
type RuleSet struct {
	includes []string
	exclude  *gitignore.GitIgnore
}

func NewRuleSet(includes, excludes []string) *RuleSet {
	lines := append([]string{}, defaultExcludeLines...)
	lines = append(lines, excludes...)

	return &RuleSet{
		includes: includes,
		exclude:  gitignore.CompileIgnoreLines(lines...),
	}
}

// Excluded reports whether the slash-normalized relative path matches any
// exclude pattern.
func (r *RuleSet) Excluded(relPath string) bool {
	return r.exclude.MatchesPath(relPath)
}

// Resolve expands every include pattern under sourceDir, subtracts
// exclusions, and returns the deduplicated file set sorted
// lexicographically by relative path. The sort makes fingerprints and copy
// order independent of filesystem traversal order.
func (r *RuleSet) Resolve(sourceDir string) ([]string, error) {
	fsys := os.DirFS(sourceDir)
	seen := make(map[string]struct{})

	for _, pattern := range r.includes {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("bad include pattern %q: %w", pattern, err)
		}

		for _, match := range matches {
			relPath := utils.NormPath(match)
			if r.Excluded(relPath) {
				continue
			}

			// keep stat failures (e.g. dangling symlinks) in the set so the
			// scan can record them as failures instead of dropping them
			if info, err := fs.Stat(fsys, match); err == nil && info.IsDir() {
				continue
			}
			seen[relPath] = struct{}{}
		}
	}

	resolved := make([]string, 0, len(seen))
	for relPath := range seen {
		resolved = append(resolved, relPath)
	}
	sort.Strings(resolved)

	return resolved, nil
}
