package staging

import (
	"path/filepath"
	"strings"
)

// Platform bookkeeping files and tool caches that have no business inside a
// cold storage archive. The table is extensible: exact names, glob patterns,
// and directory names are matched case-insensitively against each path
// element.
var (
	junkNames = map[string]struct{}{
		".ds_store":          {},
		".localized":         {},
		".spotlight-v100":    {},
		".trashes":           {},
		".fseventsd":         {},
		".documentrevisions-v100": {},
		".temporaryitems":    {},
		".apdisk":            {},
		"thumbs.db":          {},
		"ehthumbs.db":        {},
		"desktop.ini":        {},
		"$recycle.bin":       {},
		"system volume information": {},
		".directory":         {},
	}

	junkPatterns = []string{
		"._*",
		"*.swp",
		"*.swo",
		"*~",
	}

	junkDirs = map[string]struct{}{
		".git":         {},
		".svn":         {},
		".hg":          {},
		".bzr":         {},
		"__pycache__":  {},
		".mypy_cache":  {},
		".pytest_cache": {},
		"node_modules": {},
		".idea":        {},
		".vscode":      {},
		".cache":       {},
	}
)

// IsJunkName reports whether a single path element names platform junk.
func IsJunkName(name string, isDir bool) bool {
	lower := strings.ToLower(name)
	if isDir {
		if _, ok := junkDirs[lower]; ok {
			return true
		}
	}
	if _, ok := junkNames[lower]; ok {
		return true
	}
	for _, pattern := range junkPatterns {
		if matched, _ := filepath.Match(pattern, lower); matched {
			return true
		}
	}
	return false
}
