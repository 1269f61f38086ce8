package packager

import (
	"strconv"
	"strings"
)

// Windows reserves device names regardless of extension: "con.txt" is as
// unusable as "con". Matching is case-insensitive against the stem.
var reservedNames = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {},
	"com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {},
	"lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

const invalidChars = `<>:"\|?*`

// maxNameBytes is the per-element limit common to NTFS and most POSIX
// filesystems.
const maxNameBytes = 255

// SafeElement rewrites a single path element so it is representable on a
// Windows filesystem. The mapping is pure and deterministic: the same input
// always yields the same output.
func SafeElement(name string) string {
	if name == "" {
		return "_"
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(invalidChars, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	out := b.String()

	// Trailing dots and spaces are silently dropped by Windows, which
	// would silently alias two distinct names.
	out = strings.TrimRight(out, ". ")
	if out == "" {
		out = "_"
	}

	stem := out
	if i := strings.IndexByte(out, '.'); i > 0 {
		stem = out[:i]
	}
	if _, reserved := reservedNames[strings.ToLower(stem)]; reserved {
		if i := strings.IndexByte(out, '.'); i > 0 {
			out = out[:i] + "__file" + out[i:]
		} else {
			out += "__file"
		}
	}

	if len(out) > maxNameBytes {
		out = truncateName(out, maxNameBytes)
	}
	return out
}

// truncateName shortens a name to limit bytes, keeping the extension and
// never splitting a UTF-8 sequence.
func truncateName(name string, limit int) string {
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i > 0 && len(name)-i <= 32 {
		ext = name[i:]
	}
	budget := limit - len(ext)
	if budget < 1 {
		budget = limit
		ext = ""
	}
	stem := name[:len(name)-len(ext)]
	for budget > 0 && !utf8Boundary(stem, budget) {
		budget--
	}
	return stem[:budget] + ext
}

func utf8Boundary(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return s[i]&0xC0 != 0x80
}

// BuildMapping computes the full rename mapping for a set of slash-separated
// relative paths. Case-insensitive collisions after sanitization get a
// numeric suffix, assigned in lexicographic input order so the mapping is
// deterministic.
func BuildMapping(paths []string) map[string]string {
	mapping := make(map[string]string, len(paths))
	seen := make(map[string]string)

	for _, path := range paths {
		elements := strings.Split(path, "/")
		safe := make([]string, len(elements))
		for i, el := range elements {
			safe[i] = SafeElement(el)
		}
		candidate := strings.Join(safe, "/")

		key := strings.ToLower(candidate)
		if prior, taken := seen[key]; taken && prior != path {
			candidate = disambiguate(candidate, seen)
			key = strings.ToLower(candidate)
		}
		seen[key] = path
		if candidate != path {
			mapping[path] = candidate
		}
	}
	return mapping
}

func disambiguate(candidate string, seen map[string]string) string {
	dir := ""
	name := candidate
	if i := strings.LastIndexByte(candidate, '/'); i >= 0 {
		dir = candidate[:i+1]
		name = candidate[i+1:]
	}
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		ext = name[i:]
		name = name[:i]
	}
	for n := 1; ; n++ {
		next := dir + name + "_" + strconv.Itoa(n) + ext
		if _, taken := seen[strings.ToLower(next)]; !taken {
			return next
		}
	}
}
