package staging

import "strings"

// Format identifies how a source archive gets expanded.
type Format int

const (
	FormatUnknown Format = iota
	FormatTar
	FormatTarGz
	FormatTarZst
	FormatTarLz4
	FormatZip
	FormatSevenZip
	FormatRar
	FormatTarBz2
	FormatTarXz
)

func (f Format) String() string {
	switch f {
	case FormatTar:
		return "tar"
	case FormatTarGz:
		return "tar.gz"
	case FormatTarZst:
		return "tar.zst"
	case FormatTarLz4:
		return "tar.lz4"
	case FormatZip:
		return "zip"
	case FormatSevenZip:
		return "7z"
	case FormatRar:
		return "rar"
	case FormatTarBz2:
		return "tar.bz2"
	case FormatTarXz:
		return "tar.xz"
	default:
		return "unknown"
	}
}

// Native reports whether the format is decoded in-process. The rest are
// delegated to the external extraction tool.
func (f Format) Native() bool {
	switch f {
	case FormatTar, FormatTarGz, FormatTarZst, FormatTarLz4, FormatZip:
		return true
	}
	return false
}

// Suffixes are checked longest-first so ".tar.gz" wins over ".gz"-style
// confusion.
var formatSuffixes = []struct {
	suffix string
	format Format
}{
	{".tar.zst", FormatTarZst},
	{".tar.lz4", FormatTarLz4},
	{".tar.gz", FormatTarGz},
	{".tar.bz2", FormatTarBz2},
	{".tar.xz", FormatTarXz},
	{".tzst", FormatTarZst},
	{".tgz", FormatTarGz},
	{".tbz2", FormatTarBz2},
	{".txz", FormatTarXz},
	{".tar", FormatTar},
	{".zip", FormatZip},
	{".7z", FormatSevenZip},
	{".rar", FormatRar},
}

// DetectFormat maps a file name to a Format by extension.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	for _, entry := range formatSuffixes {
		if strings.HasSuffix(lower, entry.suffix) {
			return entry.format
		}
	}
	return FormatUnknown
}

// FormatInfo describes one supported input format for user-facing listings.
type FormatInfo struct {
	Name       string
	Extensions []string
	Native     bool
}

// FormatNames lists the supported format names, for error messages and
// user-facing listings.
func FormatNames() []string {
	infos := SupportedFormats()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names
}

// SupportedFormats lists every accepted source archive format.
func SupportedFormats() []FormatInfo {
	return []FormatInfo{
		{Name: "tar", Extensions: []string{".tar"}, Native: true},
		{Name: "tar+gzip", Extensions: []string{".tar.gz", ".tgz"}, Native: true},
		{Name: "tar+zstd", Extensions: []string{".tar.zst", ".tzst"}, Native: true},
		{Name: "tar+lz4", Extensions: []string{".tar.lz4"}, Native: true},
		{Name: "zip", Extensions: []string{".zip"}, Native: true},
		{Name: "7-zip", Extensions: []string{".7z"}, Native: false},
		{Name: "rar", Extensions: []string{".rar"}, Native: false},
		{Name: "tar+bzip2", Extensions: []string{".tar.bz2", ".tbz2"}, Native: false},
		{Name: "tar+xz", Extensions: []string{".tar.xz", ".txz"}, Native: false},
	}
}
