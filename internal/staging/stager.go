// Package staging normalizes archive sources into a canonical directory
// tree. Directories are staged in place; supported archive formats are
// expanded into a scratch directory first. Either way the result is a
// deterministic, junk-filtered manifest that downstream packaging can rely
// on for reproducible output.
package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"coldvault/internal/logging"
	"coldvault/internal/services"
)

// ForeignExtractor expands archive formats that have no native decoder.
type ForeignExtractor interface {
	Extract(ctx context.Context, archivePath, destDir string) error
}

// Entry is one manifest row, relative to the staged root.
type Entry struct {
	RelPath string
	IsDir   bool
	Size    int64
	Mode    fs.FileMode
}

// Summary aggregates the staged tree for metadata and progress reporting.
type Summary struct {
	Files         int
	Dirs          int
	TotalBytes    int64
	HasSingleRoot bool
	RootName      string
}

// Staged describes a normalized source ready for packaging.
type Staged struct {
	// Root is the directory whose contents get packaged.
	Root string
	// Scratch is the temporary extraction directory, empty when the
	// source was a directory staged in place.
	Scratch string
	// Entries is the deterministic manifest, sorted by relative path.
	Entries []Entry
	Summary Summary
}

// Cleanup removes the scratch directory, if any. Safe to call more than
// once.
func (st *Staged) Cleanup() error {
	if st == nil || st.Scratch == "" {
		return nil
	}
	scratch := st.Scratch
	st.Scratch = ""
	return os.RemoveAll(scratch)
}

// Stager normalizes sources under a shared scratch base.
type Stager struct {
	scratchBase string
	foreign     ForeignExtractor
	logger      *slog.Logger
}

func New(scratchBase string, foreign ForeignExtractor, logger *slog.Logger) *Stager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stager{
		scratchBase: scratchBase,
		foreign:     foreign,
		logger:      logger.With(logging.String(logging.FieldComponent, "staging")),
	}
}

// Stage normalizes source, which may be a directory or a supported archive
// file. The caller owns the returned Staged and must call Cleanup.
func (s *Stager) Stage(ctx context.Context, source string) (*Staged, error) {
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, services.StageStaging, "stat", "source does not exist", err)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, services.Wrap(services.ErrPermission, services.StageStaging, "stat", "source not readable", err)
		}
		return nil, services.Wrap(services.ErrTransient, services.StageStaging, "stat", "stat source", err)
	}

	staged := &Staged{}
	if info.IsDir() {
		staged.Root = source
	} else {
		format := DetectFormat(source)
		if format == FormatUnknown {
			return nil, services.Wrap(services.ErrUnsupportedFormat, services.StageStaging, "detect",
				"unsupported source format: "+filepath.Base(source)+
					" (supported formats: "+strings.Join(FormatNames(), ", ")+")", nil)
		}
		scratch := filepath.Join(s.scratchBase, "stage-"+uuid.NewString())
		if err := os.MkdirAll(scratch, 0o755); err != nil {
			return nil, services.Wrap(services.ErrTransient, services.StageStaging, "scratch", "create scratch directory", err)
		}
		staged.Scratch = scratch
		logging.WithContext(ctx, s.logger).Debug("expanding source archive",
			logging.String("source", source),
			logging.String("format", format.String()),
			logging.String("scratch", scratch))
		if err := s.extract(ctx, source, format, scratch); err != nil {
			staged.Cleanup()
			return nil, err
		}
		staged.Root = collapseSingleRoot(scratch)
	}

	entries, summary, err := enumerate(ctx, staged.Root)
	if err != nil {
		staged.Cleanup()
		return nil, err
	}
	staged.Entries = entries
	staged.Summary = summary
	logging.WithContext(ctx, s.logger).Debug("source staged",
		logging.Int("files", summary.Files),
		logging.Int("dirs", summary.Dirs),
		logging.Int64("bytes", summary.TotalBytes))
	return staged, nil
}

func (s *Stager) extract(ctx context.Context, source string, format Format, dest string) error {
	if format.Native() {
		return extractNative(ctx, source, format, dest)
	}
	if s.foreign == nil {
		return services.Wrap(services.ErrToolUnavailable, services.StageStaging, "extract",
			"no extractor available for "+format.String(), nil)
	}
	return s.foreign.Extract(ctx, source, dest)
}

// collapseSingleRoot descends into dir while it contains exactly one entry
// and that entry is a directory. Archives conventionally wrap their payload
// in a single top-level folder; packaging the payload directly keeps the
// container contents stable across re-wrapping.
func collapseSingleRoot(dir string) string {
	for {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) != 1 || !entries[0].IsDir() {
			return dir
		}
		dir = filepath.Join(dir, entries[0].Name())
	}
}

func enumerate(ctx context.Context, root string) ([]Entry, Summary, error) {
	var entries []Entry
	var summary Summary
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == root {
			return nil
		}
		if IsJunkName(d.Name(), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entry := Entry{RelPath: filepath.ToSlash(rel), IsDir: d.IsDir()}
		if d.IsDir() {
			summary.Dirs++
		} else {
			info, err := d.Info()
			if err != nil {
				return err
			}
			entry.Size = info.Size()
			entry.Mode = info.Mode()
			summary.Files++
			summary.TotalBytes += info.Size()
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, Summary{}, services.Wrap(services.ErrCancelled, services.StageStaging, "enumerate", "staging cancelled", err)
		}
		return nil, Summary{}, services.Wrap(services.ErrTransient, services.StageStaging, "enumerate", "enumerate source tree", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })
	fillSingleRoot(entries, &summary)
	return entries, summary, nil
}

func fillSingleRoot(entries []Entry, summary *Summary) {
	if len(entries) == 0 {
		return
	}
	first, _, _ := strings.Cut(entries[0].RelPath, "/")
	for _, e := range entries[1:] {
		head, _, _ := strings.Cut(e.RelPath, "/")
		if head != first {
			return
		}
	}
	// A lone top-level file is not a root directory.
	if entries[0].RelPath == first && !entries[0].IsDir && len(entries) == 1 {
		return
	}
	summary.HasSingleRoot = true
	summary.RootName = first
}
