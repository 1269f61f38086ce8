package packager

import (
	"archive/tar"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/zstd"

	"coldvault/internal/logging"
	"coldvault/internal/services"
)

// ExtractOptions tunes container expansion.
type ExtractOptions struct {
	// ApplyRenameMapping forces the Windows-safe rename mapping even on
	// platforms that do not need it. On Windows it is always applied.
	ApplyRenameMapping bool
}

// ExtractReport describes what an extraction produced.
type ExtractReport struct {
	Files int
	Dirs  int
	Bytes int64
	// Renamed maps original entry paths to the names actually written,
	// for entries the rename mapping touched.
	Renamed map[string]string
}

// Extractor expands containers.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{logger: logger.With(logging.String(logging.FieldComponent, "packager"))}
}

// Extract expands containerPath into destDir. Entries with absolute paths
// or parent traversal are rejected outright: a container is trusted data
// only after verification, and even then stays inside its destination.
func (e *Extractor) Extract(ctx context.Context, containerPath, destDir string, opts ExtractOptions) (*ExtractReport, error) {
	f, err := os.Open(containerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, services.StageExtraction, "open", "container missing", err)
		}
		return nil, services.Wrap(services.ErrTransient, services.StageExtraction, "open", "open container", err)
	}
	defer f.Close()

	decoder, err := zstd.NewReader(f)
	if err != nil {
		return nil, services.Wrap(services.ErrIntegrity, services.StageExtraction, "decode", "corrupt zstd stream", err)
	}
	defer decoder.Close()

	applyMapping := opts.ApplyRenameMapping || runtime.GOOS == "windows"
	var mapping map[string]string
	if applyMapping {
		names, err := listEntryNames(ctx, containerPath)
		if err != nil {
			return nil, err
		}
		mapping = BuildMapping(names)
	}

	report := &ExtractReport{Renamed: map[string]string{}}
	tr := tar.NewReader(decoder)
	for {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrCancelled, services.StageExtraction, "extract", "extraction cancelled", err)
		}
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrIntegrity, services.StageExtraction, "extract", "corrupt tar structure", err)
		}

		name := strings.TrimSuffix(header.Name, "/")
		if mapped, ok := mapping[name]; ok {
			report.Renamed[name] = mapped
			logging.WithContext(ctx, e.logger).Debug("applying rename mapping",
				logging.String("from", name),
				logging.String("to", mapped))
			name = mapped
		}
		target, ok := safeJoin(destDir, name)
		if !ok {
			return nil, services.Wrap(services.ErrIntegrity, services.StageExtraction, "extract",
				"container entry escapes destination: "+header.Name, nil)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, services.Wrap(services.ErrTransient, services.StageExtraction, "extract", "create directory", err)
			}
			report.Dirs++
		case tar.TypeReg:
			n, err := writeRegular(target, tr, os.FileMode(header.Mode).Perm())
			if err != nil {
				return nil, err
			}
			report.Files++
			report.Bytes += n
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, services.Wrap(services.ErrTransient, services.StageExtraction, "extract", "create directory", err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return nil, services.Wrap(services.ErrTransient, services.StageExtraction, "extract", "create symlink", err)
			}
			report.Files++
		}
	}
	return report, nil
}

// listEntryNames does a metadata-only pass to collect every entry path so
// the rename mapping can resolve collisions before anything is written.
func listEntryNames(ctx context.Context, containerPath string) ([]string, error) {
	f, err := os.Open(containerPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, services.StageExtraction, "scan", "open container", err)
	}
	defer f.Close()
	decoder, err := zstd.NewReader(f)
	if err != nil {
		return nil, services.Wrap(services.ErrIntegrity, services.StageExtraction, "scan", "corrupt zstd stream", err)
	}
	defer decoder.Close()

	var names []string
	tr := tar.NewReader(decoder)
	for {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrCancelled, services.StageExtraction, "scan", "extraction cancelled", err)
		}
		header, err := tr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, services.Wrap(services.ErrIntegrity, services.StageExtraction, "scan", "corrupt tar structure", err)
		}
		names = append(names, strings.TrimSuffix(header.Name, "/"))
	}
}

func writeRegular(target string, reader io.Reader, perm os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, services.Wrap(services.ErrTransient, services.StageExtraction, "extract", "create directory", err)
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, services.StageExtraction, "extract", "create file", err)
	}
	n, err := io.Copy(out, reader)
	if err != nil {
		out.Close()
		return 0, services.Wrap(services.ErrIntegrity, services.StageExtraction, "extract", "write file contents", err)
	}
	if err := out.Close(); err != nil {
		return 0, services.Wrap(services.ErrTransient, services.StageExtraction, "extract", "close file", err)
	}
	return n, nil
}

func safeJoin(root, name string) (string, bool) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(root, cleaned), true
}
