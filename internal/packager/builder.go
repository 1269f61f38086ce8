// Package packager builds and expands the tar+zstd container at the heart
// of every archive unit. Container output is byte-reproducible: entries are
// written in the staged manifest's lexicographic order with zeroed
// timestamps and neutral ownership, so packaging the same tree with the
// same profile always yields identical bytes.
package packager

import (
	"archive/tar"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"coldvault/internal/fileutil"
	"coldvault/internal/logging"
	"coldvault/internal/profile"
	"coldvault/internal/services"
	"coldvault/internal/staging"
)

// partialSuffix marks in-flight container output. A crash leaves the
// .partial behind and never a truncated final container.
const partialSuffix = ".partial"

// BuildRequest describes one container build.
type BuildRequest struct {
	// StagedRoot is the normalized source directory.
	StagedRoot string
	// Entries is the deterministic manifest, sorted by relative path.
	Entries []staging.Entry
	// OutputPath is the final container location.
	OutputPath string
	// Profile provides the resolved compression parameters.
	Profile profile.Profile
}

// BuildResult reports the finished container.
type BuildResult struct {
	ContainerPath  string
	CompressedSize int64
}

// Builder produces containers.
type Builder struct {
	logger *slog.Logger
}

func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Builder{logger: logger.With(logging.String(logging.FieldComponent, "packager"))}
}

// Build writes the container to OutputPath. Output lands in a .partial
// sibling first and is renamed into place only after a successful sync, then
// re-read front to back as an immediate structural check.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, services.StagePackaging, "build", "create output directory", err)
	}

	partial := req.OutputPath + partialSuffix
	if err := b.writeContainer(ctx, req, partial); err != nil {
		os.Remove(partial)
		return nil, err
	}
	if err := fileutil.RenameAtomic(partial, req.OutputPath); err != nil {
		os.Remove(partial)
		return nil, services.Wrap(services.ErrTransient, services.StagePackaging, "build", "finalize container", err)
	}

	check, err := StructuralCheck(ctx, req.OutputPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(req.OutputPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, services.StagePackaging, "build", "stat container", err)
	}
	logging.WithContext(ctx, b.logger).Debug("container built",
		logging.String("path", req.OutputPath),
		logging.Int64("compressed_bytes", info.Size()),
		logging.Int("entries", check.Entries))
	return &BuildResult{ContainerPath: req.OutputPath, CompressedSize: info.Size()}, nil
}

func (b *Builder) writeContainer(ctx context.Context, req BuildRequest, path string) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return services.Wrap(services.ErrTransient, services.StagePackaging, "build", "create container file", err)
	}
	defer out.Close()

	encoder, err := zstd.NewWriter(out,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(req.Profile.Level)),
		zstd.WithEncoderConcurrency(encoderConcurrency(req.Profile.Threads)),
		zstd.WithWindowSize(int(req.Profile.WindowSize)),
	)
	if err != nil {
		return services.Wrap(services.ErrTransient, services.StagePackaging, "build", "initialize zstd encoder", err)
	}

	tw := tar.NewWriter(encoder)
	for _, entry := range req.Entries {
		if err := ctx.Err(); err != nil {
			encoder.Close()
			return services.Wrap(services.ErrCancelled, services.StagePackaging, "build", "packaging cancelled", err)
		}
		if err := b.writeEntry(tw, req.StagedRoot, entry); err != nil {
			encoder.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		encoder.Close()
		return services.Wrap(services.ErrTransient, services.StagePackaging, "build", "finalize tar stream", err)
	}
	if err := encoder.Close(); err != nil {
		return services.Wrap(services.ErrTransient, services.StagePackaging, "build", "finalize zstd stream", err)
	}
	if err := out.Sync(); err != nil {
		return services.Wrap(services.ErrTransient, services.StagePackaging, "build", "sync container", err)
	}
	return nil
}

func (b *Builder) writeEntry(tw *tar.Writer, root string, entry staging.Entry) error {
	header := &tar.Header{
		Format:  tar.FormatPAX,
		Name:    entry.RelPath,
		ModTime: time.Unix(0, 0).UTC(),
		Uid:     0,
		Gid:     0,
	}
	sourcePath := filepath.Join(root, filepath.FromSlash(entry.RelPath))

	switch {
	case entry.IsDir:
		header.Typeflag = tar.TypeDir
		header.Name += "/"
		header.Mode = 0o755
	case entry.Mode&fs.ModeSymlink != 0:
		target, err := os.Readlink(sourcePath)
		if err != nil {
			return services.Wrap(services.ErrTransient, services.StagePackaging, "build", "read symlink "+entry.RelPath, err)
		}
		header.Typeflag = tar.TypeSymlink
		header.Linkname = target
		header.Mode = 0o777
	default:
		header.Typeflag = tar.TypeReg
		header.Size = entry.Size
		header.Mode = int64(entry.Mode.Perm())
	}

	if err := tw.WriteHeader(header); err != nil {
		return services.Wrap(services.ErrTransient, services.StagePackaging, "build", "write header "+entry.RelPath, err)
	}
	if header.Typeflag != tar.TypeReg {
		return nil
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return services.Wrap(services.ErrTransient, services.StagePackaging, "build", "open "+entry.RelPath, err)
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		// Size drift between staging and packaging means the source
		// changed underfoot.
		return services.Wrap(services.ErrIntegrity, services.StagePackaging, "build", "stream "+entry.RelPath, err)
	}
	return nil
}

// CheckReport summarizes a structural pass over a container.
type CheckReport struct {
	Entries           int
	UncompressedBytes int64
}

// StructuralCheck decompresses and walks the whole container, confirming
// the zstd frames and tar structure are coherent. Contents are discarded.
func StructuralCheck(ctx context.Context, containerPath string) (*CheckReport, error) {
	f, err := os.Open(containerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, services.StageVerification, "structural", "container missing", err)
		}
		return nil, services.Wrap(services.ErrTransient, services.StageVerification, "structural", "open container", err)
	}
	defer f.Close()

	decoder, err := zstd.NewReader(f)
	if err != nil {
		return nil, services.Wrap(services.ErrIntegrity, services.StageVerification, "structural", "corrupt zstd stream", err)
	}
	defer decoder.Close()

	report := &CheckReport{}
	tr := tar.NewReader(decoder)
	for {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrCancelled, services.StageVerification, "structural", "check cancelled", err)
		}
		header, err := tr.Next()
		if err == io.EOF {
			return report, nil
		}
		if err != nil {
			return nil, services.Wrap(services.ErrIntegrity, services.StageVerification, "structural", "corrupt tar structure", err)
		}
		report.Entries++
		if header.Typeflag == tar.TypeReg {
			n, err := io.Copy(io.Discard, tr)
			if err != nil {
				return nil, services.Wrap(services.ErrIntegrity, services.StageVerification, "structural", "corrupt entry payload", err)
			}
			report.UncompressedBytes += n
		}
	}
}

// encoderConcurrency clamps the thread count to something the encoder
// accepts.
func encoderConcurrency(threads int) int {
	if threads < 1 {
		return 1
	}
	return threads
}
