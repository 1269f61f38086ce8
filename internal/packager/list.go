package packager

import (
	"archive/tar"
	"context"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"coldvault/internal/services"
)

// ContentEntry describes one container entry for listings.
type ContentEntry struct {
	Path string
	Size int64
	Mode fs.FileMode
	// LinkTarget is set for symbolic links.
	LinkTarget string
	IsDir      bool
}

// List walks the container's entry index without extracting any file data.
// Entries come back in container order, which builds keep lexicographic.
func List(ctx context.Context, containerPath string) ([]ContentEntry, error) {
	f, err := os.Open(containerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, services.StageExtraction, "list", "container missing", err)
		}
		return nil, services.Wrap(services.ErrTransient, services.StageExtraction, "list", "open container", err)
	}
	defer f.Close()

	decoder, err := zstd.NewReader(f)
	if err != nil {
		return nil, services.Wrap(services.ErrIntegrity, services.StageExtraction, "list", "corrupt zstd stream", err)
	}
	defer decoder.Close()

	var entries []ContentEntry
	tr := tar.NewReader(decoder)
	for {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrCancelled, services.StageExtraction, "list", "listing cancelled", err)
		}
		header, err := tr.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, services.Wrap(services.ErrIntegrity, services.StageExtraction, "list", "corrupt tar structure", err)
		}
		entry := ContentEntry{
			Path:  strings.TrimSuffix(header.Name, "/"),
			Mode:  fs.FileMode(header.Mode),
			IsDir: header.Typeflag == tar.TypeDir,
		}
		if header.Typeflag == tar.TypeReg {
			entry.Size = header.Size
		}
		if header.Typeflag == tar.TypeSymlink {
			entry.LinkTarget = header.Linkname
		}
		entries = append(entries, entry)
	}
}
