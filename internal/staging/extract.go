package staging

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"coldvault/internal/services"
)

func extractNative(ctx context.Context, source string, format Format, dest string) error {
	if format == FormatZip {
		return extractZip(ctx, source, dest)
	}

	f, err := os.Open(source)
	if err != nil {
		return services.Wrap(services.ErrTransient, services.StageStaging, "extract", "open source archive", err)
	}
	defer f.Close()

	var reader io.Reader = f
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return services.Wrap(services.ErrIntegrity, services.StageStaging, "extract", "corrupt gzip stream", err)
		}
		defer gz.Close()
		reader = gz
	case FormatTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return services.Wrap(services.ErrIntegrity, services.StageStaging, "extract", "corrupt zstd stream", err)
		}
		defer zr.Close()
		reader = zr
	case FormatTarLz4:
		reader = lz4.NewReader(f)
	case FormatTar:
	default:
		return services.Wrap(services.ErrUnsupportedFormat, services.StageStaging, "extract",
			"no native decoder for "+format.String(), nil)
	}
	return extractTarStream(ctx, reader, dest)
}

func extractTarStream(ctx context.Context, reader io.Reader, dest string) error {
	tr := tar.NewReader(reader)
	for {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCancelled, services.StageStaging, "extract", "extraction cancelled", err)
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return services.Wrap(services.ErrIntegrity, services.StageStaging, "extract", "corrupt tar stream", err)
		}
		target, ok := safeJoin(dest, header.Name)
		if !ok {
			return services.Wrap(services.ErrIntegrity, services.StageStaging, "extract",
				"archive entry escapes extraction root: "+header.Name, nil)
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return services.Wrap(services.ErrTransient, services.StageStaging, "extract", "create directory", err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return services.Wrap(services.ErrTransient, services.StageStaging, "extract", "create directory", err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return services.Wrap(services.ErrTransient, services.StageStaging, "extract", "create symlink", err)
			}
		default:
			// Device nodes, fifos and hard links are not archive payload.
		}
	}
}

func extractZip(ctx context.Context, source, dest string) error {
	zr, err := zip.OpenReader(source)
	if err != nil {
		return services.Wrap(services.ErrIntegrity, services.StageStaging, "extract", "corrupt zip archive", err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCancelled, services.StageStaging, "extract", "extraction cancelled", err)
		}
		target, ok := safeJoin(dest, file.Name)
		if !ok {
			return services.Wrap(services.ErrIntegrity, services.StageStaging, "extract",
				"archive entry escapes extraction root: "+file.Name, nil)
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return services.Wrap(services.ErrTransient, services.StageStaging, "extract", "create directory", err)
			}
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return services.Wrap(services.ErrIntegrity, services.StageStaging, "extract", "read zip entry", err)
		}
		err = writeEntry(target, rc, file.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(target string, reader io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, services.StageStaging, "extract", "create directory", err)
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return services.Wrap(services.ErrTransient, services.StageStaging, "extract", "create file", err)
	}
	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		return services.Wrap(services.ErrIntegrity, services.StageStaging, "extract", "write file contents", err)
	}
	if err := out.Close(); err != nil {
		return services.Wrap(services.ErrTransient, services.StageStaging, "extract", "close file", err)
	}
	return nil
}

// safeJoin resolves name under root and rejects entries that would land
// outside it.
func safeJoin(root, name string) (string, bool) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(root, cleaned), true
}
