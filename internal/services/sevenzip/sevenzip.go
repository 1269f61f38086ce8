// Package sevenzip wraps the 7-Zip command line tool. It is only used to
// expand foreign source archives whose formats have no native decoder
// (7z, rar, bzip2- and xz-compressed tarballs).
package sevenzip

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coldvault/internal/logging"
	"coldvault/internal/services"
)

// Client invokes the 7z binary for extraction.
type Client struct {
	binary   string
	timeout  time.Duration
	executor services.Executor
	logger   *slog.Logger
}

func New(binary string, timeout time.Duration, executor services.Executor, logger *slog.Logger) *Client {
	if executor == nil {
		executor = services.CommandExecutor{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		binary:   binary,
		timeout:  timeout,
		executor: executor,
		logger:   logger.With(logging.String(logging.FieldComponent, "sevenzip")),
	}
}

// Extract expands archivePath into destDir. Compressed tarballs (.tar.bz2,
// .tar.xz) are decompressed and untarred in a single piped pass.
func (c *Client) Extract(ctx context.Context, archivePath, destDir string) error {
	lower := strings.ToLower(archivePath)
	tarball := strings.HasSuffix(lower, ".tar.bz2") || strings.HasSuffix(lower, ".tbz2") ||
		strings.HasSuffix(lower, ".tar.xz") || strings.HasSuffix(lower, ".txz")
	if tarball {
		return c.extractTarball(ctx, archivePath, destDir)
	}

	args := []string{"x", "-y", "-o" + destDir, archivePath}
	exitCode, tail, err := c.run(ctx, "", args)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return services.Wrap(services.ErrIntegrity, services.StageStaging, "extract",
			fmt.Sprintf("7z exited %d extracting %s: %s", exitCode, filepath.Base(archivePath), tail), nil)
	}
	return nil
}

// extractTarball performs the two-step expansion 7z needs for compressed
// tar archives: decompress to a scratch tar in destDir, then untar it.
func (c *Client) extractTarball(ctx context.Context, archivePath, destDir string) error {
	exitCode, tail, err := c.run(ctx, "", []string{"x", "-y", "-o" + destDir, archivePath})
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return services.Wrap(services.ErrIntegrity, services.StageStaging, "extract",
			fmt.Sprintf("7z exited %d decompressing %s: %s", exitCode, filepath.Base(archivePath), tail), nil)
	}

	inner, err := filepath.Glob(filepath.Join(destDir, "*.tar"))
	if err != nil || len(inner) != 1 {
		return services.Wrap(services.ErrIntegrity, services.StageStaging, "extract",
			fmt.Sprintf("expected one inner tar after decompressing %s, found %d", filepath.Base(archivePath), len(inner)), err)
	}

	exitCode, tail, err = c.run(ctx, "", []string{"x", "-y", "-ttar", "-o" + destDir, inner[0]})
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return services.Wrap(services.ErrIntegrity, services.StageStaging, "extract",
			fmt.Sprintf("7z exited %d untarring %s: %s", exitCode, filepath.Base(inner[0]), tail), nil)
	}
	return removeInner(inner[0])
}

func removeInner(path string) error {
	if err := os.Remove(path); err != nil {
		return services.Wrap(services.ErrTransient, services.StageStaging, "extract", "remove inner tar", err)
	}
	return nil
}

func (c *Client) run(ctx context.Context, dir string, args []string) (int, string, error) {
	var tail []string
	cmd := services.Command{
		Binary:  c.binary,
		Args:    args,
		Dir:     dir,
		Timeout: c.timeout,
		OnOutput: func(line string) {
			c.logger.Debug("7z output", logging.String("line", line))
			tail = append(tail, line)
			if len(tail) > 10 {
				tail = tail[1:]
			}
		},
	}
	exitCode, err := c.executor.Run(ctx, cmd)
	if err != nil {
		return -1, "", services.Classify(err)
	}
	return exitCode, strings.Join(tail, " | "), nil
}
