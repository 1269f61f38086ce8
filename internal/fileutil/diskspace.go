package fileutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FreeSpace reports the bytes available to unprivileged writers on the
// filesystem containing path.
func FreeSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// CheckDiskSpace returns an error when the filesystem containing path has
// fewer than required bytes available.
func CheckDiskSpace(path string, required uint64) error {
	free, err := FreeSpace(path)
	if err != nil {
		return err
	}
	if free < required {
		return fmt.Errorf("insufficient disk space on %s: %d bytes available, %d required", path, free, required)
	}
	return nil
}
