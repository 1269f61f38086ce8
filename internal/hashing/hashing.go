// Package hashing computes and checks the dual-hash integrity layer. Every
// container carries both a SHA-256 digest (universally verifiable with
// stock coreutils) and a BLAKE3 digest (fast enough to re-check large
// archives routinely). Both digests are computed in a single read pass.
package hashing

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"coldvault/internal/fileutil"
	"coldvault/internal/services"
)

// Algorithm names as they appear in metadata and sidecar extensions.
const (
	AlgorithmSHA256 = "sha256"
	AlgorithmBLAKE3 = "blake3"
)

// Digests holds the hex-encoded dual hashes of one file.
type Digests struct {
	SHA256 string
	BLAKE3 string
}

const copyChunk = 1 << 20

// Compute reads path once and returns both digests plus the byte count.
func Compute(ctx context.Context, path string) (Digests, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Digests{}, 0, services.Wrap(services.ErrNotFound, services.StageHashing, "compute", "file missing", err)
		}
		return Digests{}, 0, services.Wrap(services.ErrTransient, services.StageHashing, "compute", "open file", err)
	}
	defer f.Close()

	sha := sha256.New()
	b3 := blake3.New()
	n, err := copyWithContext(ctx, io.MultiWriter(sha, b3), f)
	if err != nil {
		return Digests{}, 0, err
	}
	return Digests{
		SHA256: hex.EncodeToString(sha.Sum(nil)),
		BLAKE3: hex.EncodeToString(b3.Sum(nil)),
	}, n, nil
}

// Verify re-hashes path with the named algorithm and compares against
// expected (hex, case-insensitive). A mismatch is a result, not an error.
func Verify(ctx context.Context, path, algorithm, expected string) (bool, error) {
	var hasher hash.Hash
	switch algorithm {
	case AlgorithmSHA256:
		hasher = sha256.New()
	case AlgorithmBLAKE3:
		hasher = blake3.New()
	default:
		return false, services.Wrap(services.ErrUnsupportedFormat, services.StageHashing, "verify",
			"unknown hash algorithm "+algorithm, nil)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, services.Wrap(services.ErrNotFound, services.StageHashing, "verify", "file missing", err)
		}
		return false, services.Wrap(services.ErrTransient, services.StageHashing, "verify", "open file", err)
	}
	defer f.Close()

	if _, err := copyWithContext(ctx, hasher, f); err != nil {
		return false, err
	}
	actual := hex.EncodeToString(hasher.Sum(nil))
	return strings.EqualFold(actual, expected), nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var total int64
	buf := make([]byte, copyChunk)
	for {
		if err := ctx.Err(); err != nil {
			return total, services.Wrap(services.ErrCancelled, services.StageHashing, "read", "hashing cancelled", err)
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, services.Wrap(services.ErrTransient, services.StageHashing, "read", "hash write", werr)
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, services.Wrap(services.ErrTransient, services.StageHashing, "read", "read file", err)
		}
	}
}

// SidecarPath returns the sidecar file name for a target and algorithm.
func SidecarPath(targetPath, algorithm string) string {
	return targetPath + "." + algorithm
}

// WriteSidecars writes one coreutils-compatible checksum file per
// algorithm next to the target, so `sha256sum -c` works without this tool.
func WriteSidecars(targetPath string, d Digests) error {
	base := filepath.Base(targetPath)
	for _, entry := range []struct{ algorithm, digest string }{
		{AlgorithmSHA256, d.SHA256},
		{AlgorithmBLAKE3, d.BLAKE3},
	} {
		line := fmt.Sprintf("%s  %s\n", entry.digest, base)
		if err := fileutil.WriteFileAtomic(SidecarPath(targetPath, entry.algorithm), []byte(line), 0o644); err != nil {
			return services.Wrap(services.ErrTransient, services.StageHashing, "sidecar", "write "+entry.algorithm+" sidecar", err)
		}
	}
	return nil
}

// ReadSidecar parses a coreutils-format checksum file and returns the hex
// digest and the file name it covers.
func ReadSidecar(path string) (digest, name string, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", services.Wrap(services.ErrNotFound, services.StageHashing, "sidecar", "sidecar missing", err)
		}
		return "", "", services.Wrap(services.ErrTransient, services.StageHashing, "sidecar", "open sidecar", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		digest, name, ok := strings.Cut(line, " ")
		if !ok {
			break
		}
		name = strings.TrimSpace(name)
		// coreutils uses "* " to flag binary mode.
		name = strings.TrimPrefix(name, "*")
		if digest == "" || name == "" || !isHex(digest) {
			break
		}
		return strings.ToLower(digest), name, nil
	}
	if err := scanner.Err(); err != nil {
		return "", "", services.Wrap(services.ErrTransient, services.StageHashing, "sidecar", "read sidecar", err)
	}
	return "", "", services.Wrap(services.ErrMetadataCorrupt, services.StageHashing, "sidecar",
		"malformed checksum file "+filepath.Base(path), nil)
}

func isHex(s string) bool {
	if len(s)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
