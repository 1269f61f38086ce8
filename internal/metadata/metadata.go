// Package metadata reads and writes the TOML record stored inside every
// archive unit. The record makes a unit self-describing: it carries enough
// parameter detail to re-derive the exact compression profile, re-check
// both digests, and regenerate recovery data without any external state.
package metadata

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"coldvault/internal/fileutil"
	"coldvault/internal/profile"
	"coldvault/internal/services"
)

// SchemaVersion is bumped on incompatible record changes. Readers accept
// only versions they know.
const SchemaVersion = 1

// ContainerFormat identifies the container codec in the record.
const ContainerFormat = "tar+zstd"

// Record is the full unit metadata, one TOML file per unit.
type Record struct {
	Archive     Archive     `toml:"archive"`
	Content     Content     `toml:"content"`
	Compression Compression `toml:"compression"`
	Redundancy  Redundancy  `toml:"redundancy"`
	Integrity   Integrity   `toml:"integrity"`
}

// Archive describes the unit itself.
type Archive struct {
	SchemaVersion int       `toml:"schema_version"`
	Name          string    `toml:"name"`
	CreatedAt     time.Time `toml:"created_at"`
	CreatedBy     string    `toml:"created_by"`
	Container     string    `toml:"container"`
	Format        string    `toml:"format"`
	SourcePath    string    `toml:"source_path,omitempty"`
	// ProcessingSeconds is the wall-clock time the create run took.
	ProcessingSeconds float64 `toml:"processing_seconds,omitempty"`
}

// Content summarizes what went into the container.
type Content struct {
	Files         int    `toml:"files"`
	Directories   int    `toml:"directories"`
	TotalBytes    int64  `toml:"total_bytes"`
	HasSingleRoot bool   `toml:"has_single_root"`
	RootName      string `toml:"root_name,omitempty"`
}

// Compression records the resolved profile plus which fields the user set
// explicitly, so re-archiving can distinguish "derived for this size" from
// "operator chose this".
type Compression struct {
	Level           int   `toml:"level"`
	WindowBytes     int64 `toml:"window_bytes"`
	Threads         int   `toml:"threads"`
	MemoryLimitMiB  int   `toml:"memory_limit_mib"`
	LongRange       bool  `toml:"long_range"`
	LevelExplicit   bool  `toml:"level_explicit"`
	ThreadsExplicit bool  `toml:"threads_explicit"`
	WindowExplicit  bool  `toml:"window_explicit"`
	MemoryExplicit  bool  `toml:"memory_explicit"`
}

// Redundancy records the recovery-data parameters used at creation.
type Redundancy struct {
	Enabled     bool `toml:"enabled"`
	Percent     int  `toml:"percent,omitempty"`
	VolumeCount int  `toml:"volume_count,omitempty"`
}

// Integrity carries the dual digests of the finished container.
type Integrity struct {
	SHA256          string `toml:"sha256"`
	BLAKE3          string `toml:"blake3"`
	CompressedBytes int64  `toml:"compressed_bytes"`
}

// FromProfile fills a Compression section from a resolved profile.
func FromProfile(res profile.Resolved) Compression {
	return Compression{
		Level:           res.Level,
		WindowBytes:     res.WindowSize,
		Threads:         res.Threads,
		MemoryLimitMiB:  res.MemoryLimitMiB,
		LongRange:       res.LongRange,
		LevelExplicit:   res.ExplicitLevel,
		ThreadsExplicit: res.ExplicitThreads,
		WindowExplicit:  res.ExplicitWindow,
		MemoryExplicit:  res.ExplicitMemory,
	}
}

// Profile reconstructs the resolved compression profile from the record.
// This is the parameter-recovery path: verification and repair honor what
// the unit was built with, not current configuration.
func (r *Record) Profile() profile.Resolved {
	return profile.Resolved{
		Profile: profile.Profile{
			Level:          r.Compression.Level,
			WindowSize:     r.Compression.WindowBytes,
			Threads:        r.Compression.Threads,
			MemoryLimitMiB: r.Compression.MemoryLimitMiB,
			LongRange:      r.Compression.LongRange,
		},
		ExplicitLevel:   r.Compression.LevelExplicit,
		ExplicitThreads: r.Compression.ThreadsExplicit,
		ExplicitWindow:  r.Compression.WindowExplicit,
		ExplicitMemory:  r.Compression.MemoryExplicit,
	}
}

// Write persists the record atomically.
func Write(path string, r *Record) error {
	data, err := toml.Marshal(r)
	if err != nil {
		return services.Wrap(services.ErrTransient, services.StageMetadata, "write", "encode record", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, services.StageMetadata, "write", "write record", err)
	}
	return nil
}

// Read loads and validates a record. An absent file is ErrNotFound; a file
// that exists but cannot be trusted is ErrMetadataCorrupt. Callers rely on
// that distinction: a unit without a record degrades gracefully, a unit
// with a broken record gets flagged.
func Read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, services.StageMetadata, "read", "metadata record absent", err)
		}
		return nil, services.Wrap(services.ErrTransient, services.StageMetadata, "read", "read record", err)
	}

	var record Record
	if err := toml.Unmarshal(data, &record); err != nil {
		return nil, services.Wrap(services.ErrMetadataCorrupt, services.StageMetadata, "read", "record is not valid TOML", err)
	}
	if err := record.validate(); err != nil {
		return nil, services.Wrap(services.ErrMetadataCorrupt, services.StageMetadata, "read", err.Error(), nil)
	}
	return &record, nil
}

func (r *Record) validate() error {
	if r.Archive.SchemaVersion != SchemaVersion {
		return errors.New("unsupported schema version")
	}
	if r.Archive.Name == "" || r.Archive.Container == "" {
		return errors.New("record missing archive identity")
	}
	if r.Archive.Format != ContainerFormat {
		return errors.New("unknown container format " + r.Archive.Format)
	}
	if len(r.Integrity.SHA256) != 64 || len(r.Integrity.BLAKE3) != 64 {
		return errors.New("record missing integrity digests")
	}
	if r.Compression.Level < 1 || r.Compression.Level > 19 {
		return errors.New("compression level out of range")
	}
	if r.Compression.WindowBytes <= 0 || r.Compression.WindowBytes&(r.Compression.WindowBytes-1) != 0 {
		return errors.New("window size is not a power of two")
	}
	return nil
}
