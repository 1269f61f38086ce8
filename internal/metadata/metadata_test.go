package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"coldvault/internal/profile"
	"coldvault/internal/services"
)

func sampleRecord() *Record {
	return &Record{
		Archive: Archive{
			SchemaVersion: SchemaVersion,
			Name:          "photos",
			CreatedAt:     time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
			CreatedBy:     "coldvault 1.0.0",
			Container:     "photos.tar.zst",
			Format:        ContainerFormat,
		},
		Content: Content{Files: 120, Directories: 8, TotalBytes: 1 << 30, HasSingleRoot: true, RootName: "photos"},
		Compression: Compression{
			Level: 19, WindowBytes: 128 << 20, Threads: 8, MemoryLimitMiB: 1024, LongRange: true,
			LevelExplicit: true,
		},
		Redundancy: Redundancy{Enabled: true, Percent: 10, VolumeCount: 5},
		Integrity: Integrity{
			SHA256:          strings.Repeat("ab", 32),
			BLAKE3:          strings.Repeat("cd", 32),
			CompressedBytes: 900 << 20,
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.toml")
	want := sampleRecord()
	if err := Write(path, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Archive.Name != "photos" || got.Archive.Format != ContainerFormat {
		t.Errorf("archive = %+v", got.Archive)
	}
	if !got.Archive.CreatedAt.Equal(want.Archive.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.Archive.CreatedAt, want.Archive.CreatedAt)
	}
	if got.Content != want.Content {
		t.Errorf("content = %+v, want %+v", got.Content, want.Content)
	}
	if got.Compression != want.Compression {
		t.Errorf("compression = %+v, want %+v", got.Compression, want.Compression)
	}
	if got.Integrity != want.Integrity {
		t.Errorf("integrity = %+v, want %+v", got.Integrity, want.Integrity)
	}
}

func TestReadAbsentVsCorrupt(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(filepath.Join(dir, "metadata.toml"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("absent record: err = %v, want ErrNotFound", err)
	}

	corrupt := filepath.Join(dir, "corrupt.toml")
	if err := os.WriteFile(corrupt, []byte("[archive\nname = "), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err = Read(corrupt)
	if !errors.Is(err, services.ErrMetadataCorrupt) {
		t.Fatalf("corrupt record: err = %v, want ErrMetadataCorrupt", err)
	}
}

func TestReadRejectsInvalidRecords(t *testing.T) {
	mutations := map[string]func(*Record){
		"future schema":   func(r *Record) { r.Archive.SchemaVersion = SchemaVersion + 1 },
		"missing name":    func(r *Record) { r.Archive.Name = "" },
		"unknown format":  func(r *Record) { r.Archive.Format = "7z" },
		"missing digest":  func(r *Record) { r.Integrity.BLAKE3 = "" },
		"bad level":       func(r *Record) { r.Compression.Level = 23 },
		"bad window":      func(r *Record) { r.Compression.WindowBytes = 3 << 20 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			record := sampleRecord()
			mutate(record)
			path := filepath.Join(t.TempDir(), "metadata.toml")
			if err := Write(path, record); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if _, err := Read(path); !errors.Is(err, services.ErrMetadataCorrupt) {
				t.Fatalf("err = %v, want ErrMetadataCorrupt", err)
			}
		})
	}
}

func TestProfileRecovery(t *testing.T) {
	resolved, err := profile.Resolve(3<<30, profile.Overrides{Level: 17}, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	record := sampleRecord()
	record.Compression = FromProfile(resolved)

	got := record.Profile()
	if got.Profile != resolved.Profile {
		t.Errorf("profile = %+v, want %+v", got.Profile, resolved.Profile)
	}
	if !got.ExplicitLevel || got.ExplicitThreads || got.ExplicitWindow || got.ExplicitMemory {
		t.Errorf("explicit flags = %+v, want only level", got)
	}
}
