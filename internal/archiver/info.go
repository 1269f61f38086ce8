package archiver

import (
	"context"
	"os"

	"coldvault/internal/journal"
	"coldvault/internal/layout"
	"coldvault/internal/metadata"
	"coldvault/internal/services"
)

// Info summarizes a unit for display without touching its contents.
type Info struct {
	Unit   layout.Unit
	Record *metadata.Record
	// RecordState is empty when the record loaded, otherwise "absent",
	// "corrupt", or "unreadable".
	RecordState   string
	ContainerSize int64
	VolumeCount   int
	// TotalSize covers the container, sidecars, recovery data, and the
	// record.
	TotalSize int64
	// LastVerification is the most recent verify journal entry, if any.
	LastVerification *journal.Entry
}

// Inspect gathers unit facts from the filesystem, the metadata record, and
// the journal.
func (a *Archiver) Inspect(ctx context.Context, path string) (*Info, error) {
	unit, err := a.resolveUnit(path)
	if err != nil {
		return nil, err
	}

	info := &Info{Unit: unit}
	info.Record, info.RecordState = a.readRecordTolerant(unit)

	stat, err := os.Stat(unit.Container)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "", "inspect", "container missing", err)
	}
	info.ContainerSize = stat.Size()
	info.TotalSize = stat.Size()

	if entries, err := os.ReadDir(unit.MetadataDir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if fi, err := entry.Info(); err == nil {
				info.TotalSize += fi.Size()
			}
		}
	}
	if volumes, err := unit.Volumes(); err == nil {
		info.VolumeCount = len(volumes)
	}

	if a.journal != nil {
		if last, err := a.journal.LastVerification(ctx, unit.Name); err == nil {
			info.LastVerification = last
		}
	}
	return info, nil
}
