package archiver

import (
	"context"

	"coldvault/internal/layout"
	"coldvault/internal/packager"
	"coldvault/internal/services"
)

// List enumerates the unit's contents from the container index without
// extracting anything.
func (a *Archiver) List(ctx context.Context, path string) (layout.Unit, []packager.ContentEntry, error) {
	unit, err := a.resolveUnit(path)
	if err != nil {
		return layout.Unit{}, nil, err
	}
	entries, err := packager.List(services.WithArchive(ctx, unit.Name), unit.Container)
	if err != nil {
		return layout.Unit{}, nil, err
	}
	return unit, entries, nil
}
