// Package redundancy manages the recovery-data layer of an archive unit:
// generation after packaging, damage assessment during verification, and
// repair with a pre-repair backup of the damaged container.
package redundancy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"coldvault/internal/fileutil"
	"coldvault/internal/layout"
	"coldvault/internal/logging"
	"coldvault/internal/services"
	"coldvault/internal/services/par2"
)

// DamagedSuffix marks the pre-repair copy of a corrupted container.
const DamagedSuffix = ".damaged"

// Parameters selects how much recovery data to generate.
type Parameters struct {
	Percent     int
	VolumeCount int
}

// Set describes the recovery files protecting one unit.
type Set struct {
	DescriptorPath string
	VolumePaths    []string
}

// Outcome is the ternary result of a repair attempt.
type Outcome int

const (
	// RepairNotNeeded means verification found the container intact.
	RepairNotNeeded Outcome = iota
	// Repaired means damage was found and successfully reconstructed.
	Repaired
	// InsufficientRedundancy means damage exceeds recovery capacity.
	InsufficientRedundancy
)

func (o Outcome) String() string {
	switch o {
	case RepairNotNeeded:
		return "repair not needed"
	case Repaired:
		return "repaired"
	case InsufficientRedundancy:
		return "insufficient redundancy"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Manager drives recovery-data operations through the par2 client.
type Manager struct {
	client *par2.Client
	logger *slog.Logger
}

func NewManager(client *par2.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		client: client,
		logger: logger.With(logging.String(logging.FieldComponent, "redundancy")),
	}
}

// Generate creates recovery data for the unit's container. Stale recovery
// files from a previous run are removed first so the set on disk always
// matches the current container.
func (m *Manager) Generate(ctx context.Context, unit layout.Unit, params Parameters) (*Set, error) {
	if err := m.removeSet(unit); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(unit.MetadataDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, services.StageRedundancy, "generate", "create metadata directory", err)
	}

	targetRel, descriptorRel, err := relPaths(unit)
	if err != nil {
		return nil, err
	}
	err = m.client.Create(ctx, par2.CreateRequest{
		BaseDir:       unit.Root,
		TargetRel:     targetRel,
		DescriptorRel: descriptorRel,
		Percent:       params.Percent,
		VolumeCount:   params.VolumeCount,
	})
	if err != nil {
		return nil, err
	}

	set, err := Discover(unit)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, m.logger).Debug("recovery data generated",
		logging.String("descriptor", set.DescriptorPath),
		logging.Int("volumes", len(set.VolumePaths)),
		logging.Int("percent", params.Percent))
	return set, nil
}

// Assess delegates damage assessment to the recovery tool.
func (m *Manager) Assess(ctx context.Context, unit layout.Unit) (par2.VerifyOutcome, error) {
	_, descriptorRel, err := relPaths(unit)
	if err != nil {
		return par2.Unrepairable, err
	}
	return m.client.Verify(ctx, unit.Root, descriptorRel)
}

// Repair assesses the container and reconstructs it if possible. Before any
// repair the damaged container is copied aside with the .damaged suffix so
// a failed or interrupted reconstruction never destroys the only evidence.
func (m *Manager) Repair(ctx context.Context, unit layout.Unit) (Outcome, error) {
	outcome, err := m.Assess(ctx, unit)
	if err != nil {
		return InsufficientRedundancy, err
	}
	switch outcome {
	case par2.Intact:
		return RepairNotNeeded, nil
	case par2.Unrepairable:
		logging.WithContext(ctx, m.logger).Error("damage exceeds recovery capacity",
			logging.String("container", unit.Container))
		return InsufficientRedundancy, nil
	}

	backup := unit.Container + DamagedSuffix
	if _, err := os.Stat(unit.Container); err == nil {
		if err := fileutil.CopyFile(unit.Container, backup); err != nil {
			return InsufficientRedundancy, services.Wrap(services.ErrTransient, services.StageRepair, "backup",
				"preserve damaged container", err)
		}
	}

	_, descriptorRel, err := relPaths(unit)
	if err != nil {
		return InsufficientRedundancy, err
	}
	if err := m.client.Repair(ctx, unit.Root, descriptorRel); err != nil {
		return InsufficientRedundancy, err
	}
	logging.WithContext(ctx, m.logger).Info("container repaired from recovery data",
		logging.String("container", unit.Container),
		logging.String("damaged_copy", backup))
	return Repaired, nil
}

// Discover locates the unit's existing recovery set.
func Discover(unit layout.Unit) (*Set, error) {
	if _, err := os.Stat(unit.Descriptor); err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, services.StageRedundancy, "discover",
				"recovery descriptor missing: "+filepath.Base(unit.Descriptor), err)
		}
		return nil, services.Wrap(services.ErrTransient, services.StageRedundancy, "discover", "stat descriptor", err)
	}
	volumes, err := unit.Volumes()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, services.StageRedundancy, "discover", "list volumes", err)
	}
	return &Set{DescriptorPath: unit.Descriptor, VolumePaths: volumes}, nil
}

func relPaths(unit layout.Unit) (targetRel, descriptorRel string, err error) {
	targetRel, err = filepath.Rel(unit.Root, unit.Container)
	if err != nil {
		return "", "", services.Wrap(services.ErrTransient, services.StageRedundancy, "layout", "relativize container", err)
	}
	descriptorRel, err = filepath.Rel(unit.Root, unit.Descriptor)
	if err != nil {
		return "", "", services.Wrap(services.ErrTransient, services.StageRedundancy, "layout", "relativize descriptor", err)
	}
	return filepath.ToSlash(targetRel), filepath.ToSlash(descriptorRel), nil
}

// removeSet deletes the descriptor and its volumes, if present.
func (m *Manager) removeSet(unit layout.Unit) error {
	set, err := Discover(unit)
	if err != nil {
		if services.IsTransient(err) {
			return err
		}
		return nil
	}
	for _, path := range append([]string{set.DescriptorPath}, set.VolumePaths...) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return services.Wrap(services.ErrTransient, services.StageRedundancy, "clean", "remove stale recovery file", err)
		}
	}
	return nil
}
