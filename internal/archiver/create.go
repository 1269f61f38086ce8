package archiver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"coldvault/internal/fileutil"
	"coldvault/internal/hashing"
	"coldvault/internal/journal"
	"coldvault/internal/layout"
	"coldvault/internal/logging"
	"coldvault/internal/metadata"
	"coldvault/internal/packager"
	"coldvault/internal/profile"
	"coldvault/internal/redundancy"
	"coldvault/internal/services"
	"coldvault/internal/staging"
	"coldvault/internal/verification"
)

// CreateRequest describes one archive creation.
type CreateRequest struct {
	// Source is a directory or supported archive file.
	Source string
	// Name overrides the unit name derived from the source.
	Name string
	// Destination overrides the configured output directory for this run.
	Destination string
	// Force replaces an existing unit of the same name.
	Force bool
	// Overrides are per-field compression parameter overrides; they take
	// precedence over the configuration's.
	Overrides profile.Overrides
	// SkipRedundancy suppresses recovery data generation for this run.
	SkipRedundancy bool
}

// CreateResult reports a finished creation.
type CreateResult struct {
	Unit    layout.Unit
	Record  *metadata.Record
	Report  *verification.Report
	Elapsed time.Duration
}

// Create stages the source, packages it, hashes the container, generates
// recovery data, writes the metadata record, and verifies the finished
// unit. Any failure removes the half-built unit; the destination holds
// either a complete verified unit or nothing.
func (a *Archiver) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	started := time.Now()
	name := req.Name
	if name == "" {
		name = layout.CleanName(req.Source)
	}
	ctx = services.WithArchive(ctx, name)
	log := logging.WithContext(ctx, a.logger)

	result, err := a.create(ctx, log, name, req, started)
	a.record(ctx, journal.Entry{
		Operation:  journal.OpCreate,
		Archive:    name,
		SourcePath: req.Source,
		Outcome:    outcomeFor(err, true),
		Detail:     createDetail(result, err),
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	return result, err
}

func (a *Archiver) create(ctx context.Context, log *slog.Logger, name string, req CreateRequest, started time.Time) (*CreateResult, error) {
	needRedundancy := a.cfg.Redundancy.Enabled && !req.SkipRedundancy
	needForeign, err := needsForeignExtract(req.Source)
	if err != nil {
		return nil, err
	}
	if err := a.preflight(needRedundancy, needForeign); err != nil {
		return nil, err
	}

	outputDir := req.Destination
	if outputDir == "" {
		outputDir = a.cfg.Paths.OutputDir
	}
	unit := layout.ForName(outputDir, name)
	if err := a.guardDestination(unit, req.Force); err != nil {
		return nil, err
	}
	release, err := a.lockUnit(outputDir, name)
	if err != nil {
		return nil, err
	}
	defer release()

	staged, err := a.stager.Stage(services.WithStage(ctx, services.StageStaging), req.Source)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := staged.Cleanup(); err != nil {
			log.Warn("scratch cleanup failed", logging.Error(err))
		}
	}()
	log.Info("source staged",
		logging.Int("files", staged.Summary.Files),
		logging.String("total", humanize.IBytes(uint64(staged.Summary.TotalBytes))))

	if err := a.checkSpace(outputDir, staged.Summary.TotalBytes); err != nil {
		return nil, err
	}

	resolved, err := a.resolveProfile(staged.Summary.TotalBytes, req.Overrides)
	if err != nil {
		return nil, err
	}
	log.Info("compression profile resolved",
		logging.Int("level", resolved.Level),
		logging.String("window", humanize.IBytes(uint64(resolved.WindowSize))),
		logging.Int("threads", resolved.Threads),
		logging.Bool("long_range", resolved.LongRange))

	// From here on a partial unit may exist on disk; remove it on any
	// failure so the output directory never holds an unverified unit.
	complete := false
	defer func() {
		if !complete {
			if rmErr := os.RemoveAll(unit.Root); rmErr != nil {
				log.Warn("failed to remove incomplete unit", logging.Error(rmErr))
			}
		}
	}()

	var buildResult *packager.BuildResult
	buildCtx := services.WithStage(ctx, services.StagePackaging)
	err = a.retry.Do(ctx, func() error {
		var buildErr error
		buildResult, buildErr = a.builder.Build(buildCtx, packager.BuildRequest{
			StagedRoot: staged.Root,
			Entries:    staged.Entries,
			OutputPath: unit.Container,
			Profile:    resolved.Profile,
		})
		return buildErr
	})
	if err != nil {
		return nil, err
	}

	digests, _, err := hashing.Compute(ctx, unit.Container)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(unit.MetadataDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, services.StageHashing, "sidecar", "create metadata directory", err)
	}
	if err := hashing.WriteSidecars(filepath.Join(unit.MetadataDir, filepath.Base(unit.Container)), digests); err != nil {
		return nil, err
	}

	if needRedundancy {
		genCtx := services.WithStage(ctx, services.StageRedundancy)
		err = a.retry.Do(ctx, func() error {
			_, genErr := a.redundancy.Generate(genCtx, unit, redundancy.Parameters{
				Percent:     a.cfg.Redundancy.Percent,
				VolumeCount: a.cfg.Redundancy.VolumeCount,
			})
			return genErr
		})
		if err != nil {
			return nil, err
		}
	}

	record := &metadata.Record{
		Archive: metadata.Archive{
			SchemaVersion: metadata.SchemaVersion,
			Name:          name,
			CreatedAt:     started.UTC(),
			CreatedBy:     "coldvault " + a.version,
			Container:     filepath.Base(unit.Container),
			Format:        metadata.ContainerFormat,
			SourcePath:    req.Source,
		},
		Content: metadata.Content{
			Files:         staged.Summary.Files,
			Directories:   staged.Summary.Dirs,
			TotalBytes:    staged.Summary.TotalBytes,
			HasSingleRoot: staged.Summary.HasSingleRoot,
			RootName:      staged.Summary.RootName,
		},
		Compression: metadata.FromProfile(resolved),
		Redundancy: metadata.Redundancy{
			Enabled:     needRedundancy,
			Percent:     a.cfg.Redundancy.Percent,
			VolumeCount: a.cfg.Redundancy.VolumeCount,
		},
		Integrity: metadata.Integrity{
			SHA256:          digests.SHA256,
			BLAKE3:          digests.BLAKE3,
			CompressedBytes: buildResult.CompressedSize,
		},
	}
	if !needRedundancy {
		record.Redundancy = metadata.Redundancy{Enabled: false}
	}
	record.Archive.ProcessingSeconds = time.Since(started).Seconds()
	if err := metadata.Write(unit.MetadataFile, record); err != nil {
		return nil, err
	}

	report, err := a.verifier.Verify(services.WithStage(ctx, services.StageVerification), unit, record, verification.Options{})
	if err != nil {
		return nil, err
	}
	if !report.Success {
		return nil, services.Wrap(services.ErrIntegrity, services.StageVerification, "post-create",
			"freshly created unit failed verification", nil)
	}

	complete = true
	elapsed := time.Since(started)
	log.Info("archive created",
		logging.String("container", unit.Container),
		logging.String("compressed", humanize.IBytes(uint64(buildResult.CompressedSize))),
		logging.Duration("elapsed", elapsed))
	return &CreateResult{Unit: unit, Record: record, Report: report, Elapsed: elapsed}, nil
}

// guardDestination refuses to touch an existing unit without Force.
func (a *Archiver) guardDestination(unit layout.Unit, force bool) error {
	if _, err := os.Stat(unit.Root); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return services.Wrap(services.ErrTransient, "", "guard", "stat destination", err)
	}
	if !force {
		return fmt.Errorf("destination %s already exists; use --force to replace it", unit.Root)
	}
	if err := os.RemoveAll(unit.Root); err != nil {
		return services.Wrap(services.ErrTransient, "", "guard", "remove existing unit", err)
	}
	return nil
}

// checkSpace enforces the configured free-space floor on the output
// filesystem. The container cannot exceed the staged size, so staged bytes
// plus the floor is a safe requirement.
func (a *Archiver) checkSpace(outputDir string, stagedBytes int64) error {
	required := uint64(stagedBytes) + uint64(a.cfg.Limits.MinFreeSpaceGiB)<<30
	if err := fileutil.CheckDiskSpace(outputDir, required); err != nil {
		return services.Wrap(services.ErrInsufficientSpace, "", "preflight", err.Error(), nil)
	}
	return nil
}

// resolveProfile layers request overrides over configuration overrides and
// derives the rest from the staged size.
func (a *Archiver) resolveProfile(size int64, reqOverrides profile.Overrides) (profile.Resolved, error) {
	ov := profile.Overrides{
		Level:          a.cfg.Compression.Level,
		Threads:        a.cfg.Compression.Threads,
		WindowMiB:      a.cfg.Compression.WindowMiB,
		MemoryLimitMiB: a.cfg.Compression.MemoryLimitMiB,
	}
	if reqOverrides.Level != 0 {
		ov.Level = reqOverrides.Level
	}
	if reqOverrides.Threads != 0 {
		ov.Threads = reqOverrides.Threads
	}
	if reqOverrides.WindowMiB != 0 {
		ov.WindowMiB = reqOverrides.WindowMiB
	}
	if reqOverrides.MemoryLimitMiB != 0 {
		ov.MemoryLimitMiB = reqOverrides.MemoryLimitMiB
	}
	resolved, err := profile.Resolve(size, ov, a.cfg.Compression.LongRangeThresholdMiB)
	if err != nil {
		return profile.Resolved{}, services.Wrap(services.ErrUnsupportedFormat, "", "profile", err.Error(), nil)
	}
	return resolved, nil
}

// needsForeignExtract reports whether the source requires the external
// extraction tool.
func needsForeignExtract(source string) (bool, error) {
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return false, services.Wrap(services.ErrNotFound, services.StageStaging, "stat", "source does not exist", err)
		}
		return false, services.Wrap(services.ErrTransient, services.StageStaging, "stat", "stat source", err)
	}
	if info.IsDir() {
		return false, nil
	}
	format := staging.DetectFormat(source)
	return format != staging.FormatUnknown && !format.Native(), nil
}

func createDetail(result *CreateResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if result == nil {
		return ""
	}
	return fmt.Sprintf("%d files, %s compressed",
		result.Record.Content.Files,
		humanize.IBytes(uint64(result.Record.Integrity.CompressedBytes)))
}
