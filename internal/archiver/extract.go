package archiver

import (
	"context"
	"fmt"
	"os"
	"time"

	"coldvault/internal/journal"
	"coldvault/internal/layout"
	"coldvault/internal/logging"
	"coldvault/internal/packager"
	"coldvault/internal/services"
	"coldvault/internal/verification"
)

// ExtractRequest describes one extraction.
type ExtractRequest struct {
	// Path is a unit directory or container file.
	Path string
	// DestDir receives the extracted tree.
	DestDir string
	// Force allows extraction into a non-empty destination.
	Force bool
	// SkipVerify bypasses the pre-extraction quick verification.
	SkipVerify bool
	// ApplyRenameMapping forces Windows-safe renames on any platform.
	ApplyRenameMapping bool
}

// Extract verifies the unit (container structure and SHA-256, unless
// skipped) and expands it into the destination directory.
func (a *Archiver) Extract(ctx context.Context, req ExtractRequest) (*packager.ExtractReport, error) {
	started := time.Now()
	unit, err := a.resolveUnit(req.Path)
	if err != nil {
		return nil, err
	}
	ctx = services.WithArchive(ctx, unit.Name)

	report, err := a.extract(ctx, unit, req)
	a.record(ctx, journal.Entry{
		Operation:   journal.OpExtract,
		Archive:     unit.Name,
		Destination: req.DestDir,
		Outcome:     outcomeFor(err, true),
		Detail:      extractDetail(report, err),
		StartedAt:   started,
		FinishedAt:  time.Now(),
	})
	return report, err
}

func (a *Archiver) extract(ctx context.Context, unit layout.Unit, req ExtractRequest) (*packager.ExtractReport, error) {
	if !req.SkipVerify {
		record, _ := a.readRecordTolerant(unit)
		verifyReport, err := a.verifier.Verify(services.WithStage(ctx, services.StageVerification),
			unit, record, verification.Options{Quick: true})
		if err != nil {
			return nil, err
		}
		if !verifyReport.Success {
			return nil, services.Wrap(services.ErrIntegrity, services.StageExtraction, "preverify",
				"unit failed verification; run repair before extracting", nil)
		}
	}

	if err := guardExtractDest(req.DestDir, req.Force); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, services.StageExtraction, "prepare", "create destination", err)
	}

	extractCtx := services.WithStage(ctx, services.StageExtraction)
	report, err := a.extractor.Extract(extractCtx, unit.Container, req.DestDir, packager.ExtractOptions{
		ApplyRenameMapping: req.ApplyRenameMapping,
	})
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, a.logger).Info("archive extracted",
		logging.String("destination", req.DestDir),
		logging.Int("files", report.Files),
		logging.Int("renamed", len(report.Renamed)))
	return report, nil
}

// guardExtractDest refuses a non-empty destination without Force. A fresh
// or empty directory is always fine.
func guardExtractDest(dest string, force bool) error {
	entries, err := os.ReadDir(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return services.Wrap(services.ErrTransient, services.StageExtraction, "guard", "read destination", err)
	}
	if len(entries) > 0 && !force {
		return fmt.Errorf("destination %s is not empty; use --force to extract into it", dest)
	}
	return nil
}

func extractDetail(report *packager.ExtractReport, err error) string {
	if err != nil {
		return err.Error()
	}
	if report == nil {
		return ""
	}
	detail := fmt.Sprintf("%d files extracted", report.Files)
	if len(report.Renamed) > 0 {
		detail += fmt.Sprintf(", %d renamed for portability", len(report.Renamed))
	}
	return detail
}
