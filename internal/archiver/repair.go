package archiver

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"coldvault/internal/journal"
	"coldvault/internal/layout"
	"coldvault/internal/logging"
	"coldvault/internal/redundancy"
	"coldvault/internal/services"
	"coldvault/internal/verification"
)

// RepairRequest names the unit to repair.
type RepairRequest struct {
	// Path is a unit directory or container file.
	Path string
}

// RepairResult reports the repair outcome and, when a repair ran, the
// post-repair verification.
type RepairResult struct {
	Outcome redundancy.Outcome
	Report  *verification.Report
}

// Repair reconstructs a damaged container from its recovery data. After a
// successful reconstruction the unit is re-verified in full; a repair that
// does not restore the recorded digests is reported as failed.
func (a *Archiver) Repair(ctx context.Context, req RepairRequest) (*RepairResult, error) {
	started := time.Now()
	unit, err := a.resolveUnit(req.Path)
	if err != nil {
		return nil, err
	}
	ctx = services.WithArchive(ctx, unit.Name)

	result, err := a.repair(ctx, unit, started)
	success := err == nil && result != nil && result.Outcome != redundancy.InsufficientRedundancy
	a.record(ctx, journal.Entry{
		Operation:  journal.OpRepair,
		Archive:    unit.Name,
		Outcome:    outcomeFor(err, success),
		Detail:     repairDetail(result, err),
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	return result, err
}

func (a *Archiver) repair(ctx context.Context, unit layout.Unit, started time.Time) (*RepairResult, error) {
	if err := a.preflight(true, false); err != nil {
		return nil, err
	}
	release, err := a.lockUnit(filepath.Dir(unit.Root), unit.Name)
	if err != nil {
		return nil, err
	}
	defer release()

	outcome, err := a.redundancy.Repair(services.WithStage(ctx, services.StageRepair), unit)
	if err != nil {
		return nil, err
	}
	result := &RepairResult{Outcome: outcome}
	if outcome != redundancy.Repaired {
		return result, nil
	}

	record, _ := a.readRecordTolerant(unit)
	report, err := a.verifier.Verify(services.WithStage(ctx, services.StageVerification),
		unit, record, verification.Options{})
	if err != nil {
		return nil, err
	}
	result.Report = report
	if !report.Success {
		return result, services.Wrap(services.ErrIntegrity, services.StageRepair, "postverify",
			"repaired container still fails verification", nil)
	}

	// The pre-repair copy of the damaged container has served its purpose
	// once the repaired unit verifies clean.
	backup := unit.Container + redundancy.DamagedSuffix
	if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("could not remove damaged-container backup", logging.Error(err))
	}

	logging.WithContext(ctx, a.logger).Info("unit repaired and re-verified",
		logging.Duration("elapsed", time.Since(started)))
	return result, nil
}

func repairDetail(result *RepairResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if result == nil {
		return ""
	}
	return result.Outcome.String()
}
