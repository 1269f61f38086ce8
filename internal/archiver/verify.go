package archiver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coldvault/internal/journal"
	"coldvault/internal/services"
	"coldvault/internal/verification"
)

// VerifyRequest selects what to verify and how thoroughly.
type VerifyRequest struct {
	// Path is a unit directory or container file.
	Path string
	// Quick restricts the run to the container and SHA-256 layers.
	Quick bool
}

// Verify runs the layered integrity check. A unit that fails checks still
// returns its report; the error is reserved for environmental trouble.
func (a *Archiver) Verify(ctx context.Context, req VerifyRequest) (*verification.Report, error) {
	started := time.Now()
	unit, err := a.resolveUnit(req.Path)
	if err != nil {
		return nil, err
	}
	ctx = services.WithArchive(ctx, unit.Name)

	record, _ := a.readRecordTolerant(unit)
	report, err := a.verifier.Verify(services.WithStage(ctx, services.StageVerification),
		unit, record, verification.Options{Quick: req.Quick})

	success := err == nil && report != nil && report.Success
	a.record(ctx, journal.Entry{
		Operation:  journal.OpVerify,
		Archive:    unit.Name,
		Outcome:    outcomeFor(err, success),
		Detail:     verifyDetail(report, err),
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	return report, err
}

func verifyDetail(report *verification.Report, err error) string {
	if err != nil {
		return err.Error()
	}
	if report == nil {
		return ""
	}
	parts := make([]string, 0, len(report.Layers))
	for _, layer := range report.Layers {
		parts = append(parts, fmt.Sprintf("%s=%s", layer.Name, layer.Status))
	}
	return strings.Join(parts, " ")
}
