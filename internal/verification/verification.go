// Package verification runs the layered integrity check over an archive
// unit. Layers run in a fixed order — container structure, SHA-256, BLAKE3,
// recovery data — and a failing layer never short-circuits the rest: a
// damage report is most useful when it is complete.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"coldvault/internal/hashing"
	"coldvault/internal/layout"
	"coldvault/internal/logging"
	"coldvault/internal/metadata"
	"coldvault/internal/packager"
	"coldvault/internal/redundancy"
	"coldvault/internal/services"
	"coldvault/internal/services/par2"
)

// Layer names in execution order.
const (
	LayerContainer  = "container"
	LayerSHA256     = "sha256"
	LayerBLAKE3     = "blake3"
	LayerRedundancy = "redundancy"
)

// Status is the outcome of one layer.
type Status int

const (
	// StatusPass means the layer checked and found the unit sound.
	StatusPass Status = iota
	// StatusFail means the layer found damage.
	StatusFail
	// StatusSkipped means the layer could not or was not asked to run;
	// it carries no verdict.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusFail:
		return "fail"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// LayerResult is one row of the verification report.
type LayerResult struct {
	Name   string
	Status Status
	Detail string
}

// Report aggregates all layer results for one unit.
type Report struct {
	Unit   layout.Unit
	Layers []LayerResult
	// Success is the conjunction of every layer that produced a verdict.
	// Skipped layers do not count either way.
	Success bool
}

// Layer returns the named layer result, if present.
func (r *Report) Layer(name string) (LayerResult, bool) {
	for _, layer := range r.Layers {
		if layer.Name == name {
			return layer, true
		}
	}
	return LayerResult{}, false
}

// Options tunes a verification run.
type Options struct {
	// Quick runs only the container and SHA-256 layers.
	Quick bool
}

// Verifier runs layered checks.
type Verifier struct {
	redundancy *redundancy.Manager
	logger     *slog.Logger
}

func New(redundancyManager *redundancy.Manager, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Verifier{
		redundancy: redundancyManager,
		logger:     logger.With(logging.String(logging.FieldComponent, "verification")),
	}
}

// Verify checks the unit. record may be nil when the metadata record is
// absent or unreadable; hash layers then fall back to the sidecar files and
// skip when those are missing too. Environmental failures (cancellation,
// missing tools, I/O trouble) abort with an error; damage findings land in
// the report.
func (v *Verifier) Verify(ctx context.Context, unit layout.Unit, record *metadata.Record, opts Options) (*Report, error) {
	report := &Report{Unit: unit}

	if err := v.checkContainer(ctx, unit, report); err != nil {
		return nil, err
	}
	if err := v.checkHash(ctx, unit, record, hashing.AlgorithmSHA256, report); err != nil {
		return nil, err
	}
	if opts.Quick {
		report.Layers = append(report.Layers,
			LayerResult{Name: LayerBLAKE3, Status: StatusSkipped, Detail: "quick mode"},
			LayerResult{Name: LayerRedundancy, Status: StatusSkipped, Detail: "quick mode"})
	} else {
		if err := v.checkHash(ctx, unit, record, hashing.AlgorithmBLAKE3, report); err != nil {
			return nil, err
		}
		if err := v.checkRedundancy(ctx, unit, report); err != nil {
			return nil, err
		}
	}

	report.Success = true
	for _, layer := range report.Layers {
		if layer.Status == StatusFail {
			report.Success = false
		}
	}
	logging.WithContext(ctx, v.logger).Info("verification finished",
		logging.Bool("success", report.Success))
	return report, nil
}

func (v *Verifier) checkContainer(ctx context.Context, unit layout.Unit, report *Report) error {
	check, err := packager.StructuralCheck(ctx, unit.Container)
	switch {
	case err == nil:
		report.Layers = append(report.Layers, LayerResult{
			Name:   LayerContainer,
			Status: StatusPass,
			Detail: fmt.Sprintf("%d entries", check.Entries),
		})
	case errors.Is(err, services.ErrIntegrity):
		report.Layers = append(report.Layers, LayerResult{
			Name:   LayerContainer,
			Status: StatusFail,
			Detail: err.Error(),
		})
	default:
		return err
	}
	return nil
}

func (v *Verifier) checkHash(ctx context.Context, unit layout.Unit, record *metadata.Record, algorithm string, report *Report) error {
	name := LayerSHA256
	sidecar := unit.SHA256File
	if algorithm == hashing.AlgorithmBLAKE3 {
		name = LayerBLAKE3
		sidecar = unit.BLAKE3File
	}

	expected, source := expectedDigest(record, algorithm, sidecar)
	if expected == "" {
		report.Layers = append(report.Layers, LayerResult{
			Name:   name,
			Status: StatusSkipped,
			Detail: "no recorded digest",
		})
		return nil
	}

	ok, err := hashing.Verify(ctx, unit.Container, algorithm, expected)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			report.Layers = append(report.Layers, LayerResult{
				Name:   name,
				Status: StatusFail,
				Detail: "container missing",
			})
			return nil
		}
		return err
	}
	result := LayerResult{Name: name, Status: StatusPass, Detail: "matches " + source}
	if !ok {
		result.Status = StatusFail
		result.Detail = "digest mismatch against " + source
	}
	report.Layers = append(report.Layers, result)
	return nil
}

// expectedDigest prefers the metadata record and falls back to the sidecar
// checksum file.
func expectedDigest(record *metadata.Record, algorithm, sidecarPath string) (digest, source string) {
	if record != nil {
		switch algorithm {
		case hashing.AlgorithmSHA256:
			if record.Integrity.SHA256 != "" {
				return record.Integrity.SHA256, "metadata record"
			}
		case hashing.AlgorithmBLAKE3:
			if record.Integrity.BLAKE3 != "" {
				return record.Integrity.BLAKE3, "metadata record"
			}
		}
	}
	if digest, _, err := hashing.ReadSidecar(sidecarPath); err == nil {
		return digest, "sidecar"
	}
	return "", ""
}

func (v *Verifier) checkRedundancy(ctx context.Context, unit layout.Unit, report *Report) error {
	if _, err := os.Stat(unit.Descriptor); err != nil {
		report.Layers = append(report.Layers, LayerResult{
			Name:   LayerRedundancy,
			Status: StatusSkipped,
			Detail: "no recovery data",
		})
		return nil
	}
	if v.redundancy == nil {
		report.Layers = append(report.Layers, LayerResult{
			Name:   LayerRedundancy,
			Status: StatusSkipped,
			Detail: "recovery tooling unavailable",
		})
		return nil
	}

	outcome, err := v.redundancy.Assess(ctx, unit)
	if err != nil {
		return err
	}
	result := LayerResult{Name: LayerRedundancy}
	switch outcome {
	case par2.Intact:
		result.Status = StatusPass
		result.Detail = "recovery set intact"
	case par2.Repairable:
		result.Status = StatusFail
		result.Detail = "damage detected, repairable"
	default:
		result.Status = StatusFail
		result.Detail = "damage exceeds recovery capacity"
	}
	report.Layers = append(report.Layers, result)
	return nil
}
