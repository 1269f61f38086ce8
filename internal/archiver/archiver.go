// Package archiver coordinates the archive workflows: create, verify,
// extract, repair, and info. It owns the wiring between staging, packaging,
// hashing, redundancy, verification, and the journal, and enforces the
// cross-cutting safety rules (tool preflight, destination locking, disk
// space floor, scratch cleanup).
package archiver

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"coldvault/internal/config"
	"coldvault/internal/deps"
	"coldvault/internal/journal"
	"coldvault/internal/layout"
	"coldvault/internal/logging"
	"coldvault/internal/metadata"
	"coldvault/internal/packager"
	"coldvault/internal/redundancy"
	"coldvault/internal/services"
	"coldvault/internal/services/par2"
	"coldvault/internal/services/sevenzip"
	"coldvault/internal/staging"
	"coldvault/internal/verification"
)

// Options adjusts construction. Zero values select production defaults.
type Options struct {
	// Executor overrides external command execution, for tests.
	Executor services.Executor
	// Journal receives operation history; nil disables journaling.
	Journal *journal.Store
	// Version is recorded in metadata as the creating tool version.
	Version string
}

// Archiver runs the workflows against one configuration.
type Archiver struct {
	cfg        *config.Config
	logger     *slog.Logger
	stager     *staging.Stager
	builder    *packager.Builder
	extractor  *packager.Extractor
	redundancy *redundancy.Manager
	verifier   *verification.Verifier
	journal    *journal.Store
	retry      services.RetryPolicy
	version    string
}

func New(cfg *config.Config, logger *slog.Logger, opts Options) *Archiver {
	if logger == nil {
		logger = logging.NewNop()
	}
	executor := opts.Executor
	if executor == nil {
		executor = services.CommandExecutor{}
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	par2Client := par2.New(cfg.Tools.Par2Binary,
		time.Duration(cfg.Redundancy.TimeoutSeconds)*time.Second, executor, logger)
	sevenZipClient := sevenzip.New(cfg.Tools.SevenZipBinary,
		time.Duration(cfg.Tools.ExtractTimeoutSeconds)*time.Second, executor, logger)
	redundancyManager := redundancy.NewManager(par2Client, logger)

	retry := services.DefaultRetryPolicy()
	if cfg.Limits.RetryAttempts > 0 {
		retry.Attempts = cfg.Limits.RetryAttempts
	}
	if cfg.Limits.RetryBackoffSeconds > 0 {
		retry.Backoff = time.Duration(cfg.Limits.RetryBackoffSeconds) * time.Second
	}

	return &Archiver{
		cfg:        cfg,
		logger:     logger.With(logging.String(logging.FieldComponent, "archiver")),
		stager:     staging.New(cfg.Paths.StagingDir, sevenZipClient, logger),
		builder:    packager.NewBuilder(logger),
		extractor:  packager.NewExtractor(logger),
		redundancy: redundancyManager,
		verifier:   verification.New(redundancyManager, logger),
		journal:    opts.Journal,
		retry:      retry,
		version:    version,
	}
}

// preflight fails fast when a workflow needs an external tool that is not
// on PATH.
func (a *Archiver) preflight(needRedundancy, needForeignExtract bool) error {
	reqs := deps.Requirements(a.cfg.Tools.Par2Binary, a.cfg.Tools.SevenZipBinary,
		needRedundancy, needForeignExtract)
	statuses := deps.CheckBinaries(reqs)
	if missing := deps.FirstMissing(statuses); missing != nil {
		return services.Wrap(services.ErrToolUnavailable, "", "preflight",
			missing.Name+" is required but not available: "+missing.Detail, nil)
	}
	return nil
}

// lockUnit takes an advisory lock for the named unit so concurrent runs
// against the same destination cannot interleave. The returned release
// function is safe to call once.
func (a *Archiver) lockUnit(dir, name string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "lock", "create output directory", err)
	}
	lockPath := filepath.Join(dir, "."+name+".lock")
	lock := flock.New(lockPath)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "lock", "acquire unit lock", err)
	}
	if !acquired {
		return nil, services.Wrap(services.ErrTransient, "", "lock",
			"another operation on "+name+" is in progress", nil)
	}
	return func() {
		_ = lock.Unlock()
		_ = os.Remove(lockPath)
	}, nil
}

// record writes a journal entry, logging rather than failing when the
// journal itself has trouble.
func (a *Archiver) record(ctx context.Context, entry journal.Entry) {
	if a.journal == nil {
		return
	}
	if _, err := a.journal.Record(ctx, entry); err != nil {
		a.logger.Warn("journal write failed", logging.Error(err))
	}
}

func outcomeFor(err error, success bool) string {
	if err != nil || !success {
		return journal.OutcomeFailure
	}
	return journal.OutcomeSuccess
}

// readRecordTolerant loads the unit's metadata record, degrading to nil
// when the record is absent or unreadable. Verification and info still
// work off sidecars in that case; only the explicit repair of metadata
// needs the record itself.
func (a *Archiver) readRecordTolerant(unit layout.Unit) (*metadata.Record, string) {
	record, err := metadata.Read(unit.MetadataFile)
	switch {
	case err == nil:
		return record, ""
	case errors.Is(err, services.ErrNotFound):
		a.logger.Debug("metadata record absent",
			logging.String(logging.FieldArchive, unit.Name))
		return nil, "absent"
	case errors.Is(err, services.ErrMetadataCorrupt):
		a.logger.Warn("metadata record unreadable, falling back to sidecars",
			logging.String(logging.FieldArchive, unit.Name),
			logging.Error(err))
		return nil, "corrupt"
	default:
		a.logger.Warn("metadata record unavailable",
			logging.String(logging.FieldArchive, unit.Name),
			logging.Error(err))
		return nil, "unreadable"
	}
}

// resolveUnit maps a user-supplied path onto the unit layout.
func (a *Archiver) resolveUnit(path string) (layout.Unit, error) {
	unit, err := layout.Resolve(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return layout.Unit{}, services.Wrap(services.ErrNotFound, "", "resolve", "archive not found at "+path, err)
		}
		return layout.Unit{}, services.Wrap(services.ErrUnsupportedFormat, "", "resolve", err.Error(), nil)
	}
	return unit, nil
}
