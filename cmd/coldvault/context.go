package main

import (
	"log/slog"
	"strings"
	"sync"

	"coldvault/internal/archiver"
	"coldvault/internal/config"
	"coldvault/internal/journal"
	"coldvault/internal/logging"
)

// commandContext lazily builds the shared pieces every subcommand needs:
// configuration, logger, journal, and the archiver itself.
type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	journalOnce sync.Once
	journal     *journal.Store
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		level := cfg.Logging.Level
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			level = *c.logLevelFlag
		}
		format := cfg.Logging.Format
		if c.logFormatFlag != nil && strings.TrimSpace(*c.logFormatFlag) != "" {
			format = *c.logFormatFlag
		}
		c.logger, c.loggerErr = logging.New(logging.Options{Level: level, Format: format})
	})
	return c.logger, c.loggerErr
}

// ensureJournal opens the operation journal. A broken journal degrades to
// nil: history is a convenience and must not block archive operations.
func (c *commandContext) ensureJournal() *journal.Store {
	c.journalOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			return
		}
		if strings.TrimSpace(cfg.Paths.JournalPath) == "" {
			return
		}
		store, err := journal.Open(cfg.Paths.JournalPath)
		if err != nil {
			if logger, lerr := c.ensureLogger(); lerr == nil {
				logger.Warn("journal unavailable", logging.Error(err))
			}
			return
		}
		c.journal = store
	})
	return c.journal
}

func (c *commandContext) ensureArchiver() (*archiver.Archiver, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return archiver.New(cfg, logger, archiver.Options{
		Journal: c.ensureJournal(),
		Version: version,
	}), nil
}

func (c *commandContext) close() {
	if c.journal != nil {
		_ = c.journal.Close()
	}
}
