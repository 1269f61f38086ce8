package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCompression(); err != nil {
		return err
	}
	if err := c.validateRedundancy(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCompression() error {
	if c.Compression.Level < 0 || c.Compression.Level > 19 {
		return errors.New("compression.level must be between 0 (auto) and 19")
	}
	if c.Compression.Threads < 0 {
		return errors.New("compression.threads must be >= 0")
	}
	if w := c.Compression.WindowMiB; w != 0 && (w < 1 || w > 512 || w&(w-1) != 0) {
		return errors.New("compression.window_mib must be a power of two between 1 and 512")
	}
	if c.Compression.MemoryLimitMiB < 0 {
		return errors.New("compression.memory_limit_mib must be >= 0")
	}
	if c.Compression.LongRangeThresholdMiB < 1 {
		return errors.New("compression.long_range_threshold_mib must be >= 1")
	}
	return nil
}

func (c *Config) validateRedundancy() error {
	if !c.Redundancy.Enabled {
		return nil
	}
	if c.Redundancy.Percent < 1 || c.Redundancy.Percent > 50 {
		return errors.New("redundancy.percent must be between 1 and 50")
	}
	if c.Redundancy.VolumeCount < 1 || c.Redundancy.VolumeCount > 32 {
		return errors.New("redundancy.volume_count must be between 1 and 32")
	}
	if c.Redundancy.TimeoutSeconds < 1 {
		return errors.New("redundancy.timeout_seconds must be >= 1")
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.Par2Binary == "" {
		return errors.New("tools.par2_binary must be set")
	}
	if c.Tools.SevenZipBinary == "" {
		return errors.New("tools.sevenzip_binary must be set")
	}
	if c.Tools.ExtractTimeoutSeconds < 1 {
		return errors.New("tools.extract_timeout_seconds must be >= 1")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MinFreeSpaceGiB < 0 {
		return errors.New("limits.min_free_space_gib must be >= 0")
	}
	if c.Limits.RetryAttempts < 1 {
		return errors.New("limits.retry_attempts must be >= 1")
	}
	if c.Limits.RetryBackoffSeconds < 0 {
		return errors.New("limits.retry_backoff_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
