package config

import "strings"

// normalize expands paths and canonicalizes string fields after decoding.
func (c *Config) normalize() error {
	for _, field := range []*string{
		&c.Paths.OutputDir,
		&c.Paths.StagingDir,
		&c.Paths.LogDir,
		&c.Paths.JournalPath,
	} {
		trimmed := strings.TrimSpace(*field)
		if trimmed == "" {
			*field = ""
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Tools.Par2Binary = strings.TrimSpace(c.Tools.Par2Binary)
	c.Tools.SevenZipBinary = strings.TrimSpace(c.Tools.SevenZipBinary)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
