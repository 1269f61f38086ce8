package config

const (
	defaultStagingDir            = "~/.local/share/coldvault/staging"
	defaultLogDir                = "~/.local/share/coldvault/logs"
	defaultJournalPath           = "~/.local/share/coldvault/journal.db"
	defaultRedundancyPercent     = 10
	defaultRedundancyVolumes     = 5
	defaultRedundancyTimeout     = 3600
	defaultPar2Binary            = "par2"
	defaultSevenZipBinary        = "7z"
	defaultExtractTimeout        = 1800
	defaultLongRangeThresholdMiB = 64
	defaultMinFreeSpaceGiB       = 1
	defaultRetryAttempts         = 3
	defaultRetryBackoffSeconds   = 1
	defaultLogFormat             = "auto"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:  defaultStagingDir,
			LogDir:      defaultLogDir,
			JournalPath: defaultJournalPath,
		},
		Compression: Compression{
			LongRangeThresholdMiB: defaultLongRangeThresholdMiB,
		},
		Redundancy: Redundancy{
			Enabled:        true,
			Percent:        defaultRedundancyPercent,
			VolumeCount:    defaultRedundancyVolumes,
			TimeoutSeconds: defaultRedundancyTimeout,
		},
		Tools: Tools{
			Par2Binary:            defaultPar2Binary,
			SevenZipBinary:        defaultSevenZipBinary,
			ExtractTimeoutSeconds: defaultExtractTimeout,
		},
		Limits: Limits{
			MinFreeSpaceGiB:     defaultMinFreeSpaceGiB,
			RetryAttempts:       defaultRetryAttempts,
			RetryBackoffSeconds: defaultRetryBackoffSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
