package services

// Pipeline stage names used for error context and log annotation.
const (
	StageStaging      = "staging"
	StagePackaging    = "packaging"
	StageHashing      = "hashing"
	StageRedundancy   = "redundancy"
	StageVerification = "verification"
	StageMetadata     = "metadata"
	StageExtraction   = "extraction"
	StageRepair       = "repair"
	StageJournal      = "journal"
)
