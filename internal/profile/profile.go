// Package profile selects compression parameters from the staged source size.
//
// The tier table is a pure, total step function: every size maps to exactly
// one tier, boundaries are inclusive on the lower side, and the top tier is
// unbounded. User overrides are applied per field on top of the derived tier
// and tracked so metadata can distinguish explicit from derived values.
package profile

import (
	"fmt"
	"runtime"
)

// Profile holds the fully resolved compression parameters for one archive.
// All fields are concrete: no "auto" sentinels survive resolution.
type Profile struct {
	Level          int   // zstd level 1-19
	WindowSize     int64 // bytes, power of two
	Threads        int
	MemoryLimitMiB int
	LongRange      bool
}

// Overrides carries user-specified parameter values. Zero means "derive".
type Overrides struct {
	Level          int
	Threads        int
	WindowMiB      int
	MemoryLimitMiB int
}

// Resolved pairs a profile with the record of which fields were explicit.
type Resolved struct {
	Profile
	ExplicitLevel   bool
	ExplicitThreads bool
	ExplicitWindow  bool
	ExplicitMemory  bool
}

type tier struct {
	lowerBound int64
	level      int
	window     int64
	longRange  bool
}

// Boundary values are tuned empirically; they are configuration, not
// invariants, but changing them changes which profile existing sources
// would be re-archived with.
var tiers = []tier{
	{0, 3, 128 << 10, false},
	{256 << 10, 7, 1 << 20, false},
	{1 << 20, 11, 4 << 20, false},
	{8 << 20, 15, 16 << 20, false},
	{64 << 20, 17, 64 << 20, true},
	{512 << 20, 19, 128 << 20, true},
	{2 << 30, 19, 256 << 20, true},
}

// ForSize returns the derived profile for a staged source of the given byte
// size. Threads and memory ceiling are resolved to concrete values.
func ForSize(size int64) Profile {
	if size < 0 {
		size = 0
	}
	selected := tiers[0]
	for _, t := range tiers[1:] {
		if size >= t.lowerBound {
			selected = t
		}
	}
	return Profile{
		Level:          selected.level,
		WindowSize:     selected.window,
		Threads:        runtime.NumCPU(),
		MemoryLimitMiB: defaultMemoryLimitMiB(selected.window),
		LongRange:      selected.longRange,
	}
}

// Resolve derives the profile for size and applies overrides per field.
// longRangeThresholdMiB moves the cutoff above which long-range matching is
// enabled; zero keeps the tier default.
func Resolve(size int64, ov Overrides, longRangeThresholdMiB int) (Resolved, error) {
	base := ForSize(size)
	res := Resolved{Profile: base}

	if ov.Level != 0 {
		if ov.Level < 1 || ov.Level > 19 {
			return Resolved{}, fmt.Errorf("compression level %d out of range 1-19", ov.Level)
		}
		res.Level = ov.Level
		res.ExplicitLevel = true
	}
	if ov.Threads != 0 {
		if ov.Threads < 0 {
			return Resolved{}, fmt.Errorf("thread count %d must be positive", ov.Threads)
		}
		res.Threads = ov.Threads
		res.ExplicitThreads = true
	}
	if ov.WindowMiB != 0 {
		w := int64(ov.WindowMiB) << 20
		if ov.WindowMiB < 1 || ov.WindowMiB > 512 || w&(w-1) != 0 {
			return Resolved{}, fmt.Errorf("window size %d MiB must be a power of two between 1 and 512", ov.WindowMiB)
		}
		res.WindowSize = w
		res.ExplicitWindow = true
	}
	if ov.MemoryLimitMiB != 0 {
		if ov.MemoryLimitMiB < 1 {
			return Resolved{}, fmt.Errorf("memory limit %d MiB must be positive", ov.MemoryLimitMiB)
		}
		res.MemoryLimitMiB = ov.MemoryLimitMiB
		res.ExplicitMemory = true
	} else if res.ExplicitWindow {
		res.MemoryLimitMiB = defaultMemoryLimitMiB(res.WindowSize)
	}

	if longRangeThresholdMiB > 0 {
		res.LongRange = size >= int64(longRangeThresholdMiB)<<20
	}

	return res, nil
}

// defaultMemoryLimitMiB sizes the decode/encode ceiling at eight windows,
// floored at 512 MiB so small archives still get a workable budget.
func defaultMemoryLimitMiB(window int64) int {
	limit := (window * 8) >> 20
	if limit < 512 {
		return 512
	}
	return int(limit)
}

// TierCount reports the number of configured tiers (used by boundary tests).
func TierCount() int { return len(tiers) }

// TierLowerBound returns the inclusive lower bound of tier i.
func TierLowerBound(i int) int64 { return tiers[i].lowerBound }
