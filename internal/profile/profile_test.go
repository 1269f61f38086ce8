package profile

import (
	"runtime"
	"testing"
)

func TestForSizeTiers(t *testing.T) {
	cases := []struct {
		name   string
		size   int64
		level  int
		window int64
		long   bool
	}{
		{"zero", 0, 3, 128 << 10, false},
		{"tiny", 10 << 10, 3, 128 << 10, false},
		{"small", 500 << 10, 7, 1 << 20, false},
		{"small-medium", 4 << 20, 11, 4 << 20, false},
		{"medium", 32 << 20, 15, 16 << 20, false},
		{"large", 256 << 20, 17, 64 << 20, true},
		{"very-large", 1 << 30, 19, 128 << 20, true},
		{"huge", 3 << 30, 19, 256 << 20, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := ForSize(tc.size)
			if p.Level != tc.level {
				t.Errorf("level: got %d, want %d", p.Level, tc.level)
			}
			if p.WindowSize != tc.window {
				t.Errorf("window: got %d, want %d", p.WindowSize, tc.window)
			}
			if p.LongRange != tc.long {
				t.Errorf("long range: got %v, want %v", p.LongRange, tc.long)
			}
			if p.Threads != runtime.NumCPU() {
				t.Errorf("threads not resolved: got %d", p.Threads)
			}
			if p.MemoryLimitMiB < 512 {
				t.Errorf("memory limit below floor: %d", p.MemoryLimitMiB)
			}
		})
	}
}

func TestTierBoundaries(t *testing.T) {
	for i := 1; i < TierCount(); i++ {
		bound := TierLowerBound(i)
		below := ForSize(bound - 1)
		at := ForSize(bound)
		if below == at {
			t.Errorf("tier boundary %d: profile unchanged across boundary", bound)
		}
	}
}

func TestTierBoundsStrictlyIncreasing(t *testing.T) {
	for i := 1; i < TierCount(); i++ {
		if TierLowerBound(i) <= TierLowerBound(i-1) {
			t.Fatalf("tier bounds not strictly increasing at index %d", i)
		}
	}
	if TierLowerBound(0) != 0 {
		t.Fatal("first tier must cover the zero-byte case")
	}
}

func TestResolveOverrides(t *testing.T) {
	res, err := Resolve(10<<10, Overrides{Level: 19, Threads: 4}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Level != 19 || !res.ExplicitLevel {
		t.Errorf("level override not applied: %+v", res)
	}
	if res.Threads != 4 || !res.ExplicitThreads {
		t.Errorf("threads override not applied: %+v", res)
	}
	if res.ExplicitWindow || res.ExplicitMemory {
		t.Errorf("unexpected explicit flags: %+v", res)
	}
	// Derived fields untouched by overrides.
	if res.WindowSize != 128<<10 {
		t.Errorf("window changed unexpectedly: %d", res.WindowSize)
	}
}

func TestResolveWindowOverrideRecomputesMemory(t *testing.T) {
	res, err := Resolve(10<<10, Overrides{WindowMiB: 256}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.WindowSize != 256<<20 {
		t.Fatalf("window: got %d", res.WindowSize)
	}
	if res.MemoryLimitMiB != 2048 {
		t.Fatalf("memory limit not recomputed from window: got %d", res.MemoryLimitMiB)
	}
}

func TestResolveLongRangeThreshold(t *testing.T) {
	res, err := Resolve(100<<20, Overrides{}, 200)
	if err != nil {
		t.Fatal(err)
	}
	if res.LongRange {
		t.Error("long range enabled below threshold")
	}
	res, err = Resolve(300<<20, Overrides{}, 200)
	if err != nil {
		t.Fatal(err)
	}
	if !res.LongRange {
		t.Error("long range disabled above threshold")
	}
}

func TestResolveRejectsBadValues(t *testing.T) {
	if _, err := Resolve(0, Overrides{Level: 25}, 0); err == nil {
		t.Error("expected error for out-of-range level")
	}
	if _, err := Resolve(0, Overrides{WindowMiB: 3}, 0); err == nil {
		t.Error("expected error for non-power-of-two window")
	}
}
