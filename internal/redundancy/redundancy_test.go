package redundancy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"coldvault/internal/layout"
	"coldvault/internal/services"
	"coldvault/internal/services/par2"
)

// scriptedExecutor simulates par2cmdline: per-call exit codes plus a hook
// that can create files in the working directory the way the tool would.
type scriptedExecutor struct {
	exitCodes []int
	onCall    func(call int, cmd services.Command)
	calls     []services.Command
}

func (s *scriptedExecutor) Run(_ context.Context, cmd services.Command) (int, error) {
	call := len(s.calls)
	s.calls = append(s.calls, cmd)
	if s.onCall != nil {
		s.onCall(call, cmd)
	}
	if call < len(s.exitCodes) {
		return s.exitCodes[call], nil
	}
	return 0, nil
}

func testUnit(t *testing.T, containerContent string) layout.Unit {
	t.Helper()
	unit := layout.ForName(t.TempDir(), "unit")
	if err := os.MkdirAll(unit.MetadataDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(unit.Container, []byte(containerContent), 0o644); err != nil {
		t.Fatalf("write container: %v", err)
	}
	return unit
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("par2"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestGenerateDiscoversSet(t *testing.T) {
	unit := testUnit(t, "container")
	exec := &scriptedExecutor{
		onCall: func(call int, cmd services.Command) {
			base := filepath.Base(unit.Container)
			touch(t, filepath.Join(cmd.Dir, "metadata", base+".par2"))
			touch(t, filepath.Join(cmd.Dir, "metadata", base+".vol000+01.par2"))
			touch(t, filepath.Join(cmd.Dir, "metadata", base+".vol001+02.par2"))
		},
	}
	manager := NewManager(par2.New("par2", 0, exec, nil), nil)

	set, err := manager.Generate(context.Background(), unit, Parameters{Percent: 10, VolumeCount: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if set.DescriptorPath != unit.Descriptor {
		t.Errorf("descriptor = %q, want %q", set.DescriptorPath, unit.Descriptor)
	}
	if len(set.VolumePaths) != 2 {
		t.Errorf("volumes = %v, want 2", set.VolumePaths)
	}
	if exec.calls[0].Dir != unit.Root {
		t.Errorf("Dir = %q, want unit root %q", exec.calls[0].Dir, unit.Root)
	}
}

func TestGenerateRemovesStaleSet(t *testing.T) {
	unit := testUnit(t, "container")
	stale := filepath.Join(unit.MetadataDir, filepath.Base(unit.Container)+".vol999+01.par2")
	touch(t, unit.Descriptor)
	touch(t, stale)

	exec := &scriptedExecutor{
		onCall: func(call int, cmd services.Command) {
			if _, err := os.Stat(stale); !os.IsNotExist(err) {
				t.Error("stale volume should be removed before regeneration")
			}
			base := filepath.Base(unit.Container)
			touch(t, filepath.Join(cmd.Dir, "metadata", base+".par2"))
			touch(t, filepath.Join(cmd.Dir, "metadata", base+".vol000+01.par2"))
		},
	}
	manager := NewManager(par2.New("par2", 0, exec, nil), nil)
	set, err := manager.Generate(context.Background(), unit, Parameters{Percent: 10, VolumeCount: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(set.VolumePaths) != 1 {
		t.Errorf("volumes = %v, want only the fresh one", set.VolumePaths)
	}
}

func TestRepairNotNeeded(t *testing.T) {
	unit := testUnit(t, "container")
	touch(t, unit.Descriptor)
	exec := &scriptedExecutor{exitCodes: []int{0}}
	manager := NewManager(par2.New("par2", 0, exec, nil), nil)

	outcome, err := manager.Repair(context.Background(), unit)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if outcome != RepairNotNeeded {
		t.Errorf("outcome = %v, want RepairNotNeeded", outcome)
	}
	if len(exec.calls) != 1 {
		t.Errorf("calls = %d, repair should stop after intact verify", len(exec.calls))
	}
}

func TestRepairBacksUpDamagedContainer(t *testing.T) {
	unit := testUnit(t, "damaged-bytes")
	touch(t, unit.Descriptor)
	// verify exits 1 (repairable), repair exits 0.
	exec := &scriptedExecutor{exitCodes: []int{1, 0}}
	manager := NewManager(par2.New("par2", 0, exec, nil), nil)

	outcome, err := manager.Repair(context.Background(), unit)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if outcome != Repaired {
		t.Errorf("outcome = %v, want Repaired", outcome)
	}
	backup, err := os.ReadFile(unit.Container + DamagedSuffix)
	if err != nil {
		t.Fatalf("damaged backup missing: %v", err)
	}
	if string(backup) != "damaged-bytes" {
		t.Errorf("backup = %q, want pre-repair contents", backup)
	}
	if exec.calls[1].Args[0] != "repair" {
		t.Errorf("second call = %v, want repair", exec.calls[1].Args)
	}
}

func TestRepairInsufficientRedundancy(t *testing.T) {
	unit := testUnit(t, "container")
	touch(t, unit.Descriptor)
	exec := &scriptedExecutor{exitCodes: []int{2}}
	manager := NewManager(par2.New("par2", 0, exec, nil), nil)

	outcome, err := manager.Repair(context.Background(), unit)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if outcome != InsufficientRedundancy {
		t.Errorf("outcome = %v, want InsufficientRedundancy", outcome)
	}
	if _, err := os.Stat(unit.Container + DamagedSuffix); !os.IsNotExist(err) {
		t.Error("no backup should be made when repair cannot proceed")
	}
	if len(exec.calls) != 1 {
		t.Errorf("calls = %d, want verify only", len(exec.calls))
	}
}

func TestDiscoverMissingDescriptor(t *testing.T) {
	unit := layout.ForName(t.TempDir(), "unit")
	_, err := Discover(unit)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
