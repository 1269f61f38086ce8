package archiver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"coldvault/internal/config"
	"coldvault/internal/journal"
	"coldvault/internal/profile"
	"coldvault/internal/redundancy"
	"coldvault/internal/services"
	"coldvault/internal/verification"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	defaults := config.Default()
	cfg := &defaults
	base := t.TempDir()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.JournalPath = filepath.Join(base, "journal.db")
	cfg.Redundancy.Enabled = false
	cfg.Limits.MinFreeSpaceGiB = 0
	cfg.Limits.RetryAttempts = 1
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return cfg
}

func writeSource(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func openJournal(t *testing.T, cfg *config.Config) *journal.Store {
	t.Helper()
	store, err := journal.Open(cfg.Paths.JournalPath)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateVerifyExtractRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	store := openJournal(t, cfg)
	a := New(cfg, nil, Options{Journal: store, Version: "test"})
	source := writeSource(t, map[string]string{
		"docs/readme.md": "# archive me",
		"data.bin":       "payload",
	})
	ctx := context.Background()

	result, err := a.Create(ctx, CreateRequest{Source: source, Name: "unit"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !result.Report.Success {
		t.Fatalf("create verification failed: %+v", result.Report.Layers)
	}
	for _, path := range []string{
		result.Unit.Container,
		result.Unit.MetadataFile,
		result.Unit.SHA256File,
		result.Unit.BLAKE3File,
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}
	if result.Record.Content.Files != 2 {
		t.Errorf("record files = %d, want 2", result.Record.Content.Files)
	}

	report, err := a.Verify(ctx, VerifyRequest{Path: result.Unit.Root})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.Success {
		t.Fatalf("verify failed: %+v", report.Layers)
	}

	dest := filepath.Join(t.TempDir(), "restored")
	extractReport, err := a.Extract(ctx, ExtractRequest{Path: result.Unit.Root, DestDir: dest})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if extractReport.Files != 2 {
		t.Errorf("extracted files = %d, want 2", extractReport.Files)
	}
	got, err := os.ReadFile(filepath.Join(dest, "docs", "readme.md"))
	if err != nil || string(got) != "# archive me" {
		t.Errorf("restored content = %q, %v", got, err)
	}

	entries, err := store.List(ctx, "unit", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("journal entries = %d, want create+verify+extract", len(entries))
	}
	for _, entry := range entries {
		if entry.Outcome != journal.OutcomeSuccess {
			t.Errorf("entry %s outcome = %s", entry.Operation, entry.Outcome)
		}
	}
}

func TestCreateRefusesExistingUnit(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, nil, Options{})
	source := writeSource(t, map[string]string{"a.txt": "a"})
	ctx := context.Background()

	if _, err := a.Create(ctx, CreateRequest{Source: source, Name: "unit"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := a.Create(ctx, CreateRequest{Source: source, Name: "unit"}); err == nil {
		t.Fatal("second create without force should fail")
	}
	if _, err := a.Create(ctx, CreateRequest{Source: source, Name: "unit", Force: true}); err != nil {
		t.Fatalf("forced create: %v", err)
	}
}

func TestCreateMissingSource(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, nil, Options{})
	_, err := a.Create(context.Background(), CreateRequest{Source: filepath.Join(t.TempDir(), "absent")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if entries, _ := os.ReadDir(cfg.Paths.OutputDir); len(entries) != 0 {
		t.Errorf("output dir not empty after failed create: %v", entries)
	}
}

func TestCreateAppliesProfileOverrides(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, nil, Options{})
	source := writeSource(t, map[string]string{"a.txt": "tiny"})

	result, err := a.Create(context.Background(), CreateRequest{
		Source:    source,
		Name:      "unit",
		Overrides: profile.Overrides{Level: 9, Threads: 2},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	c := result.Record.Compression
	if c.Level != 9 || !c.LevelExplicit {
		t.Errorf("level = %d explicit=%v, want 9/true", c.Level, c.LevelExplicit)
	}
	if c.Threads != 2 || !c.ThreadsExplicit {
		t.Errorf("threads = %d explicit=%v, want 2/true", c.Threads, c.ThreadsExplicit)
	}
	if c.WindowExplicit {
		t.Error("window should stay derived")
	}
}

func TestVerifyReportsCorruption(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, nil, Options{})
	source := writeSource(t, map[string]string{"a.txt": "content that gets damaged"})
	ctx := context.Background()

	result, err := a.Create(ctx, CreateRequest{Source: source, Name: "unit"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	data, err := os.ReadFile(result.Unit.Container)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data[len(data)-4] ^= 0xAA
	if err := os.WriteFile(result.Unit.Container, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	report, err := a.Verify(ctx, VerifyRequest{Path: result.Unit.Root})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.Success {
		t.Error("corrupted unit verified as sound")
	}
	if layer, ok := report.Layer(verification.LayerSHA256); !ok || layer.Status != verification.StatusFail {
		t.Errorf("sha256 layer = %+v, want fail", layer)
	}
}

func TestExtractRefusesDamagedUnit(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, nil, Options{})
	source := writeSource(t, map[string]string{"a.txt": "content"})
	ctx := context.Background()

	result, err := a.Create(ctx, CreateRequest{Source: source, Name: "unit"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	data, _ := os.ReadFile(result.Unit.Container)
	data[len(data)-4] ^= 0xAA
	if err := os.WriteFile(result.Unit.Container, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err = a.Extract(ctx, ExtractRequest{Path: result.Unit.Root, DestDir: filepath.Join(t.TempDir(), "out")})
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
}

func TestExtractGuardsNonEmptyDestination(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, nil, Options{})
	source := writeSource(t, map[string]string{"a.txt": "content"})
	ctx := context.Background()

	result, err := a.Create(ctx, CreateRequest{Source: source, Name: "unit"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	dest := t.TempDir()
	if err := os.WriteFile(filepath.Join(dest, "occupied.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := a.Extract(ctx, ExtractRequest{Path: result.Unit.Root, DestDir: dest}); err == nil {
		t.Fatal("extraction into non-empty destination should fail without force")
	}
	if _, err := a.Extract(ctx, ExtractRequest{Path: result.Unit.Root, DestDir: dest, Force: true}); err != nil {
		t.Fatalf("forced extract: %v", err)
	}
}

func TestVerifyToleratesMissingMetadata(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, nil, Options{})
	source := writeSource(t, map[string]string{"a.txt": "content"})
	ctx := context.Background()

	result, err := a.Create(ctx, CreateRequest{Source: source, Name: "unit"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := os.Remove(result.Unit.MetadataFile); err != nil {
		t.Fatalf("remove: %v", err)
	}

	report, err := a.Verify(ctx, VerifyRequest{Path: result.Unit.Root})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	// Sidecars still provide digests, so the hash layers run.
	if !report.Success {
		t.Errorf("report = %+v, want success via sidecar fallback", report.Layers)
	}
}

func TestInspect(t *testing.T) {
	cfg := testConfig(t)
	store := openJournal(t, cfg)
	a := New(cfg, nil, Options{Journal: store})
	source := writeSource(t, map[string]string{"a.txt": "content"})
	ctx := context.Background()

	result, err := a.Create(ctx, CreateRequest{Source: source, Name: "unit"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := a.Verify(ctx, VerifyRequest{Path: result.Unit.Root}); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	info, err := a.Inspect(ctx, result.Unit.Root)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Record == nil || info.Record.Archive.Name != "unit" {
		t.Errorf("record = %+v", info.Record)
	}
	if info.ContainerSize <= 0 {
		t.Error("container size not reported")
	}
	if info.TotalSize <= info.ContainerSize {
		t.Error("total size should include metadata files")
	}
	if info.LastVerification == nil || info.LastVerification.Outcome != journal.OutcomeSuccess {
		t.Errorf("last verification = %+v", info.LastVerification)
	}
}

func TestCreateWithRedundancy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redundancy.Enabled = true
	cfg.Redundancy.Percent = 10
	cfg.Redundancy.VolumeCount = 2
	// Preflight checks PATH for the binary name; the fake executor means
	// it is never actually invoked.
	cfg.Tools.Par2Binary = "sh"

	exec := &unitExecutor{}
	a := New(cfg, nil, Options{Executor: exec})
	source := writeSource(t, map[string]string{"a.txt": "content"})

	result, err := a.Create(context.Background(), CreateRequest{Source: source, Name: "unit"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !result.Record.Redundancy.Enabled || result.Record.Redundancy.Percent != 10 {
		t.Errorf("record redundancy = %+v", result.Record.Redundancy)
	}
	if layer, ok := result.Report.Layer(verification.LayerRedundancy); !ok || layer.Status != verification.StatusPass {
		t.Errorf("redundancy layer = %+v, want pass", layer)
	}
	if len(exec.calls) < 2 {
		t.Errorf("calls = %d, want create then verify", len(exec.calls))
	}
}

// unitExecutor fakes par2cmdline: create invocations drop descriptor files
// where the real tool would, verify invocations report intact.
type unitExecutor struct {
	calls []services.Command
}

func (u *unitExecutor) Run(_ context.Context, cmd services.Command) (int, error) {
	u.calls = append(u.calls, cmd)
	if len(cmd.Args) > 0 && cmd.Args[0] == "create" {
		descriptor := filepath.Join(cmd.Dir, filepath.FromSlash(cmd.Args[len(cmd.Args)-2]))
		volume := descriptor[:len(descriptor)-len(".par2")] + ".vol000+01.par2"
		for _, path := range []string{descriptor, volume} {
			if err := os.WriteFile(path, []byte("par2"), 0o644); err != nil {
				return 1, err
			}
		}
	}
	return 0, nil
}

func TestCreateHonorsDestinationOverride(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, nil, Options{})
	source := writeSource(t, map[string]string{"a.txt": "content"})
	dest := filepath.Join(t.TempDir(), "vault")

	result, err := a.Create(context.Background(), CreateRequest{
		Source:      source,
		Name:        "unit",
		Destination: dest,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Unit.Root != filepath.Join(dest, "unit") {
		t.Errorf("unit root = %s, want under %s", result.Unit.Root, dest)
	}
	if _, err := os.Stat(result.Unit.Container); err != nil {
		t.Errorf("container missing from override destination: %v", err)
	}
	if entries, _ := os.ReadDir(cfg.Paths.OutputDir); len(entries) != 0 {
		t.Errorf("configured output dir should stay untouched, found %v", entries)
	}
}

func TestListEnumeratesUnitContents(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, nil, Options{})
	source := writeSource(t, map[string]string{
		"docs/note.md": "hello",
		"a.txt":        "abc",
	})
	ctx := context.Background()

	result, err := a.Create(ctx, CreateRequest{Source: source, Name: "unit"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	unit, entries, err := a.List(ctx, result.Unit.Root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if unit.Name != "unit" {
		t.Errorf("unit name = %s", unit.Name)
	}
	var paths []string
	for _, entry := range entries {
		paths = append(paths, entry.Path)
	}
	want := []string{"a.txt", "docs", "docs/note.md"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths = %v, want %v", paths, want)
		}
	}
}

// repairExecutor fakes par2cmdline for repair flows: verify invocations pop
// scripted exit codes, repair invocations optionally restore the container.
type repairExecutor struct {
	container   string
	restore     []byte
	verifyExits []int
}

func (r *repairExecutor) Run(_ context.Context, cmd services.Command) (int, error) {
	op := ""
	if len(cmd.Args) > 0 {
		op = cmd.Args[0]
	}
	switch op {
	case "verify":
		exit := 0
		if len(r.verifyExits) > 0 {
			exit = r.verifyExits[0]
			r.verifyExits = r.verifyExits[1:]
		}
		return exit, nil
	case "repair":
		if r.restore != nil {
			if err := os.WriteFile(r.container, r.restore, 0o644); err != nil {
				return 2, err
			}
		}
		return 0, nil
	}
	return 0, nil
}

func createRedundantUnit(t *testing.T, cfg *config.Config) ([]byte, string) {
	t.Helper()
	cfg.Redundancy.Enabled = true
	cfg.Tools.Par2Binary = "sh"
	a := New(cfg, nil, Options{Executor: &unitExecutor{}})
	source := writeSource(t, map[string]string{"a.txt": "content worth protecting"})
	result, err := a.Create(context.Background(), CreateRequest{Source: source, Name: "unit"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	original, err := os.ReadFile(result.Unit.Container)
	if err != nil {
		t.Fatalf("read container: %v", err)
	}
	return original, result.Unit.Container
}

func TestRepairRemovesBackupAfterVerification(t *testing.T) {
	cfg := testConfig(t)
	original, container := createRedundantUnit(t, cfg)

	damaged := append([]byte{}, original...)
	damaged[len(damaged)-4] ^= 0xAA
	if err := os.WriteFile(container, damaged, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	a := New(cfg, nil, Options{Executor: &repairExecutor{
		container:   container,
		restore:     original,
		verifyExits: []int{1, 0},
	}})
	result, err := a.Repair(context.Background(), RepairRequest{Path: filepath.Dir(container)})
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if result.Outcome != redundancy.Repaired {
		t.Fatalf("outcome = %v, want Repaired", result.Outcome)
	}
	if result.Report == nil || !result.Report.Success {
		t.Fatalf("post-repair verification report = %+v", result.Report)
	}
	if _, err := os.Stat(container + redundancy.DamagedSuffix); !os.IsNotExist(err) {
		t.Errorf("damaged backup should be removed after verification passes: %v", err)
	}
}

func TestRepairKeepsBackupWhenVerificationFails(t *testing.T) {
	cfg := testConfig(t)
	original, container := createRedundantUnit(t, cfg)

	damaged := append([]byte{}, original...)
	damaged[len(damaged)-4] ^= 0xAA
	if err := os.WriteFile(container, damaged, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The fake reports a successful repair but leaves the container
	// damaged, so post-repair verification must fail.
	a := New(cfg, nil, Options{Executor: &repairExecutor{
		container:   container,
		verifyExits: []int{1, 0},
	}})
	_, err := a.Repair(context.Background(), RepairRequest{Path: filepath.Dir(container)})
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
	if _, statErr := os.Stat(container + redundancy.DamagedSuffix); statErr != nil {
		t.Errorf("damaged backup must survive a failed repair: %v", statErr)
	}
}
