package layout

import (
	"os"
	"path/filepath"
	"testing"
)

func TestForName(t *testing.T) {
	u := ForName("/out", "photos")
	if u.Container != filepath.Join("/out", "photos", "photos.tar.zst") {
		t.Errorf("container: %s", u.Container)
	}
	if u.MetadataFile != filepath.Join("/out", "photos", "metadata", "metadata.toml") {
		t.Errorf("metadata file: %s", u.MetadataFile)
	}
	if u.SHA256File != filepath.Join("/out", "photos", "metadata", "photos.tar.zst.sha256") {
		t.Errorf("sha256 sidecar: %s", u.SHA256File)
	}
	if u.Descriptor != filepath.Join("/out", "photos", "metadata", "photos.tar.zst.par2") {
		t.Errorf("descriptor: %s", u.Descriptor)
	}
}

func TestResolveFromContainerPath(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "docs.tar.zst")
	if err := os.WriteFile(container, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	u, err := Resolve(container)
	if err != nil {
		t.Fatal(err)
	}
	if u.Name != "docs" {
		t.Errorf("name: %s", u.Name)
	}
	if u.MetadataDir != filepath.Join(dir, "metadata") {
		t.Errorf("metadata dir: %s", u.MetadataDir)
	}
}

func TestResolveFromUnitDir(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "docs.tar.zst")
	if err := os.WriteFile(container, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	u, err := Resolve(dir)
	if err != nil {
		t.Fatal(err)
	}
	if u.Container != container {
		t.Errorf("container: %s", u.Container)
	}
}

func TestResolveNoContainer(t *testing.T) {
	if _, err := Resolve(t.TempDir()); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestVolumes(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "docs.tar.zst")
	if err := os.WriteFile(container, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	metaDir := filepath.Join(dir, "metadata")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"docs.tar.zst.par2",
		"docs.tar.zst.vol000+01.par2",
		"docs.tar.zst.vol001+02.par2",
		"metadata.toml",
	} {
		if err := os.WriteFile(filepath.Join(metaDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	u, err := Resolve(container)
	if err != nil {
		t.Fatal(err)
	}
	volumes, err := u.Volumes()
	if err != nil {
		t.Fatal(err)
	}
	if len(volumes) != 2 {
		t.Fatalf("volumes: got %d, want 2", len(volumes))
	}
}

func TestCleanName(t *testing.T) {
	cases := map[string]string{
		"photos":              "photos",
		"backup.tar.gz":       "backup",
		"backup.tar.zst":      "backup",
		"Backup.TAR.XZ":       "Backup",
		"archive.7z":          "archive",
		"notes.zip":           "notes",
		"plain.tar":           "plain",
		"/path/to/my-dir/":    "my-dir",
		"readme.txt.tar.bz2":  "readme.txt",
		"no-extension-at-all": "no-extension-at-all",
	}
	for input, want := range cases {
		if got := CleanName(input); got != want {
			t.Errorf("CleanName(%q) = %q, want %q", input, got, want)
		}
	}
}
