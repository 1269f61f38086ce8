// Package layout resolves the on-disk shape of an archive unit: the
// container file plus its metadata directory with hash sidecars, the
// redundancy descriptor and volumes, and the metadata record.
//
//	output/<name>/
//	├── <name>.tar.zst
//	└── metadata/
//	    ├── <name>.tar.zst.sha256
//	    ├── <name>.tar.zst.blake3
//	    ├── <name>.tar.zst.par2
//	    ├── <name>.tar.zst.vol000+animal.par2
//	    └── metadata.toml
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// ContainerExt is the canonical container extension.
	ContainerExt = ".tar.zst"
	// MetadataDirName holds sidecars, recovery volumes, and the record.
	MetadataDirName = "metadata"
	// MetadataFileName is the TOML record inside the metadata directory.
	MetadataFileName = "metadata.toml"
	// SHA256Ext and BLAKE3Ext are the dual hash sidecar extensions.
	SHA256Ext = ".sha256"
	BLAKE3Ext = ".blake3"
	// Par2Ext is the redundancy descriptor/volume extension.
	Par2Ext = ".par2"
)

// Unit names every file slot of one archive unit. Paths are absolute; the
// files may or may not exist.
type Unit struct {
	Name         string
	Root         string
	Container    string
	MetadataDir  string
	MetadataFile string
	SHA256File   string
	BLAKE3File   string
	Descriptor   string
}

// ForName lays out a unit named name under outputDir.
func ForName(outputDir, name string) Unit {
	root := filepath.Join(outputDir, name)
	container := filepath.Join(root, name+ContainerExt)
	metadataDir := filepath.Join(root, MetadataDirName)
	base := filepath.Base(container)
	return Unit{
		Name:         name,
		Root:         root,
		Container:    container,
		MetadataDir:  metadataDir,
		MetadataFile: filepath.Join(metadataDir, MetadataFileName),
		SHA256File:   filepath.Join(metadataDir, base+SHA256Ext),
		BLAKE3File:   filepath.Join(metadataDir, base+BLAKE3Ext),
		Descriptor:   filepath.Join(metadataDir, base+Par2Ext),
	}
}

// Resolve accepts either a unit directory or a container file path and
// returns the unit layout. The unit may have been relocated; everything is
// addressed relative to the container's parent directory.
func Resolve(path string) (Unit, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Unit{}, err
	}

	container := path
	if info.IsDir() {
		container, err = findContainer(path)
		if err != nil {
			return Unit{}, err
		}
	}
	if !strings.HasSuffix(container, ContainerExt) {
		return Unit{}, fmt.Errorf("%s is not a %s container", container, ContainerExt)
	}

	absContainer, err := filepath.Abs(container)
	if err != nil {
		return Unit{}, err
	}
	root := filepath.Dir(absContainer)
	base := filepath.Base(absContainer)
	name := strings.TrimSuffix(base, ContainerExt)
	metadataDir := filepath.Join(root, MetadataDirName)

	return Unit{
		Name:         name,
		Root:         root,
		Container:    absContainer,
		MetadataDir:  metadataDir,
		MetadataFile: filepath.Join(metadataDir, MetadataFileName),
		SHA256File:   filepath.Join(metadataDir, base+SHA256Ext),
		BLAKE3File:   filepath.Join(metadataDir, base+BLAKE3Ext),
		Descriptor:   filepath.Join(metadataDir, base+Par2Ext),
	}, nil
}

// Volumes lists the recovery volume files belonging to the unit, sorted.
// The descriptor itself is not included.
func (u Unit) Volumes() ([]string, error) {
	entries, err := os.ReadDir(u.MetadataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	base := filepath.Base(u.Container)
	var volumes []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == base+Par2Ext {
			continue
		}
		if strings.HasPrefix(name, base+".vol") && strings.HasSuffix(name, Par2Ext) {
			volumes = append(volumes, filepath.Join(u.MetadataDir, name))
		}
	}
	sort.Strings(volumes)
	return volumes, nil
}

func findContainer(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ContainerExt) {
			matches = append(matches, filepath.Join(dir, entry.Name()))
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no %s container found in %s", ContainerExt, dir)
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", fmt.Errorf("multiple containers found in %s: %s", dir, strings.Join(matches, ", "))
	}
}

// CleanName strips known archive extensions from a source path so the unit
// name matches user intent (source.tar.gz and source/ both become "source").
func CleanName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	lower := strings.ToLower(base)

	compound := []string{
		".tar.gz", ".tar.bz2", ".tar.xz", ".tar.lz", ".tar.lzma",
		".tar.z", ".tar.zst", ".tar.lz4",
	}
	for _, ext := range compound {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}

	single := []string{
		".7z", ".zip", ".rar", ".gz", ".bz2", ".xz", ".lz", ".lzma",
		".z", ".zst", ".lz4", ".tar", ".tgz", ".tbz2", ".txz",
	}
	for _, ext := range single {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}
