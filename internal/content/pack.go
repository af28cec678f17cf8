// Package content implements the bulk content-pack build: pack discovery
// under the content root, registry gating, per-pack subprocess builds
// through a bounded worker pool, and the library index page generated from
// pack descriptions.
package content

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/courseboot/internal/foundation"
)

const (
	// noBuildMarker opts a pack out of the bulk build. It belongs to pack
	// authors, so it stays a plain file instead of living in the state record.
	noBuildMarker = "NOBUILD"
	// depsFileName lists pack-local dependencies to install before building.
	depsFileName = "pack-deps.txt"
	// descriptionFile feeds the library index page.
	descriptionFile = "description.md"
)

// Pack is one content-pack directory under the content root.
type Pack struct {
	// Name is the directory name, which doubles as the registry key.
	Name string
	// Dir is the pack directory path.
	Dir string
}

// Discover lists pack directories under root, sorted by name. Hidden
// directories and plain files are ignored.
func Discover(root string) ([]Pack, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, foundation.BuildError("reading content root").
			WithCause(err).
			WithContext(foundation.Fields{"path": root}).
			Build()
	}

	packs := make([]Pack, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		packs = append(packs, Pack{Name: entry.Name(), Dir: filepath.Join(root, entry.Name())})
	}
	sort.Slice(packs, func(i, j int) bool { return packs[i].Name < packs[j].Name })
	return packs, nil
}

// SkipBuild reports whether the pack carries the NOBUILD marker.
func (p Pack) SkipBuild() bool {
	_, err := os.Stat(filepath.Join(p.Dir, noBuildMarker))
	return err == nil
}

// DepsFile returns the pack-local dependency list path when one exists.
func (p Pack) DepsFile() (string, bool) {
	path := filepath.Join(p.Dir, depsFileName)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Description returns the pack's markdown description when one exists.
func (p Pack) Description() ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(p.Dir, descriptionFile))
	if err != nil {
		return nil, false
	}
	return data, true
}
