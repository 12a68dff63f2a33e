package texmatch

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// textureExts is the accepted-extension set, lowercased. It is a superset
// of what the extractor pulls from archives: the catalog scans the whole
// model directory, so pre-existing textures are also eligible.
var textureExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tga":  true,
	".tif":  true,
	".tiff": true,
}

type entry struct {
	path      string
	lowerStem string
}

// Catalog is the set of texture filenames available for matching within one
// item's texture directory. Immutable once built; rebuilt per item, never
// shared across items.
type Catalog struct {
	entries []entry
}

// NewCatalog builds a catalog from filenames, keeping only recognized image
// extensions. Entries are sorted lexicographically by filename so that when
// several files share a stem with different extensions, resolution order is
// deterministic rather than filesystem enumeration order. Which of those
// files wins is a don't-care unless the input guarantees one file per stem.
func NewCatalog(dir string, names []string) *Catalog {
	c := &Catalog{}
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	for _, name := range sorted {
		ext := strings.ToLower(filepath.Ext(name))
		if !textureExts[ext] {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		c.entries = append(c.entries, entry{
			path:      filepath.Join(dir, name),
			lowerStem: strings.ToLower(stem),
		})
	}
	return c
}

// ScanDir builds a catalog from the files in dir. An unreadable directory
// yields an empty catalog — every role will simply go unmatched for this
// item.
func ScanDir(dir string) *Catalog {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("Could not list texture directory", "dir", dir, "error", err)
		return &Catalog{}
	}
	names := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() {
			names = append(names, d.Name())
		}
	}
	return NewCatalog(dir, names)
}

// Lookup returns the path of the first entry whose stem equals the given
// stem, ignoring case. The extension plays no part in matching.
func (c *Catalog) Lookup(stem string) (string, bool) {
	want := strings.ToLower(stem)
	for _, e := range c.entries {
		if e.lowerStem == want {
			return e.path, true
		}
	}
	return "", false
}

// Len reports the number of eligible texture files in the catalog.
func (c *Catalog) Len() int {
	return len(c.entries)
}
