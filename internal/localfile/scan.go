package localfile

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/veikko/mapstore/internal/data"
)

// FindAllLocalFiles walks the maps root and returns a handle for every
// country package version found on disk, already synced with the disk.
// Non-numeric directories and stray files are skipped. The scan itself is
// best effort; an unreadable version directory is logged and skipped.
func FindAllLocalFiles(log *slog.Logger, root string) []*LocalCountryFile {
	entries, err := os.ReadDir(root)
	if err != nil {
		log.Warn("scan maps root", "root", root, "err", err)
		return nil
	}

	var found []*LocalCountryFile
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		version, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			log.Warn("skipping non-version directory", "dir", e.Name())
			continue
		}
		dir := VersionDir(root, version)
		files, err := os.ReadDir(dir)
		if err != nil {
			log.Warn("scan version directory", "dir", dir, "err", err)
			continue
		}
		seen := make(map[string]bool)
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			name, ok := countryName(f.Name())
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			lf := New(dir, data.NewCountryFile(name, 0, 0), version)
			lf.SyncWithDisk()
			if lf.Files() != data.MapOptionNothing {
				found = append(found, lf)
			}
		}
	}
	return found
}

// countryName extracts the country name from a component file name. In-flight
// payloads, resume sidecars and index artifacts are not components.
func countryName(file string) (string, bool) {
	switch {
	case strings.HasSuffix(file, RoutingExt):
		return strings.TrimSuffix(file, RoutingExt), true
	case strings.HasSuffix(file, MapExt):
		return strings.TrimSuffix(file, MapExt), true
	}
	return "", false
}
