package localfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/veikko/mapstore/internal/data"
)

// LocalCountryFile is one on-disk instance of a country package, bound to a
// single version. The present-components mask and per-component sizes reflect
// the disk only as of the last SyncWithDisk call.
type LocalCountryFile struct {
	dir     string
	country data.CountryFile
	version int64

	files data.MapOptions
	sizes map[data.MapOptions]int64
}

// New binds a country file to a version directory. The caller is expected to
// SyncWithDisk before reading the component mask.
func New(dir string, country data.CountryFile, version int64) *LocalCountryFile {
	return &LocalCountryFile{
		dir:     dir,
		country: country,
		version: version,
		sizes:   make(map[data.MapOptions]int64),
	}
}

// PreparePlace creates the version directory for a country and returns a
// local file handle bound to it.
func PreparePlace(root string, country data.CountryFile, version int64) (*LocalCountryFile, error) {
	dir := VersionDir(root, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare place for %s v%d: %w", country.Name(), version, err)
	}
	return New(dir, country, version), nil
}

func (f *LocalCountryFile) Country() data.CountryFile { return f.country }
func (f *LocalCountryFile) Version() int64            { return f.version }
func (f *LocalCountryFile) Directory() string         { return f.dir }

// Files is the present-components mask as of the last disk sync.
func (f *LocalCountryFile) Files() data.MapOptions { return f.files }

// Path returns the on-disk path for a single component of this version.
func (f *LocalCountryFile) Path(opt data.MapOptions) string {
	return filepath.Join(f.dir, f.country.Name()+componentExt(opt))
}

// Size returns the summed on-disk bytes of the requested components that are
// actually present.
func (f *LocalCountryFile) Size(opt data.MapOptions) int64 {
	var size int64
	for _, c := range opt.Components() {
		size += f.sizes[c]
	}
	return size
}

// SyncWithDisk refreshes the component mask and sizes from the filesystem.
func (f *LocalCountryFile) SyncWithDisk() {
	f.files = data.MapOptionNothing
	clear(f.sizes)
	for _, c := range []data.MapOptions{data.MapOptionMap, data.MapOptionCarRouting} {
		st, err := os.Stat(f.Path(c))
		if err != nil {
			continue
		}
		f.files = f.files.With(c)
		f.sizes[c] = st.Size()
	}
}

// DeleteFromDisk removes the on-disk files of the requested components and
// clears their bits. Missing files are not an error. The first removal
// failure is returned after attempting the remaining components.
func (f *LocalCountryFile) DeleteFromDisk(opt data.MapOptions) error {
	var firstErr error
	for _, c := range opt.Components() {
		err := os.Remove(f.Path(c))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			if firstErr == nil {
				firstErr = fmt.Errorf("delete %s: %w", f.Path(c), err)
			}
			continue
		}
		f.files = f.files.Without(c)
		delete(f.sizes, c)
	}
	return firstErr
}

// DeleteDownloaderFiles removes in-flight payload and resume sidecars of a
// component transfer, best effort.
func DeleteDownloaderFiles(root string, name string, opt data.MapOptions, version int64) {
	for _, c := range opt.Components() {
		_ = os.Remove(DownloadPath(root, name, c, version))
		_ = os.Remove(ResumePath(root, name, c, version))
	}
}
