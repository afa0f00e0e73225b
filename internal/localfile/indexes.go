package localfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// CountryIndexes manages the auxiliary per-package-version index artifact
// (the "bits" file). It is created together with a version's first committed
// component and removed together with the version.

// IndexesPath returns the bits artifact path for a local file.
func IndexesPath(f *LocalCountryFile) string {
	return filepath.Join(f.Directory(), f.Country().Name()+bitsExt)
}

// PrepareIndexes creates an empty bits artifact if one does not exist yet.
func PrepareIndexes(f *LocalCountryFile) error {
	path := IndexesPath(f)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("prepare indexes %s: %w", path, err)
	}
	return fh.Close()
}

// DeleteIndexes removes the bits artifact. A missing artifact is not an error.
func DeleteIndexes(f *LocalCountryFile) error {
	err := os.Remove(IndexesPath(f))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete indexes: %w", err)
	}
	return nil
}
