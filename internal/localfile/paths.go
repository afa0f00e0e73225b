package localfile

import (
	"path/filepath"
	"strconv"

	"github.com/veikko/mapstore/internal/data"
)

// On-disk naming. Each package version lives in its own numeric directory
// under the maps root; component files share the country name and differ by
// suffix. In-flight transfers use a ".downloading" payload plus a ".resume"
// sidecar next to the final path.
const (
	MapExt         = ".mwm"
	RoutingExt     = ".mwm.routing"
	bitsExt        = ".mwm.bits"
	DownloadingExt = ".downloading"
	ResumeExt      = ".resume"
)

// VersionDir returns the directory holding one version of the dataset.
func VersionDir(root string, version int64) string {
	return filepath.Join(root, strconv.FormatInt(version, 10))
}

func componentExt(opt data.MapOptions) string {
	if opt == data.MapOptionCarRouting {
		return RoutingExt
	}
	return MapExt
}

// ComponentPath returns the final path of a single component file.
func ComponentPath(root string, name string, opt data.MapOptions, version int64) string {
	return filepath.Join(VersionDir(root, version), name+componentExt(opt))
}

// DownloadPath returns the in-flight payload path for a component transfer.
func DownloadPath(root string, name string, opt data.MapOptions, version int64) string {
	return ComponentPath(root, name, opt, version) + DownloadingExt
}

// ResumePath returns the resumable-transfer sidecar path for a component.
func ResumePath(root string, name string, opt data.MapOptions, version int64) string {
	return ComponentPath(root, name, opt, version) + ResumeExt
}
