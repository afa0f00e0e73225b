package storage

import (
	"sort"

	"github.com/veikko/mapstore/internal/data"
	"github.com/veikko/mapstore/internal/localfile"
)

// registry tracks, per country id, the on-disk package versions known to the
// engine. At most one entry exists per (id, version); "latest" is the entry
// with the maximum version. All access happens on the engine's control path.
type registry struct {
	files map[data.CountryID][]*localfile.LocalCountryFile
}

func newRegistry() *registry {
	return &registry{files: make(map[data.CountryID][]*localfile.LocalCountryFile)}
}

// Register inserts or replaces the entry for (id, lf.Version()), keeping the
// per-id slice sorted by ascending version.
func (r *registry) Register(id data.CountryID, lf *localfile.LocalCountryFile) {
	list := r.files[id]
	for i, f := range list {
		if f.Version() == lf.Version() {
			list[i] = lf
			return
		}
	}
	list = append(list, lf)
	sort.Slice(list, func(i, j int) bool { return list[i].Version() < list[j].Version() })
	r.files[id] = list
}

// Find returns the entry for an exact (id, version), or nil.
func (r *registry) Find(id data.CountryID, version int64) *localfile.LocalCountryFile {
	for _, f := range r.files[id] {
		if f.Version() == version {
			return f
		}
	}
	return nil
}

// Latest returns the highest-version entry for id, or nil.
func (r *registry) Latest(id data.CountryID) *localfile.LocalCountryFile {
	list := r.files[id]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// All returns a copy of the per-id slice so callers can mutate the registry
// while iterating.
func (r *registry) All(id data.CountryID) []*localfile.LocalCountryFile {
	list := r.files[id]
	out := make([]*localfile.LocalCountryFile, len(list))
	copy(out, list)
	return out
}

// Remove drops the entry for (id, version), if any.
func (r *registry) Remove(id data.CountryID, version int64) {
	list := r.files[id]
	for i, f := range list {
		if f.Version() == version {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.files, id)
		return
	}
	r.files[id] = list
}
