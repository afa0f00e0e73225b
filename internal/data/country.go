package data

import "errors"

// CountryID identifies a downloadable country package. It is an opaque key
// into the external country hierarchy; the zero value is invalid.
type CountryID string

// IsValid reports whether the id refers to a real catalog entry.
func (id CountryID) IsValid() bool { return id != "" }

// MapOptions is a bitmask of a country package's downloadable components.
type MapOptions uint8

const (
	MapOptionNothing    MapOptions = 0
	MapOptionMap        MapOptions = 1 << 0
	MapOptionCarRouting MapOptions = 1 << 1

	MapOptionMapWithCarRouting = MapOptionMap | MapOptionCarRouting
)

// Has reports whether all components of opt are set.
func (o MapOptions) Has(opt MapOptions) bool { return o&opt == opt && opt != MapOptionNothing }

// With returns the union of both masks.
func (o MapOptions) With(opt MapOptions) MapOptions { return o | opt }

// Without clears opt's bits.
func (o MapOptions) Without(opt MapOptions) MapOptions { return o &^ opt }

// Components splits the mask into its individual component bits.
func (o MapOptions) Components() []MapOptions {
	var out []MapOptions
	for _, c := range []MapOptions{MapOptionMap, MapOptionCarRouting} {
		if o.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (o MapOptions) String() string {
	switch o {
	case MapOptionNothing:
		return "nothing"
	case MapOptionMap:
		return "map"
	case MapOptionCarRouting:
		return "routing"
	case MapOptionMapWithCarRouting:
		return "map+routing"
	}
	return "invalid"
}

// ParseMapOptions converts the wire form used by the HTTP API back into a
// mask. An empty string means the full component set.
func ParseMapOptions(s string) (MapOptions, error) {
	switch s {
	case "":
		return MapOptionMapWithCarRouting, nil
	case "map":
		return MapOptionMap, nil
	case "routing":
		return MapOptionCarRouting, nil
	case "map+routing":
		return MapOptionMapWithCarRouting, nil
	}
	return MapOptionNothing, ErrBadMapOptions
}

// CountryFile is the static identity of a country package: its name plus the
// remote byte size of each component. Instances are immutable and supplied by
// the catalog.
type CountryFile struct {
	name        string
	mapSize     int64
	routingSize int64
}

func NewCountryFile(name string, mapSize, routingSize int64) CountryFile {
	return CountryFile{name: name, mapSize: mapSize, routingSize: routingSize}
}

func (c CountryFile) Name() string { return c.name }

// RemoteSize returns the sum of remote sizes for the requested components.
func (c CountryFile) RemoteSize(opt MapOptions) int64 {
	var size int64
	if opt.Has(MapOptionMap) {
		size += c.mapSize
	}
	if opt.Has(MapOptionCarRouting) {
		size += c.routingSize
	}
	return size
}

var (
	ErrCountryNotFound = errors.New("country not found")
	ErrBadMapOptions   = errors.New("invalid map options")
	ErrNotInQueue      = errors.New("country not in download queue")
)
