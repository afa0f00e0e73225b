package data

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Catalog is the flat set of country packages the service knows about. The
// hierarchy that groups them is an external concern; the engine only needs
// name lookup and remote size metadata.
type Catalog struct {
	byID map[CountryID]CountryFile
}

// NewCatalog builds a catalog from static country files.
func NewCatalog(files []CountryFile) *Catalog {
	c := &Catalog{byID: make(map[CountryID]CountryFile, len(files))}
	for _, f := range files {
		c.byID[CountryID(f.Name())] = f
	}
	return c
}

// FindCountryByName returns the id for a country name, or an invalid id when
// the name is unknown.
func (c *Catalog) FindCountryByName(name string) CountryID {
	id := CountryID(name)
	if _, ok := c.byID[id]; !ok {
		return ""
	}
	return id
}

// CountryFileByID looks up the static metadata for an id.
func (c *Catalog) CountryFileByID(id CountryID) (CountryFile, error) {
	f, ok := c.byID[id]
	if !ok {
		return CountryFile{}, ErrCountryNotFound
	}
	return f, nil
}

// IDs returns all catalog ids in stable name order.
func (c *Catalog) IDs() []CountryID {
	out := make([]CountryID, 0, len(c.byID))
	for id := range c.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type catalogEntry struct {
	Name        string `json:"name"`
	MapSize     int64  `json:"mapSize"`
	RoutingSize int64  `json:"routingSize"`
}

// LoadCatalog decodes a JSON array of catalog entries.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var entries []catalogEntry
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	files := make([]CountryFile, 0, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("catalog entry %d: %w", i, ErrCountryNotFound)
		}
		files = append(files, NewCountryFile(e.Name, e.MapSize, e.RoutingSize))
	}
	return NewCatalog(files), nil
}
