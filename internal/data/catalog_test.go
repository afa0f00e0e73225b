package data

import (
	"errors"
	"strings"
	"testing"
)

func TestMapOptions(t *testing.T) {
	if !MapOptionMapWithCarRouting.Has(MapOptionMap) {
		t.Fatal("combined mask should contain the map bit")
	}
	if MapOptionMap.Has(MapOptionCarRouting) {
		t.Fatal("map mask should not contain the routing bit")
	}
	if MapOptionNothing.Has(MapOptionNothing) {
		t.Fatal("nothing never matches")
	}
	if got := MapOptionMap.With(MapOptionCarRouting); got != MapOptionMapWithCarRouting {
		t.Fatalf("With = %v", got)
	}
	if got := MapOptionMapWithCarRouting.Without(MapOptionCarRouting); got != MapOptionMap {
		t.Fatalf("Without = %v", got)
	}
	comps := MapOptionMapWithCarRouting.Components()
	if len(comps) != 2 || comps[0] != MapOptionMap || comps[1] != MapOptionCarRouting {
		t.Fatalf("Components = %v", comps)
	}
}

func TestParseMapOptions(t *testing.T) {
	cases := map[string]MapOptions{
		"":            MapOptionMapWithCarRouting,
		"map":         MapOptionMap,
		"routing":     MapOptionCarRouting,
		"map+routing": MapOptionMapWithCarRouting,
	}
	for in, want := range cases {
		got, err := ParseMapOptions(in)
		if err != nil || got != want {
			t.Fatalf("ParseMapOptions(%q) = %v, %v", in, got, err)
		}
		if in != "" && got.String() != in {
			t.Fatalf("round trip %q -> %q", in, got.String())
		}
	}
	if _, err := ParseMapOptions("bicycle"); !errors.Is(err, ErrBadMapOptions) {
		t.Fatalf("err = %v, want ErrBadMapOptions", err)
	}
}

func TestCountryFileRemoteSize(t *testing.T) {
	cf := NewCountryFile("Uruguay", 100, 40)
	if got := cf.RemoteSize(MapOptionMap); got != 100 {
		t.Fatalf("map size = %d", got)
	}
	if got := cf.RemoteSize(MapOptionCarRouting); got != 40 {
		t.Fatalf("routing size = %d", got)
	}
	if got := cf.RemoteSize(MapOptionMapWithCarRouting); got != 140 {
		t.Fatalf("combined size = %d", got)
	}
	if got := cf.RemoteSize(MapOptionNothing); got != 0 {
		t.Fatalf("empty size = %d", got)
	}
}

func TestCatalogLookup(t *testing.T) {
	c := NewCatalog([]CountryFile{
		NewCountryFile("Uruguay", 100, 40),
		NewCountryFile("Venezuela", 200, 50),
	})
	id := c.FindCountryByName("Uruguay")
	if !id.IsValid() {
		t.Fatal("known country id is invalid")
	}
	if got := c.FindCountryByName("Atlantis"); got.IsValid() {
		t.Fatal("unknown country id should be invalid")
	}
	cf, err := c.CountryFileByID(id)
	if err != nil || cf.Name() != "Uruguay" {
		t.Fatalf("CountryFileByID = %v, %v", cf, err)
	}
	if _, err := c.CountryFileByID("Atlantis"); !errors.Is(err, ErrCountryNotFound) {
		t.Fatalf("err = %v, want ErrCountryNotFound", err)
	}
	ids := c.IDs()
	if len(ids) != 2 || ids[0] != "Uruguay" || ids[1] != "Venezuela" {
		t.Fatalf("IDs = %v", ids)
	}
}

func TestLoadCatalog(t *testing.T) {
	src := `[{"name":"Uruguay","mapSize":100,"routingSize":40},{"name":"Algeria","mapSize":30,"routingSize":0}]`
	c, err := LoadCatalog(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	cf, err := c.CountryFileByID("Algeria")
	if err != nil || cf.RemoteSize(MapOptionCarRouting) != 0 {
		t.Fatalf("Algeria = %v, %v", cf, err)
	}

	if _, err := LoadCatalog(strings.NewReader(`[{"name":"X","unknown":1}]`)); err == nil {
		t.Fatal("unknown fields should be rejected")
	}
	if _, err := LoadCatalog(strings.NewReader(`[{"mapSize":1,"routingSize":0}]`)); err == nil {
		t.Fatal("missing name should be rejected")
	}
}
