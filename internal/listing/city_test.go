package listing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCityTable_Resolve(t *testing.T) {
	cities := DefaultCities()

	slug, county := cities.Resolve("Huntington Beach")
	assert.Equal(t, "huntington-beach", slug)
	assert.Equal(t, "Orange County", county)

	slug, county = cities.Resolve("  Irvine ")
	assert.Equal(t, "irvine", slug)
	assert.Equal(t, "Orange County", county)

	// Matching is case-sensitive; misses fall back to a slug with no county.
	slug, county = cities.Resolve("irvine")
	assert.Equal(t, "irvine", slug)
	assert.Empty(t, county)

	slug, county = cities.Resolve("San Clemente")
	assert.Equal(t, "san-clemente", slug)
	assert.Empty(t, county)

	slug, county = cities.Resolve("")
	assert.Empty(t, slug)
	assert.Empty(t, county)
}

func TestDefaultCities_ReturnsCopy(t *testing.T) {
	a := DefaultCities()
	delete(a, "Malibu")
	assert.Contains(t, DefaultCities(), "Malibu")
	assert.Len(t, DefaultCities(), 27)
}

func TestLoadCityTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
Ventura: {slug: ventura, county: Ventura County}
Ojai:
  slug: ojai
  county: Ventura County
`), 0o644))

	table, err := LoadCityTable(path)
	require.NoError(t, err)
	assert.Len(t, table, 2)
	assert.Equal(t, City{Slug: "ojai", County: "Ventura County"}, table["Ojai"])
}

func TestLoadCityTable_EmptyPathUsesDefaults(t *testing.T) {
	table, err := LoadCityTable("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCities(), table)
}

func TestLoadCityTable_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing", filepath.Join(dir, "nope.yaml"), "read city table"},
		{"malformed", write("bad.yaml", "Ventura: [unclosed"), "parse city table"},
		{"empty", write("empty.yaml", "{}"), "is empty"},
		{"no slug", write("noslug.yaml", "Ventura: {county: Ventura County}"), "has no slug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCityTable(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
