package listing

import (
	"maps"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// City is a curated directory city.
type City struct {
	Slug   string `yaml:"slug"`
	County string `yaml:"county"`
}

// CityTable maps an export's city name, matched exactly, to its curated city.
type CityTable map[string]City

var defaultCities = CityTable{
	"Los Angeles":      {Slug: "los-angeles", County: "Los Angeles County"},
	"Long Beach":       {Slug: "long-beach", County: "Los Angeles County"},
	"Malibu":           {Slug: "malibu", County: "Los Angeles County"},
	"Anaheim":          {Slug: "anaheim", County: "Orange County"},
	"Huntington Beach": {Slug: "huntington-beach", County: "Orange County"},
	"Irvine":           {Slug: "irvine", County: "Orange County"},
	"Laguna Beach":     {Slug: "laguna-beach", County: "Orange County"},
	"Riverside":        {Slug: "riverside", County: "Riverside County"},
	"San Diego":        {Slug: "san-diego", County: "San Diego County"},
	"Carlsbad":         {Slug: "carlsbad", County: "San Diego County"},
	"Pasadena":         {Slug: "pasadena", County: "Los Angeles County"},
	"Glendale":         {Slug: "glendale", County: "Los Angeles County"},
	"Torrance":         {Slug: "torrance", County: "Los Angeles County"},
	"Burbank":          {Slug: "burbank", County: "Los Angeles County"},
	"Santa Ana":        {Slug: "santa-ana", County: "Orange County"},
	"Newport Beach":    {Slug: "newport-beach", County: "Orange County"},
	"Costa Mesa":       {Slug: "costa-mesa", County: "Orange County"},
	"Chula Vista":      {Slug: "chula-vista", County: "San Diego County"},
	"Oceanside":        {Slug: "oceanside", County: "San Diego County"},
	"Escondido":        {Slug: "escondido", County: "San Diego County"},
	"El Cajon":         {Slug: "el-cajon", County: "San Diego County"},
	"Temecula":         {Slug: "temecula", County: "Riverside County"},
	"Murrieta":         {Slug: "murrieta", County: "Riverside County"},
	"Corona":           {Slug: "corona", County: "Riverside County"},
	"San Bernardino":   {Slug: "san-bernardino", County: "San Bernardino County"},
	"Fontana":          {Slug: "fontana", County: "San Bernardino County"},
	"Rancho Cucamonga": {Slug: "rancho-cucamonga", County: "San Bernardino County"},
}

// DefaultCities returns a copy of the built-in Southern California city table.
func DefaultCities() CityTable {
	return maps.Clone(defaultCities)
}

// LoadCityTable reads a YAML city table of the form
//
//	Los Angeles: {slug: los-angeles, county: Los Angeles County}
//
// An empty path returns the built-in table.
func LoadCityTable(path string) (CityTable, error) {
	if path == "" {
		return DefaultCities(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "listing: read city table %s", path)
	}

	var table CityTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, eris.Wrapf(err, "listing: parse city table %s", path)
	}
	if len(table) == 0 {
		return nil, eris.Errorf("listing: city table %s is empty", path)
	}
	for name, c := range table {
		if strings.TrimSpace(c.Slug) == "" {
			return nil, eris.Errorf("listing: city table %s: %q has no slug", path, name)
		}
	}
	return table, nil
}

// Resolve maps a raw export city onto a slug and county. Unlisted cities
// fall back to a slug of the raw name with no county. A blank city yields
// neither.
func (t CityTable) Resolve(raw string) (slug, county string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if c, ok := t[raw]; ok {
		return c.Slug, c.County
	}
	return Slugify(raw), ""
}
