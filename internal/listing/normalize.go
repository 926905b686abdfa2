package listing

import (
	"math"
	"strconv"
	"strings"
)

// Header aliases probed, in order, for each logical field. Export versions
// disagree on column naming.
var (
	nameAliases         = []string{"title", "name", "businessName", "Company", "placeName"}
	cityAliases         = []string{"city"}
	addressAliases      = []string{"address", "fullAddress", "streetAddress"}
	zipAliases          = []string{"postalCode", "zip", "zip_code"}
	phoneE164Aliases    = []string{"phoneUnformatted", "phone_e164", "phoneE164"}
	phoneDisplayAliases = []string{"phone", "phoneFormatted"}
	websiteAliases      = []string{"website", "url", "websiteUrl"}
	sourceIDAliases     = []string{"placeId", "place_id"}
	latitudeAliases     = []string{"latitude", "lat"}
	longitudeAliases    = []string{"longitude", "lng"}
	ratingAliases       = []string{"rating"}
	reviewAliases       = []string{"reviewsCount", "reviewCount", "review_count"}
	categoryAliases     = []string{"categoryName", "category", "primaryCategory"}
)

// Normalizer converts raw export rows into Records.
type Normalizer struct {
	Cities CityTable
	Source string
}

// NewNormalizer returns a Normalizer for source using the given city table.
// A nil table selects the built-in cities; an empty source selects google_maps.
func NewNormalizer(cities CityTable, source string) *Normalizer {
	if cities == nil {
		cities = DefaultCities()
	}
	if source == "" {
		source = SourceGoogleMaps
	}
	return &Normalizer{Cities: cities, Source: source}
}

// Normalize builds the typed Record for one row. It returns false when the
// row has no usable business name; such rows are skipped, not errors.
// Field values that cannot be parsed become absent.
func (n *Normalizer) Normalize(raw RawRecord) (Record, bool) {
	name := collapseSpace(pick(raw, nameAliases))
	if name == "" {
		return Record{}, false
	}

	rec := Record{
		Name:         name,
		NameNorm:     NormalizeName(name),
		Address:      optional(pick(raw, addressAliases)),
		ZipCode:      optional(pick(raw, zipAliases)),
		PhoneE164:    optional(pick(raw, phoneE164Aliases)),
		PhoneDisplay: optional(pick(raw, phoneDisplayAliases)),
		Website:      optional(pick(raw, websiteAliases)),
		SourceID:     optional(pick(raw, sourceIDAliases)),
		Latitude:     parseFloat(pick(raw, latitudeAliases)),
		Longitude:    parseFloat(pick(raw, longitudeAliases)),
		Rating:       parseFloat(pick(raw, ratingAliases)),
		ReviewCount:  parseCount(pick(raw, reviewAliases)),
		Categories:   []string{},
		Source:       n.Source,
		Raw:          raw,
	}

	if rec.Address != nil {
		rec.AddressNorm = optional(NormalizeAddress(*rec.Address))
	}

	slug, county := n.Cities.Resolve(pick(raw, cityAliases))
	rec.City = optional(slug)
	rec.County = optional(county)

	switch {
	case rec.PhoneE164 != nil:
		rec.PhoneNorm = optional(NormalizePhone(*rec.PhoneE164))
	case rec.PhoneDisplay != nil:
		rec.PhoneNorm = optional(NormalizePhone(*rec.PhoneDisplay))
	}

	if rec.Website != nil {
		rec.WebsiteDomain = optional(ExtractDomain(*rec.Website))
	}

	if cat := pick(raw, categoryAliases); cat != "" {
		rec.Categories = append(rec.Categories, cat)
	}

	return rec, true
}

// pick returns the first non-blank value among keys, trimmed. Exact header
// matches win; otherwise a header equal to the key ignoring case and
// surrounding space is accepted, the lexically smallest such header first.
func pick(raw RawRecord, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(raw[k]); v != "" {
			return v
		}
	}
	for _, k := range keys {
		best, found := "", false
		for h, v := range raw {
			if h == k || !strings.EqualFold(strings.TrimSpace(h), k) || strings.TrimSpace(v) == "" {
				continue
			}
			if !found || h < best {
				best, found = h, true
			}
		}
		if found {
			return strings.TrimSpace(raw[best])
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseFloat returns nil for blank, unparseable or non-finite input.
func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseCount accepts integral values such as "12", "12.0" or "1,204".
func parseCount(s string) *int {
	f := parseFloat(strings.ReplaceAll(s, ",", ""))
	if f == nil || *f != math.Trunc(*f) || *f < 0 || *f > math.MaxInt32 {
		return nil
	}
	n := int(*f)
	return &n
}
