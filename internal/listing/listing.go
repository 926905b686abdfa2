// Package listing turns scraped business-listing exports into deduplicated,
// scored directory rows and writes the publishable ones to the businesses table.
package listing

import (
	"encoding/json"
	"errors"
	"time"
)

// SourceGoogleMaps identifies rows produced by the Google Maps export.
const SourceGoogleMaps = "google_maps"

// DefaultMinScore is the publish gate threshold: a verifiable contact
// channel plus one corroborating signal.
const DefaultMinScore = 6

// DefaultBatchSize bounds the rows sent to the store per upsert statement.
const DefaultBatchSize = 200

// ReasonSameCanonicalKey marks a duplicate that collided on its canonical key.
const ReasonSameCanonicalKey = "same_canonical_key"

// RawRecord is one untyped export row keyed by header name.
type RawRecord map[string]string

// Record is the typed view of a RawRecord after normalization. Optional
// fields are nil when the export had no usable value.
type Record struct {
	Name          string
	NameNorm      string
	Address       *string
	AddressNorm   *string
	City          *string // canonical city slug
	County        *string
	ZipCode       *string
	Latitude      *float64
	Longitude     *float64
	PhoneE164     *string
	PhoneDisplay  *string
	PhoneNorm     *string
	Website       *string
	WebsiteDomain *string
	Rating        *float64
	ReviewCount   *int
	Categories    []string
	Source        string
	SourceID      *string

	// Raw is kept only for the raw_data column.
	Raw RawRecord
}

// Scored is a Record with its derived identity, score and slug.
type Scored struct {
	Record
	CanonicalKey    string
	LegitimacyScore int
	Slug            string
}

// Reviews returns the review count, treating an absent count as zero.
func (s *Scored) Reviews() int {
	if s.ReviewCount == nil {
		return 0
	}
	return *s.ReviewCount
}

// Duplicate records a collision on a canonical key and who lost it.
type Duplicate struct {
	Reason string
	Key    string
	Winner Scored
	Loser  Scored
}

// ConflictKey names the column an upsert resolves conflicts on.
type ConflictKey string

// Conflict targets for the businesses upsert.
const (
	ConflictCanonicalKey ConflictKey = "canonical_key"
	ConflictSlug         ConflictKey = "slug"
)

// ErrMissingConflictTarget is returned by a Writer when the table has no
// unique constraint matching the requested ConflictKey.
var ErrMissingConflictTarget = errors.New("listing: no unique constraint for conflict target")

// Business is one row of the directory's businesses table as written by
// the import.
type Business struct {
	Slug            string          `json:"slug"`
	Name            string          `json:"name"`
	Description     *string         `json:"description"`
	Phone           *string         `json:"phone"`
	Email           *string         `json:"email"`
	Website         *string         `json:"website"`
	Address         *string         `json:"address"`
	City            *string         `json:"city"`
	County          *string         `json:"county"`
	ZipCode         *string         `json:"zip_code"`
	Latitude        *float64        `json:"latitude"`
	Longitude       *float64        `json:"longitude"`
	IsFeatured      bool            `json:"is_featured"`
	IsClaimed       bool            `json:"is_claimed"`
	Rating          *float64        `json:"rating"`
	ReviewCount     *int            `json:"review_count"`
	Source          string          `json:"source"`
	SourceID        *string         `json:"source_id"`
	CanonicalKey    string          `json:"canonical_key"`
	NameNorm        string          `json:"name_norm"`
	PhoneNorm       *string         `json:"phone_norm"`
	WebsiteDomain   *string         `json:"website_domain"`
	AddressNorm     *string         `json:"address_norm"`
	LegitimacyScore int             `json:"legitimacy_score"`
	RawData         json.RawMessage `json:"raw_data"`
	LastScrapedAt   time.Time       `json:"last_scraped_at"`
}

// ToBusiness maps a scored record onto its businesses row. The stored phone
// prefers the machine-readable form over the display form.
func ToBusiness(s Scored, scrapedAt time.Time) Business {
	phone := s.PhoneE164
	if phone == nil {
		phone = s.PhoneDisplay
	}

	raw, err := json.Marshal(s.Raw)
	if err != nil || s.Raw == nil {
		raw = json.RawMessage("{}")
	}

	return Business{
		Slug:            s.Slug,
		Name:            s.Name,
		Phone:           phone,
		Website:         s.Website,
		Address:         s.Address,
		City:            s.City,
		County:          s.County,
		ZipCode:         s.ZipCode,
		Latitude:        s.Latitude,
		Longitude:       s.Longitude,
		Rating:          s.Rating,
		ReviewCount:     s.ReviewCount,
		Source:          s.Source,
		SourceID:        s.SourceID,
		CanonicalKey:    s.CanonicalKey,
		NameNorm:        s.NameNorm,
		PhoneNorm:       s.PhoneNorm,
		WebsiteDomain:   s.WebsiteDomain,
		AddressNorm:     s.AddressNorm,
		LegitimacyScore: s.LegitimacyScore,
		RawData:         raw,
		LastScrapedAt:   scrapedAt.UTC(),
	}
}

// ToBusinesses maps every scored record onto its businesses row.
func ToBusinesses(records []Scored, scrapedAt time.Time) []Business {
	out := make([]Business, len(records))
	for i, r := range records {
		out[i] = ToBusiness(r, scrapedAt)
	}
	return out
}
