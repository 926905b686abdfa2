package store

import (
	"context"
	"time"

	"github.com/socal-tree-directory/listing-import/internal/listing"
)

// RunStatus is the lifecycle state of an import run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one import run recorded in the import_runs ledger.
type Run struct {
	ID        string             `json:"id"`
	File      string             `json:"file"`
	Status    RunStatus          `json:"status"`
	Result    *listing.RunResult `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for the listing import.
type Store interface {
	// Businesses
	listing.Writer
	CountBusinesses(ctx context.Context, source string) (int64, error)

	// Run ledger
	listing.RunLog
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// businessesTable is the directory table the import writes to.
const businessesTable = "businesses"

// businessColumns lists the columns the import writes, in value order.
var businessColumns = []string{
	"slug", "name", "description", "phone", "email", "website",
	"address", "city", "county", "zip_code", "latitude", "longitude",
	"is_featured", "is_claimed", "rating", "review_count",
	"source", "source_id", "canonical_key", "name_norm", "phone_norm",
	"website_domain", "address_norm", "legitimacy_score", "raw_data", "last_scraped_at",
}

// appOwnedColumns are maintained by the directory app once a row exists
// and are only set on insert.
var appOwnedColumns = map[string]bool{
	"description": true,
	"email":       true,
	"is_featured": true,
	"is_claimed":  true,
}

// updateColumns returns the columns overwritten when a row matches key.
func updateColumns(key listing.ConflictKey) []string {
	cols := make([]string, 0, len(businessColumns))
	for _, c := range businessColumns {
		if c == string(key) || appOwnedColumns[c] {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

// businessValues returns b's values in businessColumns order.
func businessValues(b listing.Business) []any {
	return []any{
		b.Slug, b.Name, b.Description, b.Phone, b.Email, b.Website,
		b.Address, b.City, b.County, b.ZipCode, b.Latitude, b.Longitude,
		b.IsFeatured, b.IsClaimed, b.Rating, b.ReviewCount,
		b.Source, b.SourceID, b.CanonicalKey, b.NameNorm, b.PhoneNorm,
		b.WebsiteDomain, b.AddressNorm, b.LegitimacyScore, string(b.RawData), b.LastScrapedAt,
	}
}

func validConflictKey(key listing.ConflictKey) bool {
	return key == listing.ConflictCanonicalKey || key == listing.ConflictSlug
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
