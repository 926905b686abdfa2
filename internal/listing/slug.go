package listing

import (
	"crypto/sha1" //nolint:gosec // short content hash, not a security boundary
	"encoding/hex"
)

// fallbackRegion prefixes slugs of records with no city.
const fallbackRegion = "socal"

// Slug builds the URL identifier for a listing from its city slug and name,
// suffixed with a short hash of the canonical key so that businesses sharing
// a name and city still get distinct slugs.
//
//	Slug("Joe's Tree Service", "anaheim", "phone:+15551234567") -> "anaheim-joes-tree-service-<6 hex>"
func Slug(name, city, canonicalKey string) string {
	if city == "" {
		city = fallbackRegion
	}
	base := Slugify(city + " " + name)
	return base + "-" + shortHash(canonicalKey)
}

func shortHash(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec
	return hex.EncodeToString(sum[:])[:6]
}
