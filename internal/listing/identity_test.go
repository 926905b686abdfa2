package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalKey_Priority(t *testing.T) {
	full := Record{
		Name:          "Cedar Crew",
		NameNorm:      "cedar crew",
		AddressNorm:   strPtr("1 elm st"),
		City:          strPtr("irvine"),
		PhoneE164:     strPtr("+15551234567"),
		PhoneNorm:     strPtr("5551234567"),
		WebsiteDomain: strPtr("cedarcrew.com"),
		Source:        SourceGoogleMaps,
		SourceID:      strPtr("ChIJ9"),
	}

	r := full
	assert.Equal(t, "phone:+15551234567", CanonicalKey(r))

	r.PhoneE164 = strPtr("  ")
	assert.Equal(t, "phone_digits:5551234567", CanonicalKey(r))

	r.PhoneE164, r.PhoneNorm = nil, nil
	assert.Equal(t, "google_maps:ChIJ9", CanonicalKey(r))

	r.SourceID = nil
	assert.Equal(t, "web:cedarcrew.com:irvine", CanonicalKey(r))

	r.City = nil
	assert.Equal(t, "nameaddr:cedar crew:1 elm st", CanonicalKey(r))

	r.AddressNorm = nil
	assert.Equal(t, "nameaddr:cedar crew:na", CanonicalKey(r))

	r.NameNorm = ""
	assert.Equal(t, "nameaddr:na:na", CanonicalKey(r))
}

func TestCanonicalKey_SamePhoneDifferentNames(t *testing.T) {
	n := NewNormalizer(nil, "")
	a, _ := n.Normalize(RawRecord{"title": "Cedar Crew", "address": "1 Elm St", "phoneUnformatted": "+15551234567"})
	b, _ := n.Normalize(RawRecord{"title": "Cedar Crew Tree Care", "address": "99 Oak Ave", "phoneUnformatted": "+15551234567"})
	assert.Equal(t, CanonicalKey(a), CanonicalKey(b))
}

func TestCanonicalKey_NameAddressCollapse(t *testing.T) {
	n := NewNormalizer(nil, "")
	a, _ := n.Normalize(RawRecord{"title": "Cedar Crew, LLC", "address": "1 Elm St."})
	b, _ := n.Normalize(RawRecord{"title": "cedar crew", "address": "1 ELM ST"})
	assert.Equal(t, "nameaddr:cedar crew:1 elm st", CanonicalKey(a))
	assert.Equal(t, CanonicalKey(a), CanonicalKey(b))
}

func TestCanonicalKey_Deterministic(t *testing.T) {
	r := Record{NameNorm: "x", PhoneNorm: strPtr("5551234567")}
	assert.Equal(t, CanonicalKey(r), CanonicalKey(r))
}

func TestCanonicalKey_WebsiteWithoutScheme(t *testing.T) {
	// Exports often drop the scheme. The bare host still yields a web key,
	// where a strict URL parse would fall through to nameaddr.
	rec, ok := NewNormalizer(nil, "").Normalize(RawRecord{
		"title":   "ABC Stump",
		"website": "abcstump.com",
		"address": "9 Canyon Rd",
		"city":    "Anaheim",
	})
	assert.True(t, ok)
	assert.Equal(t, "web:abcstump.com:anaheim", CanonicalKey(rec))
}
