package listing

import (
	"strings"
)

// CanonicalKey derives the identity a record is deduplicated and upserted
// on. Rules are tried strongest first:
//
//	phone:<e164>                    machine-readable phone
//	phone_digits:<digits>           digit-only phone
//	<source>:<source id>            provider record id
//	web:<domain>:<city>             website domain within a city
//	nameaddr:<name>:<address>       normalized name and address, "na" when absent
//
// The name/address fallback is the weakest signal and errs toward missing a
// duplicate rather than merging two businesses.
func CanonicalKey(r Record) string {
	if e164 := deref(r.PhoneE164); strings.TrimSpace(e164) != "" {
		return "phone:" + strings.TrimSpace(e164)
	}
	if digits := deref(r.PhoneNorm); digits != "" {
		return "phone_digits:" + digits
	}
	if r.Source != "" && deref(r.SourceID) != "" {
		return r.Source + ":" + *r.SourceID
	}
	if domain, city := deref(r.WebsiteDomain), deref(r.City); domain != "" && city != "" {
		return "web:" + domain + ":" + strings.ToLower(city)
	}
	return "nameaddr:" + orNA(r.NameNorm) + ":" + orNA(deref(r.AddressNorm))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orNA(s string) string {
	if s == "" {
		return "na"
	}
	return s
}
