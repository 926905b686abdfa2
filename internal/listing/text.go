package listing

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are whole words dropped from normalized business names.
var legalSuffixes = map[string]bool{
	"llc":         true,
	"inc":         true,
	"co":          true,
	"company":     true,
	"corp":        true,
	"corporation": true,
	"ltd":         true,
	"limited":     true,
}

// collapseSpace replaces every whitespace run with one space and trims the ends.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// lettersAndDigits lowercases s and replaces every rune that is not a letter
// or digit in any script with a space.
func lettersAndDigits(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return ' '
	}, s)
}

// NormalizeName reduces a business name to a comparable form: lowercase,
// punctuation stripped, legal-entity suffix words removed, spaces collapsed.
//
//	"Joe's Tree Service, LLC" -> "joe s tree service"
func NormalizeName(name string) string {
	words := strings.Fields(lettersAndDigits(name))
	kept := words[:0]
	for _, w := range words {
		if !legalSuffixes[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// NormalizeAddress lowercases an address and strips its punctuation.
func NormalizeAddress(addr string) string {
	return collapseSpace(lettersAndDigits(addr))
}

// digitsOnly keeps the ASCII digits of s.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone strips a phone number to its digits. An 11-digit number
// with a leading US country code "1" is reduced to 10 digits. Other lengths
// pass through unvalidated.
func NormalizePhone(phone string) string {
	d := digitsOnly(phone)
	if len(d) == 11 && d[0] == '1' {
		return d[1:]
	}
	return d
}

// ExtractDomain returns the lowercase hostname of a website URL with any
// leading "www." removed. Bare hosts such as "abcstump.com" are read as
// https URLs. Returns "" when no hostname can be parsed.
func ExtractDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" || !strings.Contains(host, ".") {
		return ""
	}
	return host
}

// foldChars spells out characters that have no decomposed ASCII form.
var foldChars = strings.NewReplacer(
	"&", " and ",
	"ß", "ss",
	"æ", "ae", "Æ", "AE",
	"ø", "o", "Ø", "O",
	"đ", "d", "Đ", "D",
	"ł", "l", "Ł", "L",
)

// foldDiacritics removes combining marks: "Café" -> "Cafe".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify builds a lowercase, dash-separated ASCII slug. Characters outside
// [a-z0-9] are dropped after diacritics are folded, and dashes count as
// word separators.
//
//	"Joe's Tree Service" -> "joes-tree-service"
func Slugify(s string) string {
	s = foldDiacritics(foldChars.Replace(s))
	s = strings.ReplaceAll(s, "-", " ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), "-")
}
