package listing

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Score bounds.
const (
	MinScore = 0
	MaxScore = 10
)

// Signals is the subset of a Record the legitimacy score reads.
type Signals struct {
	Name          string
	PhoneNorm     string
	WebsiteDomain string
	Address       string
	Rating        *float64
	ReviewCount   *int
	Categories    []string
}

// SignalsOf extracts the scoring signals of a record.
func SignalsOf(r Record) Signals {
	return Signals{
		Name:          r.Name,
		PhoneNorm:     deref(r.PhoneNorm),
		WebsiteDomain: deref(r.WebsiteDomain),
		Address:       deref(r.Address),
		Rating:        r.Rating,
		ReviewCount:   r.ReviewCount,
		Categories:    r.Categories,
	}
}

// Scorer computes the legitimacy score.
type Scorer struct {
	// RelevantTerms award the relevance point when any category contains
	// one of them, case-insensitively.
	RelevantTerms []string
	// Spam matches names that read like SEO bait.
	Spam *regexp.Regexp
}

// defaultRelevantTerms matches the directory's tree-care topic.
var defaultRelevantTerms = []string{"tree", "stump", "arbor", "landscap"}

var defaultSpam = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:cheap|best|near\s+me|#1)(?:[^\p{L}\p{N}]|$)`)

// NewScorer returns a Scorer with the directory's default rules.
func NewScorer() *Scorer {
	return &Scorer{RelevantTerms: defaultRelevantTerms, Spam: defaultSpam}
}

// Score returns the legitimacy score of s, clamped to [0, 10].
//
//	+2 phone with at least 10 digits
//	+1 website domain
//	+1 address of at least 10 characters
//	+1 rating >= 4.0
//	+1 review count >= 5
//	+1 a topically relevant category
//	-2 spam words in the name
//	-2 neither phone nor website
func (sc *Scorer) Score(s Signals) int {
	score := 0

	hasPhone := len(s.PhoneNorm) >= 10
	hasWebsite := s.WebsiteDomain != ""

	if hasPhone {
		score += 2
	}
	if hasWebsite {
		score++
	}
	if utf8.RuneCountInString(s.Address) >= 10 {
		score++
	}
	if s.Rating != nil && *s.Rating >= 4.0 {
		score++
	}
	if s.ReviewCount != nil && *s.ReviewCount >= 5 {
		score++
	}
	if sc.relevant(s.Categories) {
		score++
	}

	if sc.Spam != nil && sc.Spam.MatchString(s.Name) {
		score -= 2
	}
	if !hasPhone && !hasWebsite {
		score -= 2
	}

	return clamp(score)
}

// relevant reports whether any category mentions any relevant term.
func (sc *Scorer) relevant(categories []string) bool {
	for _, c := range categories {
		c = strings.ToLower(c)
		for _, term := range sc.RelevantTerms {
			if strings.Contains(c, term) {
				return true
			}
		}
	}
	return false
}

func clamp(score int) int {
	return max(MinScore, min(MaxScore, score))
}
