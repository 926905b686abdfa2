package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func scoreRaw(raw RawRecord) int {
	rec, ok := NewNormalizer(nil, "").Normalize(raw)
	if !ok {
		return -1
	}
	return NewScorer().Score(SignalsOf(rec))
}

func TestScore_NoContactPenaltyClampsToZero(t *testing.T) {
	assert.Equal(t, 0, scoreRaw(RawRecord{"title": "Joe's Tree Service"}))
}

func TestScore_AddingPhoneRaisesByAtLeastTwo(t *testing.T) {
	base := scoreRaw(RawRecord{"title": "Joe's Tree Service"})
	withPhone := scoreRaw(RawRecord{"title": "Joe's Tree Service", "phone": "555-123-4567"})
	assert.GreaterOrEqual(t, withPhone-base, 2)
	assert.Equal(t, 2, withPhone)
}

func TestScore_ThresholdExample(t *testing.T) {
	raw := RawRecord{
		"title":        "ABC Stump",
		"phone":        "(555) 000-1111",
		"website":      "abcstump.com",
		"address":      "123 Main Street, Anaheim",
		"categoryName": "Tree Service",
	}
	assert.Equal(t, 5, scoreRaw(raw))

	raw["rating"] = "4.5"
	raw["reviewsCount"] = "10"
	assert.Equal(t, 7, scoreRaw(raw))
}

func TestScore_SpamPenalty(t *testing.T) {
	got := scoreRaw(RawRecord{
		"title":   "Best Cheap Stump Removal Near Me",
		"phone":   "555-123-4567",
		"website": "https://cheapstumps.com",
	})
	assert.Equal(t, 1, got)
}

func TestScore_Rules(t *testing.T) {
	sc := NewScorer()
	tests := []struct {
		name string
		s    Signals
		want int
	}{
		{"nothing", Signals{Name: "x"}, 0},
		{"short phone is not a phone", Signals{Name: "x", PhoneNorm: "5551234", WebsiteDomain: "x.com"}, 1},
		{"phone only", Signals{Name: "x", PhoneNorm: "5551234567"}, 2},
		{"website only", Signals{Name: "x", WebsiteDomain: "x.com"}, 1},
		{"short address", Signals{Name: "x", PhoneNorm: "5551234567", Address: "1 Elm St"}, 2},
		{"address counts runes", Signals{Name: "x", PhoneNorm: "5551234567", Address: "1 Ñandú Wy"}, 3},
		{"rating below 4", Signals{Name: "x", PhoneNorm: "5551234567", Rating: floatPtr(3.9)}, 2},
		{"rating at 4", Signals{Name: "x", PhoneNorm: "5551234567", Rating: floatPtr(4.0)}, 3},
		{"reviews at 5", Signals{Name: "x", PhoneNorm: "5551234567", ReviewCount: intPtr(5)}, 3},
		{"reviews at 4", Signals{Name: "x", PhoneNorm: "5551234567", ReviewCount: intPtr(4)}, 2},
		{"relevant category", Signals{Name: "x", PhoneNorm: "5551234567", Categories: []string{"Landscaper"}}, 3},
		{"any category matches", Signals{Name: "x", PhoneNorm: "5551234567", Categories: []string{"Plumber", "ARBORIST"}}, 3},
		{"irrelevant category", Signals{Name: "x", PhoneNorm: "5551234567", Categories: []string{"Plumber"}}, 2},
		{"#1 token", Signals{Name: "#1 Tree Guys", PhoneNorm: "5551234567"}, 0},
		{"spam word inside another word", Signals{Name: "Bestwick Arbor", PhoneNorm: "5551234567"}, 2},
		{"every signal", Signals{
			Name:          "Oak Pros",
			PhoneNorm:     "5551234567",
			WebsiteDomain: "oak.com",
			Address:       "1 Elm Street, Irvine",
			Rating:        floatPtr(4.9),
			ReviewCount:   intPtr(300),
			Categories:    []string{"Tree service"},
		}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sc.Score(tt.s))
		})
	}
}

func TestScore_CustomTerms(t *testing.T) {
	sc := &Scorer{RelevantTerms: []string{"plumb"}}
	assert.Equal(t, 3, sc.Score(Signals{Name: "Best Pipes", PhoneNorm: "5551234567", Categories: []string{"Plumber"}}))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, clamp(-4))
	assert.Equal(t, 10, clamp(12))
	assert.Equal(t, 6, clamp(6))
}
