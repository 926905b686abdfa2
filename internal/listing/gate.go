package listing

// Gate returns the winners whose legitimacy score is at least minScore,
// preserving order. Records below the threshold stay in the unique report
// but are never written.
func Gate(winners []Scored, minScore int) []Scored {
	out := make([]Scored, 0, len(winners))
	for _, w := range winners {
		if w.LegitimacyScore >= minScore {
			out = append(out, w)
		}
	}
	return out
}
