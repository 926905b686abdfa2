package listing

// Deduper keeps one winning record per canonical key for a single run.
// Records must be added in input order: the final tie-break keeps the
// record seen first, so the outcome depends on that order.
type Deduper struct {
	winners map[string]Scored
	order   []string
	dupes   []Duplicate
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{winners: make(map[string]Scored)}
}

// Add offers a record to its canonical key group. The higher score wins,
// then the higher review count; otherwise the current holder stays. The
// losing side is appended to the duplicate log.
func (d *Deduper) Add(s Scored) {
	key := s.CanonicalKey
	held, ok := d.winners[key]
	if !ok {
		d.winners[key] = s
		d.order = append(d.order, key)
		return
	}

	if beats(s, held) {
		d.winners[key] = s
		d.dupes = append(d.dupes, Duplicate{Reason: ReasonSameCanonicalKey, Key: key, Winner: s, Loser: held})
		return
	}
	d.dupes = append(d.dupes, Duplicate{Reason: ReasonSameCanonicalKey, Key: key, Winner: held, Loser: s})
}

// beats reports whether challenger displaces holder.
func beats(challenger, holder Scored) bool {
	if challenger.LegitimacyScore != holder.LegitimacyScore {
		return challenger.LegitimacyScore > holder.LegitimacyScore
	}
	return challenger.Reviews() > holder.Reviews()
}

// Winners returns one record per canonical key, ordered by when each key
// was first seen.
func (d *Deduper) Winners() []Scored {
	out := make([]Scored, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, d.winners[k])
	}
	return out
}

// Duplicates returns the collision log in the order collisions happened.
func (d *Deduper) Duplicates() []Duplicate {
	return append([]Duplicate(nil), d.dupes...)
}

// Dedupe runs every record through a fresh Deduper in slice order.
func Dedupe(records []Scored) (winners []Scored, dupes []Duplicate) {
	d := NewDeduper()
	for _, r := range records {
		d.Add(r)
	}
	return d.Winners(), d.Duplicates()
}
