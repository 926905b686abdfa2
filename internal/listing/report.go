package listing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// Report file names written to the report directory.
const (
	UniqueReport      = "import_unique.json"
	PublishableReport = "import_publishable.json"
	DupesReport       = "import_dupes.json"
)

// DuplicateEntry is one line of the duplicates report.
type DuplicateEntry struct {
	Reason       string   `json:"reason"`
	CanonicalKey string   `json:"canonical_key"`
	Winner       Business `json:"winner"`
	Loser        Business `json:"loser"`
}

// Reports is the audit output of one run.
type Reports struct {
	Unique      []Scored
	Publishable []Scored
	Duplicates  []Duplicate
	ScrapedAt   time.Time
}

// WriteReports writes the unique, publishable and duplicate reports into
// dir as indented JSON. Each file is replaced atomically.
func WriteReports(dir string, r Reports) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "listing: create report dir %s", dir)
	}

	dupes := make([]DuplicateEntry, len(r.Duplicates))
	for i, d := range r.Duplicates {
		dupes[i] = DuplicateEntry{
			Reason:       d.Reason,
			CanonicalKey: d.Key,
			Winner:       ToBusiness(d.Winner, r.ScrapedAt),
			Loser:        ToBusiness(d.Loser, r.ScrapedAt),
		}
	}

	files := []struct {
		name string
		v    any
	}{
		{UniqueReport, ToBusinesses(r.Unique, r.ScrapedAt)},
		{PublishableReport, ToBusinesses(r.Publishable, r.ScrapedAt)},
		{DupesReport, dupes},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeJSON(path, f.v); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// writeJSON writes v to a temp file next to path, then renames it over path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "listing: marshal %s", filepath.Base(path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "listing: create temp for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "listing: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "listing: close %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "listing: replace %s", path)
	}
	return nil
}
