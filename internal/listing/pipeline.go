package listing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/socal-tree-directory/listing-import/internal/fetcher"
)

// Options tune one pipeline run.
type Options struct {
	MinScore         int
	BatchSize        int
	Workers          int
	ReportDir        string
	DryRun           bool
	BatchesPerSecond float64
}

// RunLog records the lifecycle of an import run. The ledger is auxiliary:
// its failures are logged and never fail the import.
type RunLog interface {
	CreateRun(ctx context.Context, runID, file string) error
	CompleteRun(ctx context.Context, runID string, result *RunResult) error
	FailRun(ctx context.Context, runID string, runErr error) error
}

// RunResult holds the counts of a completed run. Every count reflects a
// fully completed stage.
type RunResult struct {
	RunID       string      `json:"run_id"`
	File        string      `json:"file"`
	Parsed      int         `json:"parsed"`
	Malformed   int         `json:"malformed"`
	Skipped     int         `json:"skipped"`
	Unique      int         `json:"unique"`
	Publishable int         `json:"publishable"`
	Duplicates  int         `json:"duplicates"`
	Batches     int         `json:"batches"`
	Upserted    int64       `json:"upserted"`
	Mode        ConflictKey `json:"mode,omitempty"`
	DryRun      bool        `json:"dry_run"`
	ReportFiles []string    `json:"report_files"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
}

// Pipeline wires the import stages together.
type Pipeline struct {
	Normalizer *Normalizer
	Scorer     *Scorer
	Writer     Writer
	Runs       RunLog
	Options    Options
	Now        func() time.Time
}

// New returns a Pipeline with default normalizer and scorer.
func New(w Writer, opts Options) *Pipeline {
	return &Pipeline{
		Normalizer: NewNormalizer(nil, SourceGoogleMaps),
		Scorer:     NewScorer(),
		Writer:     w,
		Options:    opts,
	}
}

// Run imports the export at path: load, normalize and score, dedupe, gate,
// write reports, then upsert. Any stage error aborts the run.
func (p *Pipeline) Run(ctx context.Context, path string) (*RunResult, error) {
	res := &RunResult{
		RunID:     uuid.New().String(),
		File:      path,
		DryRun:    p.Options.DryRun,
		StartedAt: p.now(),
	}
	log := zap.L().With(zap.String("run_id", res.RunID), zap.String("file", path))

	ledger := p.Runs
	if p.Options.DryRun {
		ledger = nil
	}
	if ledger != nil {
		if err := ledger.CreateRun(ctx, res.RunID, path); err != nil {
			log.Warn("listing: run ledger unavailable", zap.Error(err))
			ledger = nil
		}
	}

	err := p.run(ctx, log, path, res)
	res.FinishedAt = p.now()

	if ledger != nil {
		var lerr error
		if err != nil {
			lerr = ledger.FailRun(ctx, res.RunID, err)
		} else {
			lerr = ledger.CompleteRun(ctx, res.RunID, res)
		}
		if lerr != nil {
			log.Warn("listing: record run outcome", zap.Error(lerr))
		}
	}
	if err != nil {
		return res, err
	}

	log.Info("listing: import complete",
		zap.Int("parsed", res.Parsed),
		zap.Int("unique", res.Unique),
		zap.Int("publishable", res.Publishable),
		zap.Int("duplicates", res.Duplicates),
		zap.Int64("upserted", res.Upserted),
		zap.Bool("dry_run", res.DryRun),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, path string, res *RunResult) error {
	table, err := fetcher.ReadRecords(ctx, path)
	if err != nil {
		return eris.Wrap(err, "listing: load")
	}
	res.Parsed = len(table.Rows)
	res.Malformed = table.Malformed
	log.Info("listing: parsed export",
		zap.Int("rows", res.Parsed),
		zap.Int("malformed", res.Malformed),
		zap.Strings("headers", headPreview(table.Header)),
		zap.Int("header_count", len(table.Header)),
	)

	raws := make([]RawRecord, len(table.Rows))
	for i, row := range table.Rows {
		raws[i] = RawRecord(row)
	}

	scored, skipped, err := p.Prepare(ctx, raws)
	if err != nil {
		return err
	}
	res.Skipped = skipped
	log.Info("listing: scored records", zap.Int("scored", len(scored)), zap.Int("skipped", skipped))

	unique, dupes := Dedupe(scored)
	publishable := Gate(unique, p.Options.MinScore)
	res.Unique = len(unique)
	res.Duplicates = len(dupes)
	res.Publishable = len(publishable)
	log.Info("listing: deduplicated",
		zap.Int("unique", res.Unique),
		zap.Int("publishable", res.Publishable),
		zap.Int("min_score", p.Options.MinScore),
		zap.Int("duplicates", res.Duplicates),
	)

	res.ReportFiles, err = WriteReports(p.Options.ReportDir, Reports{
		Unique:      unique,
		Publishable: publishable,
		Duplicates:  dupes,
		ScrapedAt:   res.StartedAt,
	})
	if err != nil {
		return err
	}
	log.Info("listing: wrote reports", zap.Strings("files", res.ReportFiles))

	if p.Options.DryRun {
		log.Info("listing: dry run, skipping upsert")
		return nil
	}
	if p.Writer == nil {
		return eris.New("listing: no writer configured")
	}

	up := NewUpserter(p.Writer, p.Options.BatchSize, p.Options.BatchesPerSecond)
	up.Now = func() time.Time { return res.StartedAt }
	ur, err := up.Run(ctx, publishable)
	if ur != nil {
		res.Batches = ur.Batches
		res.Upserted = ur.Upserted
		res.Mode = ur.Mode
	}
	return err
}

// Prepare normalizes, keys and scores raws across Options.Workers
// goroutines. Output order follows input order regardless of worker count.
// Rows without a usable name are dropped and counted as skipped.
func (p *Pipeline) Prepare(ctx context.Context, raws []RawRecord) ([]Scored, int, error) {
	type slot struct {
		scored Scored
		ok     bool
	}
	slots := make([]slot, len(raws))

	workers := max(p.Options.Workers, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, raw := range raws {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, ok := p.Normalizer.Normalize(raw)
			if !ok {
				return nil
			}
			slots[i] = slot{scored: p.ScoreRecord(rec), ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, eris.Wrap(err, "listing: prepare records")
	}

	out := make([]Scored, 0, len(raws))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.scored)
		}
	}
	return out, len(raws) - len(out), nil
}

// ScoreRecord derives the canonical key, legitimacy score and slug of rec.
func (p *Pipeline) ScoreRecord(rec Record) Scored {
	key := CanonicalKey(rec)
	return Scored{
		Record:          rec,
		CanonicalKey:    key,
		LegitimacyScore: p.Scorer.Score(SignalsOf(rec)),
		Slug:            Slug(rec.Name, deref(rec.City), key),
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// headPreview caps a header list for logging.
func headPreview(h []string) []string {
	const maxHeaders = 30
	if len(h) > maxHeaders {
		return h[:maxHeaders]
	}
	return h
}
