package listing

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Writer persists business rows, resolving conflicts on the given key.
// It returns ErrMissingConflictTarget when the table has no unique
// constraint on that key.
type Writer interface {
	UpsertBusinesses(ctx context.Context, rows []Business, key ConflictKey) (int64, error)
}

// UpsertResult summarizes a completed upsert stage.
type UpsertResult struct {
	Mode     ConflictKey `json:"mode"`
	Batches  int         `json:"batches"`
	Upserted int64       `json:"upserted"`
}

// Upserter writes publishable records in fixed-size batches.
type Upserter struct {
	Store     Writer
	BatchSize int
	// Limiter paces batches when set; nil means unlimited.
	Limiter *rate.Limiter
	// Now stamps last_scraped_at; defaults to time.Now.
	Now func() time.Time
}

// NewUpserter returns an Upserter. batchesPerSecond <= 0 disables pacing.
func NewUpserter(w Writer, batchSize int, batchesPerSecond float64) *Upserter {
	u := &Upserter{Store: w, BatchSize: batchSize}
	if batchesPerSecond > 0 {
		u.Limiter = rate.NewLimiter(rate.Limit(batchesPerSecond), 1)
	}
	return u
}

// Probe writes first keyed on canonical_key to learn whether the table
// supports it. A missing constraint selects slug mode; any other error is
// fatal.
func (u *Upserter) Probe(ctx context.Context, first Scored) (ConflictKey, error) {
	rows := []Business{ToBusiness(first, u.now())}
	_, err := u.Store.UpsertBusinesses(ctx, rows, ConflictCanonicalKey)
	switch {
	case err == nil:
		return ConflictCanonicalKey, nil
	case errors.Is(err, ErrMissingConflictTarget):
		zap.L().Warn("listing: canonical_key constraint missing, upserting on slug")
		return ConflictSlug, nil
	default:
		return "", eris.Wrap(err, "listing: probe upsert")
	}
}

// Run probes the conflict mode once, then upserts records sequentially in
// batches of BatchSize using that mode. The first failing batch stops the
// run; batches already written stay committed.
func (u *Upserter) Run(ctx context.Context, records []Scored) (*UpsertResult, error) {
	res := &UpsertResult{}
	if len(records) == 0 {
		return res, nil
	}

	size := u.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	mode, err := u.Probe(ctx, records[0])
	if err != nil {
		return nil, err
	}
	res.Mode = mode

	scrapedAt := u.now()
	total := (len(records) + size - 1) / size
	for i := 0; i < len(records); i += size {
		batch := res.Batches + 1

		if u.Limiter != nil {
			if err := u.Limiter.Wait(ctx); err != nil {
				return res, eris.Wrapf(err, "listing: wait for batch %d", batch)
			}
		}

		end := min(i+size, len(records))
		n, err := u.Store.UpsertBusinesses(ctx, ToBusinesses(records[i:end], scrapedAt), mode)
		if err != nil {
			return res, eris.Wrapf(err, "listing: upsert batch %d/%d", batch, total)
		}

		res.Batches = batch
		res.Upserted += n
		zap.L().Info("listing: batch upserted",
			zap.Int("batch", batch),
			zap.Int("of", total),
			zap.Int("rows", end-i),
			zap.Int64("affected", n),
			zap.String("mode", string(mode)),
		)
	}
	return res, nil
}

func (u *Upserter) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}
