package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/socal-tree-directory/listing-import/internal/db"
	"github.com/socal-tree-directory/listing-import/internal/listing"
)

// pgInvalidColumnReference is raised when ON CONFLICT names columns with
// no matching unique constraint.
const pgInvalidColumnReference = "42P10"

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := poolConfig(connString, poolCfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// poolConfig parses connString and applies pool sizing. The import is a
// single sequential writer, so the pool stays small.
func poolConfig(connString string, poolCfg *PoolConfig) (*pgxpool.Config, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = min(minConns, maxConns)
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	return pgxCfg, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id               BIGSERIAL PRIMARY KEY,
	slug             TEXT NOT NULL,
	name             TEXT NOT NULL,
	description      TEXT,
	phone            TEXT,
	email            TEXT,
	website          TEXT,
	address          TEXT,
	city             TEXT,
	county           TEXT,
	zip_code         TEXT,
	latitude         DOUBLE PRECISION,
	longitude        DOUBLE PRECISION,
	is_featured      BOOLEAN NOT NULL DEFAULT false,
	is_claimed       BOOLEAN NOT NULL DEFAULT false,
	rating           DOUBLE PRECISION,
	review_count     INTEGER,
	source           TEXT NOT NULL DEFAULT 'manual',
	source_id        TEXT,
	canonical_key    TEXT,
	name_norm        TEXT,
	phone_norm       TEXT,
	website_domain   TEXT,
	address_norm     TEXT,
	legitimacy_score INTEGER NOT NULL DEFAULT 0,
	raw_data         JSONB,
	last_scraped_at  TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS businesses_slug_key ON businesses(slug);
CREATE UNIQUE INDEX IF NOT EXISTS businesses_canonical_key_key ON businesses(canonical_key);
CREATE INDEX IF NOT EXISTS idx_businesses_source ON businesses(source);
CREATE INDEX IF NOT EXISTS idx_businesses_city ON businesses(city);

CREATE TABLE IF NOT EXISTS import_runs (
	id         TEXT PRIMARY KEY,
	file       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_import_runs_status ON import_runs(status);
`

// businessUpsert returns the BulkUpsert config for conflict key. Rows owned
// by another source or claimed by their owner are never overwritten.
func businessUpsert(key listing.ConflictKey) db.UpsertConfig {
	return db.UpsertConfig{
		Table:        businessesTable,
		Columns:      businessColumns,
		ConflictKeys: []string{string(key)},
		UpdateCols:   updateColumns(key),
		UpdateWhere:  `"businesses"."source" = EXCLUDED."source" AND NOT "businesses"."is_claimed"`,
	}
}

func (s *PostgresStore) UpsertBusinesses(ctx context.Context, rows []listing.Business, key listing.ConflictKey) (int64, error) {
	if !validConflictKey(key) {
		return 0, eris.Errorf("postgres: unsupported conflict key %q", key)
	}

	values := make([][]any, len(rows))
	for i, b := range rows {
		values[i] = businessValues(b)
	}

	n, err := db.BulkUpsert(ctx, s.pool, businessUpsert(key), values)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgInvalidColumnReference {
			return 0, eris.Wrapf(listing.ErrMissingConflictTarget, "postgres: upsert businesses on %s", key)
		}
		return 0, eris.Wrapf(err, "postgres: upsert businesses on %s", key)
	}
	return n, nil
}

func (s *PostgresStore) CountBusinesses(ctx context.Context, source string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM businesses WHERE source = $1`, source).Scan(&n)
	return n, eris.Wrap(err, "postgres: count businesses")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, runID, file string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, file, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		runID, file, string(RunStatusRunning), now, now,
	)
	return eris.Wrapf(err, "postgres: insert run %s", runID)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *listing.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		msg, string(RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, file, status, result, error, created_at, updated_at FROM import_runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, file, status, result, error, created_at, updated_at FROM import_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgRun(row pgx.Row) (*Run, error) {
	var r Run
	var status string
	var resultJSON []byte
	var errMsg *string

	if err := row.Scan(&r.ID, &r.File, &status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = RunStatus(status)
	if errMsg != nil {
		r.Error = *errMsg
	}
	if resultJSON != nil {
		r.Result = &listing.RunResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "unmarshal result")
		}
	}
	return &r, nil
}
