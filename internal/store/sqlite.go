package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/socal-tree-directory/listing-import/internal/listing"
)

// sqliteNoConflictTarget is the prefix of SQLite's error for an ON CONFLICT
// clause with no matching unique constraint.
const sqliteNoConflictTarget = "ON CONFLICT clause does not match"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
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
	latitude         REAL,
	longitude        REAL,
	is_featured      INTEGER NOT NULL DEFAULT 0,
	is_claimed       INTEGER NOT NULL DEFAULT 0,
	rating           REAL,
	review_count     INTEGER,
	source           TEXT NOT NULL DEFAULT 'manual',
	source_id        TEXT,
	canonical_key    TEXT,
	name_norm        TEXT,
	phone_norm       TEXT,
	website_domain   TEXT,
	address_norm     TEXT,
	legitimacy_score INTEGER NOT NULL DEFAULT 0,
	raw_data         TEXT,
	last_scraped_at  DATETIME,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS businesses_slug_key ON businesses(slug);
CREATE UNIQUE INDEX IF NOT EXISTS businesses_canonical_key_key ON businesses(canonical_key);
CREATE INDEX IF NOT EXISTS idx_businesses_source ON businesses(source);
CREATE INDEX IF NOT EXISTS idx_businesses_city ON businesses(city);

CREATE TABLE IF NOT EXISTS import_runs (
	id         TEXT PRIMARY KEY,
	file       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_import_runs_status ON import_runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteUpsertSQL builds a multi-row upsert for n rows keyed on key.
func sqliteUpsertSQL(key listing.ConflictKey, n int) string {
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(businessColumns)), ", ") + ")"
	values := make([]string, n)
	for i := range values {
		values[i] = placeholders
	}

	cols := updateColumns(key)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = excluded." + c
	}

	return "INSERT INTO businesses (" + strings.Join(businessColumns, ", ") + ") VALUES " +
		strings.Join(values, ", ") +
		" ON CONFLICT(" + string(key) + ") DO UPDATE SET " + strings.Join(sets, ", ") +
		" WHERE businesses.source = excluded.source AND businesses.is_claimed = 0"
}

func (s *SQLiteStore) UpsertBusinesses(ctx context.Context, rows []listing.Business, key listing.ConflictKey) (int64, error) {
	if !validConflictKey(key) {
		return 0, eris.Errorf("sqlite: unsupported conflict key %q", key)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(rows)*len(businessColumns))
	for _, b := range rows {
		args = append(args, sqliteValues(b)...)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, sqliteUpsertSQL(key, len(rows)), args...)
	if err != nil {
		if strings.Contains(err.Error(), sqliteNoConflictTarget) {
			return 0, eris.Wrapf(listing.ErrMissingConflictTarget, "sqlite: upsert businesses on %s", key)
		}
		return 0, eris.Wrapf(err, "sqlite: upsert businesses on %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return n, nil
}

// sqliteValues adapts businessValues to SQLite storage classes.
func sqliteValues(b listing.Business) []any {
	vals := businessValues(b)
	for i, v := range vals {
		if t, ok := v.(time.Time); ok {
			vals[i] = t.UTC().Format(time.RFC3339)
		}
	}
	return vals
}

func (s *SQLiteStore) CountBusinesses(ctx context.Context, source string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM businesses WHERE source = ?`, source).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count businesses")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, runID, file string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, file, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, file, string(RunStatusRunning), now, now,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *listing.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		msg, string(RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file, status, result, error, created_at, updated_at FROM import_runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, file, status, result, error, created_at, updated_at FROM import_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var status string
	var resultJSON, errMsg sql.NullString

	err := row.Scan(&r.ID, &r.File, &status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Status = RunStatus(status)
	r.Error = errMsg.String
	if resultJSON.Valid {
		r.Result = &listing.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
