// Package store persists backlink records in SQLite through sqlx.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/lukemcguire/backlinkwatch/anchor"
	"github.com/lukemcguire/backlinkwatch/backlink"
	"github.com/lukemcguire/backlinkwatch/result"
)

// ErrNotFound is returned when no backlink has the requested id.
var ErrNotFound = backlink.ErrNotFound

const driverName = "sqlite3"

const schema = `
CREATE TABLE IF NOT EXISTS backlinks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	live_link TEXT NOT NULL,
	target_url TEXT NOT NULL,
	target_anchor TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	link_found INTEGER NOT NULL DEFAULT 0,
	link_context TEXT,
	http_status INTEGER,
	last_checked DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	anchor_match_type TEXT
);
CREATE INDEX IF NOT EXISTS idx_backlinks_status ON backlinks(status);
CREATE INDEX IF NOT EXISTS idx_backlinks_last_checked ON backlinks(last_checked);
`

const selectColumns = `id, live_link, target_url, target_anchor, status, link_found,
	link_context, http_status, last_checked, created_at, retry_count, last_error, anchor_match_type`

// Store is the backlink repository.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the SQLite database at path and applies the
// schema. The special path ":memory:" yields a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the backlinks table and its indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// row mirrors the backlinks table; nullable columns use sql.Null types.
type row struct {
	ID           int64          `db:"id"`
	LiveLink     string         `db:"live_link"`
	TargetURL    string         `db:"target_url"`
	TargetAnchor string         `db:"target_anchor"`
	Status       string         `db:"status"`
	LinkFound    int            `db:"link_found"`
	Context      sql.NullString `db:"link_context"`
	HTTPStatus   sql.NullInt64  `db:"http_status"`
	LastChecked  sql.NullTime   `db:"last_checked"`
	CreatedAt    time.Time      `db:"created_at"`
	RetryCount   int            `db:"retry_count"`
	LastError    sql.NullString `db:"last_error"`
	MatchType    sql.NullString `db:"anchor_match_type"`
}

func (r row) record() backlink.Record {
	rec := backlink.Record{
		ID:           r.ID,
		LiveLink:     r.LiveLink,
		TargetURL:    r.TargetURL,
		TargetAnchor: r.TargetAnchor,
		Status:       result.Status(r.Status),
		LinkFound:    r.LinkFound != 0,
		MatchType:    anchor.Kind(r.MatchType.String),
		Context:      r.Context.String,
		HTTPStatus:   int(r.HTTPStatus.Int64),
		LastError:    r.LastError.String,
		RetryCount:   r.RetryCount,
		CreatedAt:    r.CreatedAt,
	}
	if !rec.Status.Valid() {
		rec.Status = result.StatusPending
	}
	if r.LastChecked.Valid {
		checked := r.LastChecked.Time.UTC()
		rec.LastChecked = &checked
	}
	return rec
}

func records(rows []row) []backlink.Record {
	out := make([]backlink.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out
}

// Insert stores a new pending backlink and returns it with its id.
func (s *Store) Insert(ctx context.Context, rec backlink.Record) (backlink.Record, error) {
	rec = backlink.New(rec.LiveLink, rec.TargetURL, rec.TargetAnchor)
	if err := rec.Validate(); err != nil {
		return backlink.Record{}, err
	}

	query := `INSERT INTO backlinks (live_link, target_url, target_anchor, status) VALUES (?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, rec.LiveLink, rec.TargetURL, rec.TargetAnchor, string(rec.Status))
	if err != nil {
		return backlink.Record{}, fmt.Errorf("failed to insert backlink: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return backlink.Record{}, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return s.Get(ctx, id)
}

// InsertMany stores all records in one transaction and returns how many were
// written. Any invalid record aborts the whole batch.
func (s *Store) InsertMany(ctx context.Context, recs []backlink.Record) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO backlinks (live_link, target_url, target_anchor, status) VALUES (?, ?, ?, ?)`
	for i, r := range recs {
		rec := backlink.New(r.LiveLink, r.TargetURL, r.TargetAnchor)
		if err := rec.Validate(); err != nil {
			return 0, fmt.Errorf("record %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, query, rec.LiveLink, rec.TargetURL, rec.TargetAnchor, string(rec.Status)); err != nil {
			return 0, fmt.Errorf("failed to insert backlink %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit backlinks: %w", err)
	}
	return len(recs), nil
}

// Get returns the backlink with the given id.
func (s *Store) Get(ctx context.Context, id int64) (backlink.Record, error) {
	var r row
	query := `SELECT ` + selectColumns + ` FROM backlinks WHERE id = ?`
	if err := s.db.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return backlink.Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return backlink.Record{}, fmt.Errorf("failed to get backlink: %w", err)
	}
	return r.record(), nil
}

// Filter narrows List and Count. Zero values mean "any".
type Filter struct {
	Status    result.Status
	LinkFound *bool
	Limit     int
	Offset    int
}

func (f Filter) where() (string, []any) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.LinkFound != nil {
		clauses = append(clauses, "link_found = ?")
		args = append(args, boolInt(*f.LinkFound))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns backlinks matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]backlink.Record, error) {
	where, args := f.where()
	query := `SELECT ` + selectColumns + ` FROM backlinks` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, max(f.Offset, 0))
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list backlinks: %w", err)
	}
	return records(rows), nil
}

// Count returns the number of backlinks matching f, ignoring paging.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM backlinks`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count backlinks: %w", err)
	}
	return n, nil
}

// IDs returns the ids of backlinks matching f, newest first, ignoring paging.
func (s *Store) IDs(ctx context.Context, f Filter) ([]int64, error) {
	where, args := f.where()
	ids := []int64{}
	query := `SELECT id FROM backlinks` + where + ` ORDER BY created_at DESC, id DESC`
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list backlink ids: %w", err)
	}
	return ids, nil
}

// All returns every backlink in id order.
func (s *Store) All(ctx context.Context) ([]backlink.Record, error) {
	var rows []row
	query := `SELECT ` + selectColumns + ` FROM backlinks ORDER BY id`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load backlinks: %w", err)
	}
	return records(rows), nil
}

// ByIDs returns the backlinks with the given ids in id order. Unknown ids are
// skipped.
func (s *Store) ByIDs(ctx context.Context, ids []int64) ([]backlink.Record, error) {
	if len(ids) == 0 {
		return []backlink.Record{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+selectColumns+` FROM backlinks WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build id query: %w", err)
	}
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load backlinks by id: %w", err)
	}
	return records(rows), nil
}

// SaveCheck writes the outcome of a check onto an existing backlink.
func (s *Store) SaveCheck(ctx context.Context, rec backlink.Record) error {
	query := `
		UPDATE backlinks
		SET status = ?, link_found = ?, link_context = ?, http_status = ?,
			last_checked = ?, retry_count = ?, last_error = ?, anchor_match_type = ?
		WHERE id = ?`

	var checked sql.NullTime
	if rec.LastChecked != nil {
		checked = sql.NullTime{Time: rec.LastChecked.UTC(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, query,
		string(rec.Status),
		boolInt(rec.LinkFound),
		nullString(rec.Context),
		nullInt(rec.HTTPStatus),
		checked,
		rec.RetryCount,
		nullString(rec.LastError),
		nullString(string(rec.MatchType)),
		rec.ID,
	)
	return execRequireRows(res, err, fmt.Errorf("%w: %d", ErrNotFound, rec.ID))
}

// Delete removes one backlink.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM backlinks WHERE id = ?`, id)
	return execRequireRows(res, err, fmt.Errorf("%w: %d", ErrNotFound, id))
}

// DeleteMany removes the given backlinks and returns how many existed.
func (s *Store) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM backlinks WHERE id IN (?)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete backlinks: %w", err)
	}
	return res.RowsAffected()
}

// DeleteAll removes every backlink and returns how many were removed.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM backlinks`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete backlinks: %w", err)
	}
	return res.RowsAffected()
}

// Stats aggregates the whole table.
func (s *Store) Stats(ctx context.Context) (backlink.Stats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'live' THEN 1 ELSE 0 END), 0) AS live_count,
			COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0) AS error_count,
			COALESCE(SUM(CASE WHEN status = 'unreachable' THEN 1 ELSE 0 END), 0) AS unreachable_count,
			COALESCE(SUM(CASE WHEN link_found = 1 THEN 1 ELSE 0 END), 0) AS links_found,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending_count,
			COALESCE(SUM(CASE WHEN http_status = 404 THEN 1 ELSE 0 END), 0) AS not_found_404,
			COALESCE(SUM(CASE WHEN http_status BETWEEN 300 AND 399 THEN 1 ELSE 0 END), 0) AS redirects,
			COALESCE(SUM(CASE WHEN anchor_match_type = 'exact' THEN 1 ELSE 0 END), 0) AS exact_matches,
			COALESCE(SUM(CASE WHEN anchor_match_type = 'partial' THEN 1 ELSE 0 END), 0) AS partial_matches
		FROM backlinks`

	var st backlink.Stats
	if err := s.db.GetContext(ctx, &st, query); err != nil {
		return backlink.Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	return st, nil
}

func execRequireRows(res sql.Result, err, notFound error) error {
	if err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
