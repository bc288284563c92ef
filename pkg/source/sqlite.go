package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"

	_ "modernc.org/sqlite" // register the "sqlite" driver

	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
)

const sqliteScheme = "sqlite://"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS photos (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL UNIQUE,
	width        REAL NOT NULL,
	height       REAL NOT NULL,
	alt          TEXT NOT NULL DEFAULT '',
	photographer TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	avg_color    TEXT NOT NULL DEFAULT '',
	src          TEXT NOT NULL DEFAULT '{}'
)`

const sqliteUpsert = `
INSERT INTO photos (id, width, height, alt, photographer, url, avg_color, src)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	width = excluded.width,
	height = excluded.height,
	alt = excluded.alt,
	photographer = excluded.photographer,
	url = excluded.url,
	avg_color = excluded.avg_color,
	src = excluded.src`

const sqliteSelect = `
SELECT id, width, height, alt, photographer, url, avg_color, src
FROM photos ORDER BY seq LIMIT ? OFFSET ?`

// SQLiteStore is a photo Store backed by a SQLite database file.
// Collection order is insertion order; updates keep a photo's position.
type SQLiteStore struct {
	db   *sql.DB
	name string
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeInvalidSource, "sqlite path cannot be empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "open %s", path)
	}
	// A single connection serializes writers and keeps :memory: databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "init schema %s", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &SQLiteStore{db: db, name: sqliteScheme + abs}, nil
}

// Name returns the sqlite URI of the database.
//
// Store contents change under the same name, so pages cached by name may be
// stale until the collection TTL expires.
func (s *SQLiteStore) Name() string { return s.name }

// Fetch returns one page of photos in insertion order.
func (s *SQLiteStore) Fetch(ctx context.Context, offset, limit int) ([]masonry.Photo, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, sqliteSelect, limit, offset)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "query photos")
	}
	defer rows.Close()

	photos := []masonry.Photo{}
	for rows.Next() {
		var (
			p   masonry.Photo
			src string
		)
		if err := rows.Scan(&p.ID, &p.Width, &p.Height, &p.Alt, &p.Photographer, &p.URL, &p.AvgColor, &src); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "scan photo")
		}
		if err := json.Unmarshal([]byte(src), &p.Src); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode src of %q", p.ID)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "iterate photos")
	}
	return photos, nil
}

// Put upserts photos in a single transaction.
func (s *SQLiteStore) Put(ctx context.Context, photos []masonry.Photo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "prepare upsert")
	}
	defer stmt.Close()

	for _, p := range photos {
		src, err := json.Marshal(p.Src)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode src of %q", p.ID)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Width, p.Height, p.Alt, p.Photographer, p.URL, p.AvgColor, string(src)); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "upsert %q", p.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "commit")
	}
	return nil
}

// Count returns the number of stored photos.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos`).Scan(&n); err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "count photos")
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
