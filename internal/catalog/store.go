package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/p-arndt/labkasten/internal/config"
)

// isBusyLock reports whether err indicates SQLite database lock (SQLITE_BUSY).
func isBusyLock(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "database is locked") || strings.Contains(s, "SQLITE_BUSY")
}

// retryOnBusy runs fn and retries on SQLITE_BUSY with exponential backoff.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 4
	backoff := 25 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isBusyLock(lastErr) {
			return lastErr
		}
		if attempt < maxAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

// Store is a SQLite-backed catalog.
type Store struct {
	db *sql.DB
}

var _ Lookup = (*Store)(nil)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS labs (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	difficulty    TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	image         TEXT NOT NULL DEFAULT '',
	internal_port INTEGER NOT NULL DEFAULT 0,
	updated_at    DATETIME NOT NULL
);
`

// dsnWithPragmas applies WAL and busy_timeout to every pooled connection.
func dsnWithPragmas(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsnWithPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	db.SetMaxOpenConns(4)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces an entry by id.
func (s *Store) Upsert(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		return fmt.Errorf("lab id is required")
	}
	err := retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO labs (id, name, description, difficulty, category, image, internal_port, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name, description = excluded.description,
			   difficulty = excluded.difficulty, category = excluded.category,
			   image = excluded.image, internal_port = excluded.internal_port,
			   updated_at = excluded.updated_at`,
			e.ID, e.Name, e.Description, e.Difficulty, e.Category, e.Image, e.InternalPort, time.Now().UTC(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upserting lab %s: %w", e.ID, err)
	}
	return nil
}

// Seed upserts every configured lab. Existing labs not in seeds are kept.
func (s *Store) Seed(ctx context.Context, seeds []config.LabSeed) (int, error) {
	for i, seed := range seeds {
		e := &Entry{
			ID:           seed.ID,
			Name:         seed.Name,
			Description:  seed.Description,
			Difficulty:   seed.Difficulty,
			Category:     seed.Category,
			Image:        seed.Image,
			InternalPort: seed.InternalPort,
		}
		if e.Name == "" {
			e.Name = e.ID
		}
		if err := s.Upsert(ctx, e); err != nil {
			return i, err
		}
	}
	return len(seeds), nil
}

func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, difficulty, category, image, internal_port FROM labs WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, difficulty, category, image, internal_port FROM labs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing labs: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating labs: %w", err)
	}
	return entries, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	var result sql.Result
	err := retryOnBusy(func() error {
		var e error
		result, e = s.db.ExecContext(ctx, `DELETE FROM labs WHERE id = ?`, id)
		return e
	})
	if err != nil {
		return fmt.Errorf("deleting lab: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Difficulty, &e.Category, &e.Image, &e.InternalPort)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning lab: %w", err)
	}
	return &e, nil
}
