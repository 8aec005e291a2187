package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"
)

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

const createProfiles = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	score      INTEGER NOT NULL DEFAULT 0,
	is_blocked INTEGER NOT NULL DEFAULT 0,
	is_admin   INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// OpenSQLite opens (and creates if missing) the database at path, with WAL journaling and
// a busy timeout, and makes sure the profiles table exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(createProfiles); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create profiles table: %w", err)
	}
	klog.V(1).Infof("OpenSQLite: profiles stored in %s", path)
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, score, is_blocked, is_admin FROM profiles WHERE id=?`, id,
	).Scan(&p.ID, &p.Username, &p.Score, &p.IsBlocked, &p.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", id, err)
	}
	return &p, nil
}

func (s *SQLiteStore) Save(ctx context.Context, p *Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, score, is_blocked, is_admin)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username=excluded.username,
			score=excluded.score,
			is_blocked=excluded.is_blocked,
			is_admin=excluded.is_admin,
			updated_at=CURRENT_TIMESTAMP`,
		p.ID, p.Username, p.Score, p.IsBlocked, p.IsAdmin,
	)
	if err != nil {
		return fmt.Errorf("save profile %q: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateScore(ctx context.Context, id string, score int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET score=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, score, id)
	if err != nil {
		return fmt.Errorf("update score of %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) SetBlocked(ctx context.Context, id string, blocked bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET is_blocked=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, blocked, id)
	if err != nil {
		return fmt.Errorf("set blocked of %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}
