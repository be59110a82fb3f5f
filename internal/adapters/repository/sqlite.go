package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/cigame/internal/domain/ledger"
	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/internal/domain/rules"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	score       TEXT,
	updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS score_cards (
	build      TEXT PRIMARY KEY,
	report     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);`

// SQLiteStore persists records in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path and creates the tables if needed.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY under concurrent saves
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, description, score FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query users: %w", ErrLoad, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.User
	for rows.Next() {
		var (
			u     model.User
			score sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Description, &score); err != nil {
			return nil, fmt.Errorf("%w: scan user: %w", ErrLoad, err)
		}
		if score.Valid {
			u.Score = &ledger.Entry{}
			if err := json.Unmarshal([]byte(score.String), u.Score); err != nil {
				return nil, fmt.Errorf("%w: decode score of %s: %w", ErrLoad, u.ID, err)
			}
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return out, nil
}

func (s *SQLiteStore) SaveUser(ctx context.Context, u model.User) error {
	var score sql.NullString
	if u.Score != nil {
		b, err := json.Marshal(u.Score)
		if err != nil {
			return fmt.Errorf("%w: encode score of %s: %w", ErrSave, u.ID, err)
		}
		score = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, description, score, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   description = excluded.description,
		   score = excluded.score,
		   updated_at = excluded.updated_at`,
		u.ID, u.Description, score, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("%w: user %s: %w", ErrSave, u.ID, err)
	}
	return nil
}

func (s *SQLiteStore) SaveScoreCard(ctx context.Context, r rules.Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: encode score card %s: %w", ErrSave, r.Build, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO score_cards (build, report, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(build) DO UPDATE SET report = excluded.report`,
		r.Build, string(b), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("%w: score card %s: %w", ErrSave, r.Build, err)
	}
	return nil
}

func (s *SQLiteStore) ScoreCard(ctx context.Context, build string) (rules.Report, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM score_cards WHERE build = ?`, build).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return rules.Report{}, ErrNotFound
	}
	if err != nil {
		return rules.Report{}, fmt.Errorf("%w: score card %s: %w", ErrLoad, build, err)
	}
	var r rules.Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return rules.Report{}, fmt.Errorf("%w: decode score card %s: %w", ErrLoad, build, err)
	}
	return r, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
