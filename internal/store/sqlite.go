package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/whodle/whodle/internal/errors"
	"github.com/whodle/whodle/internal/guess"
	"github.com/whodle/whodle/internal/session"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest sqlite schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// SQLiteStore is a Store backed by a local SQLite database. The composite
// (partition, sort) key maps onto the table's compound primary key, and Put
// is an INSERT OR REPLACE, so overwrites are idempotent at the key.
type SQLiteStore struct {
	db *sql.DB
}

// SQLiteOptions tunes the connection pool. Zero values keep sql.DB defaults.
type SQLiteOptions struct {
	// MaxOpenConns limits open connections. 1 serializes all access, which
	// avoids "database is locked" errors under write contention.
	MaxOpenConns int

	// MaxIdleConns limits idle connections. Typically set equal to
	// MaxOpenConns when both are configured.
	MaxIdleConns int
}

// OpenSQLite initializes the SQLite database at dataDir/whodle.db and runs
// migrations. dataDir is created if missing; tests pass t.TempDir().
func OpenSQLite(dataDir string, opts SQLiteOptions) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	_ = os.Chmod(dataDir, 0700)

	dbPath := filepath.Join(dataDir, "whodle.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	return &SQLiteStore{db: db}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, hash session.HashedSessionID, date guess.Date) (*guess.DailyGuesses, error) {
	query := `
		SELECT guesses_json FROM daily_guesses
		WHERE session_hash = ? AND sort_key = ?
	`

	var guessesJSON string
	err := s.db.QueryRowContext(ctx, query, hash.Hex(), SortKey(date)).Scan(&guessesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreUnavailable(err)
	}

	names, err := decodeGuesses(guessesJSON)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return &guess.DailyGuesses{
		SessionHash: hash,
		Date:        date,
		Guesses:     names,
	}, nil
}

// QueryAll implements Store.
func (s *SQLiteStore) QueryAll(ctx context.Context, hash session.HashedSessionID) ([]guess.DailyGuesses, error) {
	query := `
		SELECT sort_key, guesses_json FROM daily_guesses
		WHERE session_hash = ? AND sort_key LIKE ? || '%'
	`

	rows, err := s.db.QueryContext(ctx, query, hash.Hex(), SortKeyPrefix)
	if err != nil {
		return nil, errors.NewStoreUnavailable(err)
	}
	defer rows.Close()

	var out []guess.DailyGuesses
	for rows.Next() {
		var sortKey, guessesJSON string
		if err := rows.Scan(&sortKey, &guessesJSON); err != nil {
			return nil, errors.NewStoreUnavailable(err)
		}

		date, err := ParseSortKey(sortKey)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		names, err := decodeGuesses(guessesJSON)
		if err != nil {
			return nil, errors.NewInternal(err)
		}

		out = append(out, guess.DailyGuesses{
			SessionHash: hash,
			Date:        date,
			Guesses:     names,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreUnavailable(err)
	}
	return out, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, d guess.DailyGuesses) error {
	data, err := json.Marshal(d.Names())
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT OR REPLACE INTO daily_guesses (session_hash, sort_key, guesses_json)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, d.SessionHash.Hex(), SortKey(d.Date), string(data)); err != nil {
		return errors.NewStoreUnavailable(err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeGuesses(guessesJSON string) ([]guess.PersonaName, error) {
	var names []guess.PersonaName
	if err := json.Unmarshal([]byte(guessesJSON), &names); err != nil {
		return nil, fmt.Errorf("corrupt guesses_json: %w", err)
	}
	return names, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: initial schema
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS daily_guesses (
		  session_hash TEXT NOT NULL,
		  sort_key     TEXT NOT NULL,
		  guesses_json TEXT NOT NULL,
		  PRIMARY KEY (session_hash, sort_key)
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

func getUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
