package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
-- Token rows and the reserved internal counters share one table
CREATE TABLE IF NOT EXISTS tokens (
    token TEXT PRIMARY KEY,
    count_ham INTEGER NOT NULL DEFAULT 0,
    count_spam INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteDriver keeps the token table in a single SQLite file. Transaction
// brackets map directly onto SQL transactions.
type SQLiteDriver struct {
	db *sql.DB
	tx *sql.Tx
}

// NewSQLiteDriver opens (or creates) the database file
func NewSQLiteDriver(path string) (*SQLiteDriver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	return &SQLiteDriver{db: db}, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (d *SQLiteDriver) q() querier {
	if d.tx != nil {
		return d.tx
	}
	return d.db
}

func (d *SQLiteDriver) IsInitialized() (bool, error) {
	var exists bool
	err := d.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type='table' AND name='tokens')",
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check store state: %w", err)
	}
	if !exists {
		return false, nil
	}

	err = d.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM tokens WHERE token = ?)", KeyVersion,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check store state: %w", err)
	}
	return exists, nil
}

func (d *SQLiteDriver) IsUpToDate() (bool, error) {
	var version int
	err := d.db.QueryRow(
		"SELECT count_ham FROM tokens WHERE token = ?", KeyVersion,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version == SchemaVersion, nil
}

func (d *SQLiteDriver) Initialize() error {
	if _, err := d.db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := d.db.Exec(
		"INSERT OR REPLACE INTO tokens (token, count_ham, count_spam) VALUES (?, ?, 0)",
		KeyVersion, SchemaVersion,
	); err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}
	if _, err := d.db.Exec(
		"INSERT OR IGNORE INTO tokens (token, count_ham, count_spam) VALUES (?, 0, 0)",
		KeyTexts,
	); err != nil {
		return fmt.Errorf("failed to initialize counters: %w", err)
	}
	return nil
}

func (d *SQLiteDriver) FetchTokenData(tokens []string) (map[string]TokenCounts, error) {
	if len(tokens) == 0 {
		return map[string]TokenCounts{}, nil
	}

	placeholders := strings.Repeat("?,", len(tokens))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(tokens))
	for i, token := range tokens {
		args[i] = token
	}

	rows, err := d.q().Query(
		"SELECT token, count_ham, count_spam FROM tokens WHERE token IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token data: %w", err)
	}
	defer rows.Close()

	found := make(map[string]TokenCounts)
	for rows.Next() {
		var token string
		var counts TokenCounts
		if err := rows.Scan(&token, &counts.Ham, &counts.Spam); err != nil {
			return nil, fmt.Errorf("failed to scan token row: %w", err)
		}
		found[token] = counts
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch token data: %w", err)
	}
	return found, nil
}

func (d *SQLiteDriver) AddToken(token string, counts TokenCounts) error {
	_, err := d.q().Exec(
		"INSERT INTO tokens (token, count_ham, count_spam) VALUES (?, ?, ?)",
		token, counts.Ham, counts.Spam,
	)
	if err != nil {
		return fmt.Errorf("failed to add token %q: %w", token, err)
	}
	return nil
}

func (d *SQLiteDriver) UpdateToken(token string, counts TokenCounts) error {
	_, err := d.q().Exec(
		"INSERT OR REPLACE INTO tokens (token, count_ham, count_spam) VALUES (?, ?, ?)",
		token, counts.Ham, counts.Spam,
	)
	if err != nil {
		return fmt.Errorf("failed to update token %q: %w", token, err)
	}
	return nil
}

func (d *SQLiteDriver) DeleteToken(token string) error {
	_, err := d.q().Exec("DELETE FROM tokens WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("failed to delete token %q: %w", token, err)
	}
	return nil
}

func (d *SQLiteDriver) DeletePrefix(prefix string) error {
	_, err := d.q().Exec(
		"DELETE FROM tokens WHERE token LIKE ? ESCAPE '\\'",
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func (d *SQLiteDriver) StartTransaction() error {
	// An unfinished bracket from a failed ProcessText is rolled back here,
	// never replayed.
	if d.tx != nil {
		d.tx.Rollback()
		d.tx = nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	d.tx = tx
	return nil
}

func (d *SQLiteDriver) FinishTransaction() error {
	if d.tx == nil {
		return fmt.Errorf("no transaction in progress")
	}
	tx := d.tx
	d.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

func (d *SQLiteDriver) Close() error {
	if d.tx != nil {
		d.tx.Rollback()
		d.tx = nil
	}
	return d.db.Close()
}
