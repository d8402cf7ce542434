// ABOUTME: SQLite implementation of the HistoryStore interface using modernc.org/sqlite
// ABOUTME: Provides per-user exchange persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the HistoryStore interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection keeps the per-connection pragmas below in effect and
	// serializes writers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS exchanges (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			username   TEXT NOT NULL,
			query      TEXT NOT NULL,
			response   TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_exchanges_username_seq
			ON exchanges(username, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// AppendExchange inserts an exchange at the end of the user's history.
func (s *SQLiteStore) AppendExchange(ctx context.Context, e *Exchange) error {
	if e.Username == "" {
		return ErrInvalidExchange
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (id, username, query, response, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.Username, e.Query, e.Response, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting exchange: %w", err)
	}
	return nil
}

// ListExchanges retrieves a user's exchanges in insertion order.
// If limit is positive, only the most recent limit exchanges are returned.
func (s *SQLiteStore) ListExchanges(ctx context.Context, username string, limit int) ([]*Exchange, error) {
	var query string
	var args []any

	if limit > 0 {
		// Take the newest N, then return them oldest first
		query = `
			SELECT id, username, query, response, created_at
			FROM (
				SELECT seq, id, username, query, response, created_at
				FROM exchanges
				WHERE username = ?
				ORDER BY seq DESC
				LIMIT ?
			)
			ORDER BY seq ASC
		`
		args = []any{username, limit}
	} else {
		query = `
			SELECT id, username, query, response, created_at
			FROM exchanges
			WHERE username = ?
			ORDER BY seq ASC
		`
		args = []any{username}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []*Exchange
	for rows.Next() {
		var e Exchange
		var createdAtStr string

		if err := rows.Scan(&e.ID, &e.Username, &e.Query, &e.Response, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning exchange row: %w", err)
		}

		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing exchange created_at: %w", err)
		}

		exchanges = append(exchanges, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating exchange rows: %w", err)
	}

	return exchanges, nil
}

// ClearExchanges deletes all of a user's exchanges.
func (s *SQLiteStore) ClearExchanges(ctx context.Context, username string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE username = ?`, username)
	if err != nil {
		return 0, fmt.Errorf("deleting exchanges: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	s.logger.Debug("cleared history", "username", username, "removed", n)
	return n, nil
}
