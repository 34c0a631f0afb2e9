package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLStorage is a SQL-backed Storage implementation. It works with any
// database/sql compatible driver (PostgreSQL, MySQL, SQLite). Requires a
// table with schema:
//
//	CREATE TABLE gantry_storage (
//	    key VARCHAR(255) PRIMARY KEY,
//	    data BYTEA NOT NULL,
//	    expires_at TIMESTAMP WITH TIME ZONE NULL
//	);
//	CREATE INDEX idx_gantry_storage_expires ON gantry_storage(expires_at);
//
// Expiry timestamps are compared in Go against the database values, so the
// application clock is authoritative; expired rows are deleted lazily on
// read and optionally swept by a background loop.
type SQLStorage struct {
	db              *sql.DB
	tableName       string
	dialect         SQLDialect
	cleanupInterval time.Duration
	closed          bool
	done            chan struct{}
}

// SQLDialect represents the SQL dialect for query generation.
type SQLDialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL SQLDialect = iota
	// DialectMySQL uses MySQL syntax (? placeholders).
	DialectMySQL
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// SQLOption configures SQLStorage behavior.
type SQLOption func(*sqlConfig)

type sqlConfig struct {
	tableName       string
	dialect         SQLDialect
	cleanupInterval time.Duration
}

// WithSQLTableName sets the table name. Default: "gantry_storage".
func WithSQLTableName(name string) SQLOption {
	return func(c *sqlConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLOption {
	return func(c *sqlConfig) {
		c.dialect = dialect
	}
}

// WithSQLCleanupInterval sets how often expired rows are swept.
// Default: 5 minutes. A non-positive interval disables the sweep.
func WithSQLCleanupInterval(d time.Duration) SQLOption {
	return func(c *sqlConfig) {
		c.cleanupInterval = d
	}
}

// NewSQLStorage creates a SQL-backed storage backend.
func NewSQLStorage(db *sql.DB, opts ...SQLOption) *SQLStorage {
	cfg := &sqlConfig{
		tableName:       "gantry_storage",
		dialect:         DialectPostgreSQL,
		cleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &SQLStorage{
		db:              db,
		tableName:       cfg.tableName,
		dialect:         cfg.dialect,
		cleanupInterval: cfg.cleanupInterval,
		done:            make(chan struct{}),
	}

	if cfg.cleanupInterval > 0 {
		go s.cleanupLoop()
	}
	return s
}

// placeholder returns the placeholder syntax for the dialect.
func (s *SQLStorage) placeholder(n int) string {
	if s.dialect == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Set upserts value under key.
func (s *SQLStorage) Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error {
	if s.closed {
		return ErrClosed
	}

	var expiresAt *time.Time
	if expiresIn > 0 {
		at := time.Now().UTC().Add(expiresIn)
		expiresAt = &at
	}

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (key, data, expires_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET
				data = EXCLUDED.data,
				expires_at = EXCLUDED.expires_at
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (key, data, expires_at)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE
				data = VALUES(data),
				expires_at = VALUES(expires_at)
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (key, data, expires_at)
			VALUES (?, ?, ?)
		`, s.tableName)
	}

	_, err := s.db.ExecContext(ctx, query, key, value, expiresAt)
	return err
}

// Get returns the value for key, deleting the row when it is found expired
// and sliding the expiry forward when renewal is requested.
func (s *SQLStorage) Get(ctx context.Context, key string, renewFor time.Duration) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	query := fmt.Sprintf(
		`SELECT data, expires_at FROM %s WHERE key = %s`,
		s.tableName, s.placeholder(1),
	)

	var data []byte
	var expiresAt *time.Time
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	now := time.Now().UTC()
	if expiresAt != nil && !now.Before(*expiresAt) {
		// Lazy eviction: an expired row reads as a miss.
		if err := s.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if renewFor > 0 && expiresAt != nil {
		renewed := now.Add(renewFor)
		query := fmt.Sprintf(
			`UPDATE %s SET expires_at = %s WHERE key = %s AND expires_at IS NOT NULL`,
			s.tableName, s.placeholder(1), s.placeholder(2),
		)
		if _, err := s.db.ExecContext(ctx, query, renewed, key); err != nil {
			return nil, err
		}
	}

	return data, nil
}

// Delete removes key.
func (s *SQLStorage) Delete(ctx context.Context, key string) error {
	if s.closed {
		return ErrClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE key = %s`, s.tableName, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, query, key)
	return err
}

// DeleteAll removes every row from the table.
func (s *SQLStorage) DeleteAll(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s`, s.tableName)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Exists reports whether key exists and has not expired.
func (s *SQLStorage) Exists(ctx context.Context, key string) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}

	query := fmt.Sprintf(
		`SELECT expires_at FROM %s WHERE key = %s`,
		s.tableName, s.placeholder(1),
	)

	var expiresAt *time.Time
	err := s.db.QueryRowContext(ctx, query, key).Scan(&expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	if expiresAt != nil && !time.Now().UTC().Before(*expiresAt) {
		return false, nil
	}
	return true, nil
}

// ExpiresIn returns the remaining lifetime of key.
func (s *SQLStorage) ExpiresIn(ctx context.Context, key string) (time.Duration, bool, error) {
	if s.closed {
		return 0, false, ErrClosed
	}

	query := fmt.Sprintf(
		`SELECT expires_at FROM %s WHERE key = %s`,
		s.tableName, s.placeholder(1),
	)

	var expiresAt *time.Time
	err := s.db.QueryRowContext(ctx, query, key).Scan(&expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	if expiresAt == nil {
		return 0, false, nil
	}

	remaining := time.Until(*expiresAt)
	if remaining <= 0 {
		return 0, false, nil
	}
	return remaining, true, nil
}

// Close shuts down the backend. The *sql.DB is not closed, as it may be
// shared with other components.
func (s *SQLStorage) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	close(s.done)
	return nil
}

func (s *SQLStorage) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.done:
			return
		}
	}
}

func (s *SQLStorage) cleanup() {
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at < %s`,
		s.tableName, s.placeholder(1),
	)
	_, _ = s.db.Exec(query, time.Now().UTC())
}
