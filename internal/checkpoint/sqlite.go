package checkpoint

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db      *sql.DB
	closed  bool
	writeMu sync.Mutex
}

// NewSQLiteStore creates a new SQLite checkpoint store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite for concurrent access
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=60000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS items (
		key TEXT NOT NULL PRIMARY KEY,
		partition TEXT NOT NULL,
		size INTEGER NOT NULL,
		status TEXT NOT NULL,
		last_error TEXT,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
	CREATE INDEX IF NOT EXISTS idx_items_partition ON items(partition);
	`

	_, err := s.db.Exec(query)
	return err
}

// Get retrieves an item record, or nil if the item has no record yet.
func (s *SQLiteStore) Get(key string) (*Record, error) {
	if s.closed {
		return nil, fmt.Errorf("checkpoint store is closed")
	}

	var result *Record
	err := s.retryOnBusy(func() error {
		var err error
		result, err = s.getInternal(key)
		return err
	})
	return result, err
}

func (s *SQLiteStore) getInternal(key string) (*Record, error) {
	query := `
	SELECT key, partition, size, status, last_error, updated_at
	FROM items WHERE key = ?
	`

	row := s.db.QueryRow(query, key)

	var record Record
	var lastError sql.NullString

	err := row.Scan(
		&record.Key,
		&record.Partition,
		&record.Size,
		&record.Status,
		&lastError,
		&record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lastError.Valid {
		record.LastError = lastError.String
	}

	return &record, nil
}

// Save saves or updates an item record.
func (s *SQLiteStore) Save(record *Record) error {
	if s.closed {
		return fmt.Errorf("checkpoint store is closed")
	}

	// Serialize writes to avoid SQLITE_BUSY from multiple concurrent workers
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.retryOnBusy(func() error {
		return s.saveWithTransaction(record)
	})
}

func (s *SQLiteStore) saveWithTransaction(record *Record) error {
	record.UpdatedAt = time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // This will be ignored if Commit() succeeds

	query := `
    INSERT INTO items (key, partition, size, status, last_error, updated_at)
    VALUES (?, ?, ?, ?, ?, ?)
    ON CONFLICT(key) DO UPDATE SET
        partition = excluded.partition,
        size = excluded.size,
        status = excluded.status,
        last_error = excluded.last_error,
        updated_at = excluded.updated_at
    `

	_, err = tx.Exec(query,
		record.Key,
		record.Partition,
		record.Size,
		record.Status,
		record.LastError,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to execute insert: %w", err)
	}

	return tx.Commit()
}

// retryOnBusy retries the operation if SQLite is busy
func (s *SQLiteStore) retryOnBusy(operation func() error) error {
	maxRetries := 10
	baseDelay := 50 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if isSQLiteBusyError(err) && attempt < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<uint(attempt))
			jitter := time.Duration(attempt*10) * time.Millisecond
			time.Sleep(delay + jitter)
			continue
		}

		return err
	}

	return nil
}

func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errorStr := err.Error()
	return strings.Contains(errorStr, "database is locked") ||
		strings.Contains(errorStr, "SQLITE_BUSY")
}

// ListFailed returns all failed item records in update order.
func (s *SQLiteStore) ListFailed() ([]*Record, error) {
	query := `
	SELECT key, partition, size, status, last_error, updated_at
	FROM items WHERE status = ?
	ORDER BY updated_at ASC
	`

	rows, err := s.db.Query(query, StatusFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record

	for rows.Next() {
		var record Record
		var lastError sql.NullString

		err := rows.Scan(
			&record.Key,
			&record.Partition,
			&record.Size,
			&record.Status,
			&lastError,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if lastError.Valid {
			record.LastError = lastError.String
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.closed = true
	return s.db.Close()
}
