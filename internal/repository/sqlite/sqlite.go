package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thotranphuc276/person-detection/internal/bootstrap"
)

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// Open prepares a handle on the database at dbPath, creating the parent
// directory when needed. No connection is made until the first query or Ping.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	return &DB{conn: conn, path: dbPath}, nil
}

// Dial returns a dial function for the bootstrap connector.
func Dial(dbPath string) bootstrap.DialFunc[*DB] {
	return func(ctx context.Context) (*DB, error) {
		return Open(dbPath)
	}
}

// Ping runs a trivial query to prove the database answers.
func (db *DB) Ping(ctx context.Context) error {
	var one int
	if err := db.conn.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("database probe failed: %w", err)
	}
	return nil
}

// Migrate creates the necessary tables if they don't exist.
func (db *DB) Migrate(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	schema := `
	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		num_people INTEGER NOT NULL DEFAULT 0,
		original_image_path TEXT NOT NULL,
		result_image_path TEXT NOT NULL,
		confidence_threshold REAL NOT NULL DEFAULT 0.5
	);

	CREATE TABLE IF NOT EXISTS detection_boxes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		detection_id INTEGER NOT NULL,
		x INTEGER DEFAULT 0,
		y INTEGER DEFAULT 0,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		confidence REAL DEFAULT 0,
		FOREIGN KEY (detection_id) REFERENCES detections(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_detections_timestamp ON detections(timestamp);
	CREATE INDEX IF NOT EXISTS idx_detections_num_people ON detections(num_people);
	CREATE INDEX IF NOT EXISTS idx_detection_boxes_detection_id ON detection_boxes(detection_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path is the file backing the database.
func (db *DB) Path() string {
	return db.path
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Lock()    { db.mu.Lock() }
func (db *DB) Unlock()  { db.mu.Unlock() }
func (db *DB) RLock()   { db.mu.RLock() }
func (db *DB) RUnlock() { db.mu.RUnlock() }
