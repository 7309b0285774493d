package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Locally captured photos awaiting (or tracking) upload
	CREATE TABLE IF NOT EXISTS local_photos (
		id TEXT PRIMARY KEY,
		remote_id TEXT,
		data TEXT NOT NULL,
		thumb TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_local_photos_remote_id ON local_photos(remote_id);
	CREATE INDEX IF NOT EXISTS idx_local_photos_timestamp ON local_photos(timestamp);

	-- Durable tier of the merged-list cache, one row per user
	CREATE TABLE IF NOT EXISTS cache_entries (
		user_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		written_at DATETIME NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}
