package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection.
// Used for shared kiosk deployments where several capture stations point at
// one state store.
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS local_photos (
		id TEXT PRIMARY KEY,
		remote_id TEXT,
		data TEXT NOT NULL,
		thumb TEXT NOT NULL DEFAULT '',
		timestamp TIMESTAMP NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_local_photos_remote_id ON local_photos(remote_id);
	CREATE INDEX IF NOT EXISTS idx_local_photos_timestamp ON local_photos(timestamp);

	CREATE TABLE IF NOT EXISTS cache_entries (
		user_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		written_at TIMESTAMP NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}
