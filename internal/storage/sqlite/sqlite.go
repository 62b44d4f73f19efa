// Package sqlite persists projects and their per-slice artifacts.
//
// One database holds many projects. Geometry-heavy payloads (the cloud,
// slice membership) are stored as gob+gzip blobs; editable artifacts
// (centroids, polylines) and stage statuses are stored as JSON so they stay
// inspectable with plain SQL tooling. Schema changes go through embedded
// migrations, never ad-hoc DDL.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the project database.
type Store struct {
	*sql.DB
}

// Open opens (or creates) the database at path and applies pragmas. It does
// not run migrations; call MigrateUp before first use.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &Store{db}, nil
}
