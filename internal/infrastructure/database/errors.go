package database

import "errors"

var (
	// ErrNoPath is returned by Open when no database path is configured.
	ErrNoPath = errors.New("database: path is required")

	// ErrMissingDown is returned by MigrateDown when the latest migration
	// has no .down.sql file.
	ErrMissingDown = errors.New("database: migration has no down SQL")

	// ErrUnknownMigration is returned when the database records a version
	// that the migration source does not contain.
	ErrUnknownMigration = errors.New("database: migration not found in source")
)
