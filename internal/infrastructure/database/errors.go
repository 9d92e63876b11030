package database

import "errors"

var (
	// ErrNoPath is returned by Open when Config.Path is empty.
	ErrNoPath = errors.New("database: path is required")

	// ErrMigrationMissing indicates an applied migration has no file in the source.
	ErrMigrationMissing = errors.New("database: applied migration not found in source")

	// ErrNoDownSQL indicates a migration cannot be rolled back.
	ErrNoDownSQL = errors.New("database: migration has no down SQL")
)
