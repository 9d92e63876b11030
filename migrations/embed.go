// Package migrations embeds the SQL migrations for the action history
// database so the binary can create its schema without files on disk.
package migrations

import "embed"

// FS holds every *.sql migration at its root. Pass it to database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
