// Package database provides the SQLite store behind the operator's action
// history.
//
// The database holds one row per action record (see package actionlog) so
// the history command can filter and page through past operations without
// scanning the JSONL audit file. Connections use WAL mode so a reader can
// query while the auto controller appends.
//
// Migrations are plain SQL files named YYYYMMDD_HHMMSS_description.up.sql
// (with an optional matching .down.sql), supplied as an fs.FS. Package
// migrations embeds the production set:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are NULLABLE or carry a DEFAULT.
package database
