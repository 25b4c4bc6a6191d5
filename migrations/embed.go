// Package migrations embeds the SQL migration files into the binary so the
// bridge can create its schema without the files on disk.
package migrations

import "embed"

//go:embed *.sql
var files embed.FS

// FS holds every migration at its root, ready for database.DB.Migrate.
var FS = files
