// Package migrations embeds the SQL migration files so cmd/migrate needs no files on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
