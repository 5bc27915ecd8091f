// Package migrations embeds the SQLite schema and reference data.
package migrations

import "embed"

// FS holds the numbered migration files
//
//go:embed *.sql
var FS embed.FS
