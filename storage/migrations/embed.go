package migrations

import "embed"

// FS contains the SQLite migrations of the run store.
//
//go:embed *.sql
var FS embed.FS
