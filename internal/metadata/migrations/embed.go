// Package migrations holds the embedded SQLite schema for the metadata store.
package migrations

import "embed"

// FS contains the numbered *.up.sql files, applied in order.
//
//go:embed *.sql
var FS embed.FS
