// Package migrations embeds the SQL schemas of the catalog SQLite stores.
package migrations

import "embed"

// EventsFS holds versioned event log migrations.
//
//go:embed events/*.sql
var EventsFS embed.FS

// ProjectionsFS holds the re-runnable projection schema.
//
//go:embed projections/*.sql
var ProjectionsFS embed.FS
