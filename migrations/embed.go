// Package migrations holds the goose SQL migrations for the Postgres store.
package migrations

import "embed"

// FS contains every migration file of this directory
//
//go:embed *.sql
var FS embed.FS
