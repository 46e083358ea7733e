// Package migrations embeds the PostgreSQL schema migrations of the hub.
package migrations

import "embed"

// FS holds every *.sql migration in golang-migrate naming
//
//go:embed *.sql
var FS embed.FS
