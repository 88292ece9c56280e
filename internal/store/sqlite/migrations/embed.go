// Package migrations embeds the SQL migrations for the project database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
