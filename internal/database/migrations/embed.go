// Package migrations contains the embedded goose SQL migrations for MySQL.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
