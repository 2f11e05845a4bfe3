// Package migrations embeds the SQL schema of the transition journal.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
