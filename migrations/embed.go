// Package migrations embeds the SQL schema migrations applied by the storage layer.
package migrations

import "embed"

//go:embed sqlite/*.sql
var FS embed.FS
