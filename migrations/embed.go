// Package migrations embeds the per-dialect schema files.
package migrations

import "embed"

// FS holds mysql/, postgres/ and sqlite/ directories of NNN_name.sql files.
//
//go:embed mysql/*.sql postgres/*.sql sqlite/*.sql
var FS embed.FS
