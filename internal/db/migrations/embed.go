// Package migrations embeds the SQL schema migrations so released
// binaries can migrate a database without shipping loose files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
