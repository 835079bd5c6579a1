// Package migrations holds the ordered SQL schema files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
