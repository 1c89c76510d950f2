// Package migrations holds the schema files applied by `rt-server migrate up`.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
