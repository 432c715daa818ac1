// Package migrations embeds the PostgreSQL schema.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
)

// Files holds the ordered *.sql migrations.
//
//go:embed *.sql
var Files embed.FS

// Names returns migration file names in apply order.
func Names() ([]string, error) {
	names, err := fs.Glob(Files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
