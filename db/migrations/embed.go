package migrations

import "embed"

// FS содержит SQL-миграции схемы Postgres.
//
//go:embed *.sql
var FS embed.FS
