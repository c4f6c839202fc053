package db

import "embed"

// Migrations holds the goose migration files applied by Connect.
//
//go:embed migrations/*.sql
var Migrations embed.FS
