package auth

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations/*.sql
var migrationsFS embed.FS

//go:embed data/fixtures/*.json
var fixturesFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetFixturesFS returns the question bank fixtures
func GetFixturesFS() fs.FS {
	sub, err := fs.Sub(fixturesFS, "data/fixtures")
	if err != nil {
		panic(err)
	}
	return sub
}
