// Package migrations embeds the SQL migration files so they can be used
// by the goose programmatic API in tests and server bootstrap.
//
// sqlite/ holds the schedule schema applied to the embedded database on every
// snapshot activation. postgres/ holds the table used by the Postgres
// snapshot store.
package migrations

import (
	"embed"
	"io/fs"
)

// FS holds all *.sql migration files embedded at compile time.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// SQLite returns the schedule schema migrations rooted at their directory,
// ready to hand to goose.NewProvider.
func SQLite() fs.FS {
	return sub("sqlite")
}

// Postgres returns the snapshot table migrations.
func Postgres() fs.FS {
	return sub("postgres")
}

func sub(dir string) fs.FS {
	f, err := fs.Sub(FS, dir)
	if err != nil {
		// Only reachable if the embed pattern above and dir disagree.
		panic("migrations: " + err.Error())
	}
	return f
}
