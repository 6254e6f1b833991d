//go:build !cgo_sqlite

package db

import (
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const sqliteDriverName = "sqlite"
