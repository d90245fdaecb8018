package persist

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect captures what differs between the supported SQL drivers.
type Dialect struct {
	Driver string
	// Numbered placeholders ($1, $2, ...) instead of '?'.
	Numbered bool
	// Single connection, required for in-memory sqlite databases.
	SingleConn  bool
	CreateTable string
}

var dialects = map[string]Dialect{
	"sqlite3": {
		Driver:     "sqlite3",
		SingleConn: true,
		CreateTable: `CREATE TABLE IF NOT EXISTS soma_cells (
	seq     INTEGER PRIMARY KEY,
	path    TEXT NOT NULL,
	kind    TEXT NOT NULL,
	payload TEXT,
	target  TEXT
)`,
	},
	"mysql": {
		Driver: "mysql",
		CreateTable: `CREATE TABLE IF NOT EXISTS soma_cells (
	seq     BIGINT PRIMARY KEY,
	path    VARCHAR(1024) NOT NULL,
	kind    VARCHAR(16) NOT NULL,
	payload LONGTEXT,
	target  VARCHAR(1024)
)`,
	},
	"postgres": {
		Driver:   "postgres",
		Numbered: true,
		CreateTable: `CREATE TABLE IF NOT EXISTS soma_cells (
	seq     BIGINT PRIMARY KEY,
	path    TEXT NOT NULL,
	kind    TEXT NOT NULL,
	payload TEXT,
	target  TEXT
)`,
	},
}

// DialectFor returns the dialect registered for a database/sql driver name.
// "sqlite" and "postgresql" are accepted as aliases.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		driver = "sqlite3"
	case "postgresql", "pq":
		driver = "postgres"
	}
	d, ok := dialects[driver]
	if !ok {
		return Dialect{}, fmt.Errorf("persist: unsupported driver %q", driver)
	}
	return d, nil
}

// Rebind rewrites '?' placeholders for drivers that number them.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
