package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Open connects to Postgres through the pgx stdlib driver.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: open postgres database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open db: verify postgres connection: %w", err)
	}

	return db, nil
}

// OpenSqlite opens a SQLite database file. ":memory:" and "file::memory:"
// are limited to one connection so every query sees the same database.
func OpenSqlite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: open database %q: %w", path, err)
	}
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: verify connection to %q: %w", path, err)
	}

	return db, nil
}

// Driver reports which SQL dialect a URL selects: "pgx" for postgres URLs,
// "sqlite" otherwise.
func Driver(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "pgx"
	}
	return "sqlite"
}

// OpenURL opens Postgres or SQLite depending on the URL.
func OpenURL(url string) (*sql.DB, error) {
	if Driver(url) == "pgx" {
		return Open(url)
	}
	return OpenSqlite(strings.TrimPrefix(url, "sqlite://"))
}

// Rebind rewrites the "?" placeholders of query into "$1, $2, ..." for the
// pgx driver. Queries must not contain literal question marks.
func Rebind(driver, query string) string {
	if driver != "pgx" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
