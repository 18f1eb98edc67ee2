package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"vrp-search-service/internal/platform/db"
)

// Initialize the run, sample, best-known and incumbent tables for the
// driver's dialect ("sqlite" or "pgx").
func InitSchema(conn *sql.DB, driver string) error {
	if conn == nil {
		return errors.New("init schema: DB is nil")
	}

	timestamp, float := "TEXT", "REAL"
	if driver == "pgx" {
		timestamp, float = "TIMESTAMPTZ", "DOUBLE PRECISION"
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createRunsQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		instance TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		seed BIGINT NOT NULL,
		started_at %[1]s NOT NULL,
		cost %[2]s NOT NULL,
		routes INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		total_time %[2]s NOT NULL,
		time_of_best %[2]s NOT NULL,
		host TEXT NOT NULL,
		plan TEXT NOT NULL
	);
	`, timestamp, float)

	createSamplesQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS samples (
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		elapsed %[1]s NOT NULL,
		cost %[1]s NOT NULL,
		PRIMARY KEY (run_id, iteration)
	);
	`, float)

	createBestKnownQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS best_known (
		instance TEXT PRIMARY KEY,
		cost %s NOT NULL
	);
	`, float)

	createIncumbentsQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS incumbents (
		fingerprint TEXT PRIMARY KEY,
		cost %s NOT NULL,
		plan TEXT NOT NULL
	);
	`, float)

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_runs_started_at
	ON runs(started_at);
	`

	statements := []string{
		createRunsQuery,
		createSamplesQuery,
		createBestKnownQuery,
		createIncumbentsQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type BestKnownSeed struct {
	Instance string  `json:"instance"`
	Cost     float64 `json:"cost"`
}

// Populate the best-known catalogue from a JSON file of
// [{"instance": "...", "cost": ...}] entries. Existing entries are replaced.
func SeedFromJSON(conn *sql.DB, driver, jsonPath string) (int, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("seed best known: read %q: %w", jsonPath, err)
	}

	var data []BestKnownSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return 0, fmt.Errorf("seed best known: parse json: %w", err)
	}

	rows := make([]BestKnownSeed, 0, len(data))
	for i, item := range data {
		name := strings.TrimSpace(item.Instance)
		if name == "" {
			return 0, fmt.Errorf("seed best known: item at index %d: instance cannot be empty", i+1)
		}
		if item.Cost <= 0 || math.IsNaN(item.Cost) || math.IsInf(item.Cost, 0) {
			return 0, fmt.Errorf("seed best known: invalid cost at index %d: %v", i+1, item.Cost)
		}
		rows = append(rows, BestKnownSeed{Instance: name, Cost: item.Cost})
	}

	tx, err := conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("seed best known: begin tx: %w", err)
	}
	defer tx.Rollback()

	query := db.Rebind(driver, `
	INSERT INTO best_known (
		instance,
		cost
	)
	VALUES (?, ?)
	ON CONFLICT (instance) DO UPDATE
	SET cost = excluded.cost;
	`)
	stmt, err := tx.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("seed best known: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range rows {
		if _, err := stmt.Exec(b.Instance, b.Cost); err != nil {
			return 0, fmt.Errorf("seed best known: insert instance=%q: %w", b.Instance, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("seed best known: commit tx: %w", err)
	}

	return len(rows), nil
}
