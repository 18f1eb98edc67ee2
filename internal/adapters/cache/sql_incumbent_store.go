package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/platform/db"
	"vrp-search-service/internal/platform/obs"
	"vrp-search-service/internal/ports"
)

// SQLIncumbentStore is a SQL-backed store of the best plan per instance
// fingerprint, for SQLite or Postgres depending on Driver.
type SQLIncumbentStore struct {
	DB     *sql.DB
	Driver string
}

var _ ports.IncumbentStore = (*SQLIncumbentStore)(nil)

func NewSqliteIncumbentStore(conn *sql.DB) *SQLIncumbentStore {
	return &SQLIncumbentStore{DB: conn, Driver: "sqlite"}
}

func NewSQLIncumbentStore(conn *sql.DB) *SQLIncumbentStore {
	return &SQLIncumbentStore{DB: conn, Driver: "pgx"}
}

// Fetch the stored plan for key.
func (s *SQLIncumbentStore) Get(ctx context.Context, key string) (_ domain.RoutePlan, err error) {
	defer obs.Time(ctx, "incumbent.cache.Get")(&err)

	if s.DB == nil {
		return domain.RoutePlan{}, errors.New("incumbent cache: db is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.RoutePlan{}, errors.New("get incumbent: key must not be empty")
	}

	var raw string
	q := db.Rebind(s.Driver, `
	SELECT plan
	FROM incumbents
	WHERE fingerprint = ?;
	`)
	err = s.DB.QueryRowContext(ctx, q, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoutePlan{}, fmt.Errorf("get incumbent %s: %w", key, ports.ErrNotFound)
	}
	if err != nil {
		return domain.RoutePlan{}, fmt.Errorf("get incumbent %s: query incumbents table: %w", key, err)
	}

	var plan domain.RoutePlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return domain.RoutePlan{}, fmt.Errorf("get incumbent %s: decode plan: %w", key, err)
	}
	return plan, nil
}

// Store plan when it beats the stored one, inside one transaction.
func (s *SQLIncumbentStore) PutIfBetter(ctx context.Context, key string, plan domain.RoutePlan) (_ bool, err error) {
	defer obs.Time(ctx, "incumbent.cache.PutIfBetter")(&err)

	if s.DB == nil {
		return false, errors.New("incumbent cache: db is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, errors.New("put incumbent: key must not be empty")
	}

	raw, err := json.Marshal(plan)
	if err != nil {
		return false, fmt.Errorf("put incumbent %s: encode plan: %w", key, err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("put incumbent: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored float64
	err = tx.QueryRowContext(ctx, db.Rebind(s.Driver, `SELECT cost FROM incumbents WHERE fingerprint = ?;`), key).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("put incumbent %s: query incumbents table: %w", key, err)
	case stored <= plan.Cost:
		return false, nil
	}

	q := db.Rebind(s.Driver, `
	INSERT INTO incumbents (fingerprint, cost, plan)
	VALUES (?, ?, ?)
	ON CONFLICT (fingerprint) DO UPDATE
	SET cost = excluded.cost,
		plan = excluded.plan;
	`)
	if _, err := tx.ExecContext(ctx, q, key, plan.Cost, string(raw)); err != nil {
		return false, fmt.Errorf("put incumbent %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("put incumbent commit: %w", err)
	}

	return true, nil
}
