package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/platform/db"
	"vrp-search-service/internal/platform/obs"
	"vrp-search-service/internal/ports"
)

// SQL-backed implementation of the RunRepository port. The same queries
// serve SQLite and Postgres; Driver selects the placeholder style and the
// timestamp encoding.
type SQLRunRepository struct {
	DB     *sql.DB
	Driver string
}

var _ ports.RunRepository = (*SQLRunRepository)(nil)

func NewSqliteRunRepository(conn *sql.DB) *SQLRunRepository {
	return &SQLRunRepository{DB: conn, Driver: "sqlite"}
}

func NewPostgresRunRepository(conn *sql.DB) *SQLRunRepository {
	return &SQLRunRepository{DB: conn, Driver: "pgx"}
}

func (r *SQLRunRepository) q(query string) string { return db.Rebind(r.Driver, query) }

// SQLite keeps timestamps as fixed-width UTC text so they sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (r *SQLRunRepository) encodeTime(t time.Time) any {
	if r.Driver == "pgx" {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimeLayout)
}

func decodeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(sqliteTimeLayout, t)
	case []byte:
		return time.Parse(sqliteTimeLayout, string(t))
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %T", v)
}

// Persist the run summary and its best plan. A run without id gets a new one.
func (r *SQLRunRepository) SaveRun(ctx context.Context, run domain.Run) (err error) {
	defer obs.Time(ctx, "runs.SaveRun")(&err)

	if r.DB == nil {
		return errors.New("run repository: DB is nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	plan, err := json.Marshal(run.Plan)
	if err != nil {
		return fmt.Errorf("save run %s: encode plan: %w", run.ID, err)
	}

	query := r.q(`
	INSERT INTO runs (
		id, instance, fingerprint, seed, started_at, cost, routes,
		iterations, total_time, time_of_best, host, plan
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE
	SET cost = excluded.cost,
		routes = excluded.routes,
		iterations = excluded.iterations,
		total_time = excluded.total_time,
		time_of_best = excluded.time_of_best,
		plan = excluded.plan;
	`)
	_, err = r.DB.ExecContext(ctx, query,
		run.ID, run.Instance, run.Fingerprint, run.Seed, r.encodeTime(run.StartedAt), run.Cost, run.Routes,
		run.Iterations, run.TotalTime, run.TimeOfBest, run.Host, string(plan),
	)
	if err != nil {
		return fmt.Errorf("save run %s: insert: %w", run.ID, err)
	}
	return nil
}

// Append one improvement sample to a run.
func (r *SQLRunRepository) AddSample(ctx context.Context, runID string, sample domain.Sample) error {
	if r.DB == nil {
		return errors.New("run repository: DB is nil")
	}
	if runID == "" {
		return errors.New("add sample: run id must not be empty")
	}

	query := r.q(`
	INSERT INTO samples (run_id, iteration, elapsed, cost)
	VALUES (?, ?, ?, ?);
	`)
	if _, err := r.DB.ExecContext(ctx, query, runID, sample.Iteration, sample.Time, sample.Cost); err != nil {
		return fmt.Errorf("add sample run=%s iter=%d: %w", runID, sample.Iteration, err)
	}
	return nil
}

// Return the most recent runs, newest first.
func (r *SQLRunRepository) ListRuns(ctx context.Context, limit int) (_ []domain.Run, err error) {
	defer obs.Time(ctx, "runs.ListRuns")(&err)

	if r.DB == nil {
		return nil, errors.New("run repository: DB is nil")
	}
	if limit <= 0 {
		limit = 50
	}

	query := r.q(`
	SELECT
		id, instance, fingerprint, seed, started_at, cost, routes,
		iterations, total_time, time_of_best, host, plan
	FROM runs
	ORDER BY started_at DESC, id
	LIMIT ?;
	`)
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: query runs table: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.Run, 0, limit)
	for rows.Next() {
		var (
			run     domain.Run
			started any
			plan    string
		)
		err := rows.Scan(
			&run.ID, &run.Instance, &run.Fingerprint, &run.Seed, &started, &run.Cost, &run.Routes,
			&run.Iterations, &run.TotalTime, &run.TimeOfBest, &run.Host, &plan,
		)
		if err != nil {
			return nil, fmt.Errorf("list runs: scan row: %w", err)
		}
		if run.StartedAt, err = decodeTime(started); err != nil {
			return nil, fmt.Errorf("list runs: run %s: started_at: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(plan), &run.Plan); err != nil {
			return nil, fmt.Errorf("list runs: run %s: decode plan: %w", run.ID, err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: row iteration: %w", err)
	}

	return runs, nil
}

// Return the samples of a run in recording order, or ErrNotFound when the
// run is unknown.
func (r *SQLRunRepository) ListSamples(ctx context.Context, runID string) ([]domain.Sample, error) {
	if r.DB == nil {
		return nil, errors.New("run repository: DB is nil")
	}

	query := r.q(`
	SELECT iteration, elapsed, cost
	FROM samples
	WHERE run_id = ?
	ORDER BY iteration;
	`)
	rows, err := r.DB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list samples: query samples table: %w", err)
	}
	defer rows.Close()

	var samples []domain.Sample
	for rows.Next() {
		var s domain.Sample
		if err := rows.Scan(&s.Iteration, &s.Time, &s.Cost); err != nil {
			return nil, fmt.Errorf("list samples: scan row: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list samples: row iteration: %w", err)
	}
	if len(samples) > 0 {
		return samples, nil
	}

	var one int
	err = r.DB.QueryRowContext(ctx, r.q(`SELECT 1 FROM runs WHERE id = ?;`), runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list samples: run %s: %w", runID, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("list samples: lookup run %s: %w", runID, err)
	}
	return []domain.Sample{}, nil
}

// Return the best known cost seeded for the instance name, or ErrNotFound.
func (r *SQLRunRepository) BestKnown(ctx context.Context, instance string) (domain.BestKnown, error) {
	if r.DB == nil {
		return domain.BestKnown{}, errors.New("run repository: DB is nil")
	}

	bk := domain.BestKnown{Instance: instance}
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT cost FROM best_known WHERE instance = ?;`), instance).Scan(&bk.Cost)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BestKnown{}, fmt.Errorf("best known %q: %w", instance, ports.ErrNotFound)
	}
	if err != nil {
		return domain.BestKnown{}, fmt.Errorf("best known %q: query: %w", instance, err)
	}
	return bk, nil
}
