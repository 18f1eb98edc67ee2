package ports

import (
	"context"
	"errors"
	"vrp-search-service/internal/domain"
)

// ErrNotFound is returned by lookups that have no row for the key.
var ErrNotFound = errors.New("not found")

// Port: resolves an instance reference (file path or name) to an Instance.
type InstanceSource interface {
	Load(ctx context.Context, ref string) (*domain.Instance, error)
}

// Port: a boundary for storing finished runs and their improvement samples.
type RunRepository interface {
	// Persist the run summary and its best plan.
	SaveRun(ctx context.Context, run domain.Run) error
	// Append one improvement sample to a run.
	AddSample(ctx context.Context, runID string, sample domain.Sample) error
	// Return the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	// Return the samples of a run in recording order, or ErrNotFound.
	ListSamples(ctx context.Context, runID string) ([]domain.Sample, error)
	// Return the best known cost seeded for the instance name, or ErrNotFound.
	BestKnown(ctx context.Context, instance string) (domain.BestKnown, error)
}

// Port: best plan found so far per instance fingerprint.
type IncumbentStore interface {
	// Return the stored plan, or ErrNotFound.
	Get(ctx context.Context, key string) (domain.RoutePlan, error)
	// Store plan when no plan is stored or it is cheaper than the stored one.
	// Reports whether the store was updated.
	PutIfBetter(ctx context.Context, key string, plan domain.RoutePlan) (bool, error)
}
