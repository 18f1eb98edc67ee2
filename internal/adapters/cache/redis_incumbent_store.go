package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/platform/obs"
	"vrp-search-service/internal/ports"
)

const incumbentPrefix = "vrp:incumbent:"

// RedisIncumbentStore keeps the best plan per instance fingerprint as a JSON
// string. Conditional writes use optimistic WATCH transactions, so several
// solver processes may share one Redis.
type RedisIncumbentStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ ports.IncumbentStore = (*RedisIncumbentStore)(nil)

// ttl <= 0 keeps entries forever.
func NewRedisIncumbentStore(client redis.UniversalClient, ttl time.Duration) *RedisIncumbentStore {
	return &RedisIncumbentStore{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis client: parse url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (r *RedisIncumbentStore) key(k string) (string, error) {
	k = strings.TrimSpace(k)
	if k == "" {
		return "", errors.New("incumbent key must not be empty")
	}
	return incumbentPrefix + k, nil
}

func (r *RedisIncumbentStore) Get(ctx context.Context, key string) (_ domain.RoutePlan, err error) {
	defer obs.Time(ctx, "incumbent.redis.Get")(&err)

	k, err := r.key(key)
	if err != nil {
		return domain.RoutePlan{}, fmt.Errorf("get incumbent: %w", err)
	}

	raw, err := r.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RoutePlan{}, fmt.Errorf("get incumbent %s: %w", key, ports.ErrNotFound)
	}
	if err != nil {
		return domain.RoutePlan{}, fmt.Errorf("get incumbent %s: %w", key, err)
	}

	var plan domain.RoutePlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return domain.RoutePlan{}, fmt.Errorf("get incumbent %s: decode plan: %w", key, err)
	}
	return plan, nil
}

func (r *RedisIncumbentStore) PutIfBetter(ctx context.Context, key string, plan domain.RoutePlan) (_ bool, err error) {
	defer obs.Time(ctx, "incumbent.redis.PutIfBetter")(&err)

	k, err := r.key(key)
	if err != nil {
		return false, fmt.Errorf("put incumbent: %w", err)
	}
	raw, err := json.Marshal(plan)
	if err != nil {
		return false, fmt.Errorf("put incumbent %s: encode plan: %w", key, err)
	}

	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		updated := false
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, k).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				var stored domain.RoutePlan
				if err := json.Unmarshal(current, &stored); err != nil {
					return fmt.Errorf("decode stored plan: %w", err)
				}
				if stored.Cost <= plan.Cost {
					return nil
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, k, raw, max(r.ttl, 0))
				return nil
			})
			updated = err == nil
			return err
		}, k)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("put incumbent %s: %w", key, err)
		}
		return updated, nil
	}
	return false, fmt.Errorf("put incumbent %s: too much contention after %d attempts", key, maxAttempts)
}
