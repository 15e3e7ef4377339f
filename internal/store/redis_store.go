package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vmglabs/luncheon-roulette/internal/catalog"
	"github.com/vmglabs/luncheon-roulette/internal/model"
)

const redisTxAttempts = 16

const redisPoolKey = "lunch:venue-pool"

// RedisStore keeps sessions as JSON values and implements the transaction
// contract with WATCH: a concurrent write to the watched key between the
// read and EXEC fails the pipeline with redis.TxFailedErr, and the
// transaction is retried with a fresh read.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and pings the server before returning.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: c}, nil
}

func sessionKey(key string) string {
	return "lunch:session:" + key
}

// Get fetches and decodes the session stored under key.
func (rs *RedisStore) Get(ctx context.Context, key string) (*model.PollSession, error) {
	b, err := rs.client.Get(ctx, sessionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s model.PollSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Set stores the session under key.
func (rs *RedisStore) Set(ctx context.Context, key string, s *model.PollSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := rs.client.Set(ctx, sessionKey(key), b, 0).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

type redisTx struct {
	ctx    context.Context
	rtx    *redis.Tx
	key    string
	staged *model.PollSession
	dirty  bool
}

func (t *redisTx) Get() (*model.PollSession, error) {
	b, err := t.rtx.Get(t.ctx, t.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transactional get: %w", err)
	}

	var s model.PollSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (t *redisTx) Set(s *model.PollSession) {
	t.staged = s
	t.dirty = true
}

// RunTransaction implements the optimistic read-modify-write contract over
// WATCH/MULTI/EXEC.
func (rs *RedisStore) RunTransaction(ctx context.Context, key string, fn func(tx Tx) error) (*model.PollSession, error) {
	k := sessionKey(key)

	for attempt := 0; attempt < redisTxAttempts; attempt++ {
		var staged *model.PollSession

		err := rs.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{ctx: ctx, rtx: rtx, key: k}
			if err := fn(tx); err != nil {
				return err
			}
			if !tx.dirty {
				return nil
			}

			b, err := json.Marshal(tx.staged)
			if err != nil {
				return fmt.Errorf("encode session: %w", err)
			}
			_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, k, b, 0)
				return nil
			})
			if err != nil {
				return err
			}
			staged = tx.staged
			return nil
		}, k)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return staged, nil
	}

	return nil, ErrConflict
}

// LoadPool fetches the user-curated venue pool.
func (rs *RedisStore) LoadPool(ctx context.Context) ([]catalog.Venue, error) {
	b, err := rs.client.Get(ctx, redisPoolKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get venue pool: %w", err)
	}

	var venues []catalog.Venue
	if err := json.Unmarshal(b, &venues); err != nil {
		return nil, fmt.Errorf("decode venue pool: %w", err)
	}
	return venues, nil
}

// SavePool replaces the venue pool.
func (rs *RedisStore) SavePool(ctx context.Context, venues []catalog.Venue) error {
	b, err := json.Marshal(venues)
	if err != nil {
		return fmt.Errorf("encode venue pool: %w", err)
	}
	if err := rs.client.Set(ctx, redisPoolKey, b, 0).Err(); err != nil {
		return fmt.Errorf("set venue pool: %w", err)
	}
	return nil
}

// Close releases the client's connections.
func (rs *RedisStore) Close() error {
	if err := rs.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
