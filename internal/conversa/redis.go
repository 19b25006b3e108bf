package conversa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL limita a vida de conversas abandonadas no Redis.
const DefaultTTL = 30 * time.Minute

const keyPrefix = "conversa:"

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore persiste estados como JSON com expiração.
type RedisStore struct {
	redis redisCommander
	ttl   time.Duration
}

// NewRedisStore cria store sobre um cliente go-redis. ttl <= 0 usa DefaultTTL.
func NewRedisStore(client redisCommander, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{redis: client, ttl: ttl}
}

// RedisKey monta a chave usada no Redis.
func RedisKey(key string) string {
	return keyPrefix + key
}

// Get lê e decodifica o estado.
func (r *RedisStore) Get(ctx context.Context, key string) (State, bool, error) {
	raw, err := r.redis.Get(ctx, RedisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("redis get: %w", err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if !st.Step.Valid() {
		return State{}, false, ErrInvalidState
	}
	return st, true, nil
}

// Put codifica e grava o estado, renovando a expiração.
func (r *RedisStore) Put(ctx context.Context, key string, state State) error {
	if !state.Step.Valid() {
		return ErrInvalidState
	}
	state.AtualizadoEm = time.Now()
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := r.redis.Set(ctx, RedisKey(key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete remove o estado.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, RedisKey(key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
