// Package repository stores per-session admin view state.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Miketheless/workshopneu/internal/config"
	"github.com/Miketheless/workshopneu/internal/models"

	"github.com/redis/go-redis/v9"
)

var errNoClient = errors.New("redis client is nil")

const (
	viewKeyPrefix  = "platzreife:view:"
	limitKeyPrefix = "platzreife:limit:"
)

type RedisStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client from the redis config section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisStateRepository(client *redis.Client, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{client: client, ttl: ttl}
}

// GetState returns nil, nil for an unknown session.
func (r *RedisStateRepository) GetState(ctx context.Context, sessionID string) (*models.ViewState, error) {
	if r.client == nil {
		return nil, errNoClient
	}
	val, err := r.client.Get(ctx, viewKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get view state: %w", err)
	}

	var state models.ViewState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("decode view state: %w", err)
	}
	return &state, nil
}

// SetState stores state and refreshes its TTL.
func (r *RedisStateRepository) SetState(ctx context.Context, state *models.ViewState) error {
	if r.client == nil {
		return errNoClient
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode view state: %w", err)
	}
	if err := r.client.Set(ctx, viewKeyPrefix+state.SessionID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set view state: %w", err)
	}
	return nil
}

func (r *RedisStateRepository) ClearState(ctx context.Context, sessionID string) error {
	if r.client == nil {
		return errNoClient
	}
	if err := r.client.Del(ctx, viewKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete view state: %w", err)
	}
	return nil
}

// CheckRateLimit is a fixed-window counter; it reports whether the call
// identified by key is still within limit.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNoClient
	}
	k := limitKeyPrefix + key
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("expire rate limit: %w", err)
		}
	}
	return count <= int64(limit), nil
}

// Ping checks the connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
