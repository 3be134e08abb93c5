package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"calbook/internal/config"
	"calbook/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisProgressRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a Redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisProgressRepository(client *redis.Client, ttl time.Duration) *RedisProgressRepository {
	return &RedisProgressRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisProgressRepository) SetPhase(ctx context.Context, bookingUUID, phase string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("booking_progress:%s", bookingUUID)
	progress := models.Progress{
		BookingUUID: bookingUUID,
		Phase:       phase,
		UpdatedAt:   time.Now(),
	}
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set progress in redis: %w", err)
	}

	return nil
}

func (r *RedisProgressRepository) GetProgress(ctx context.Context, bookingUUID string) (*models.Progress, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("booking_progress:%s", bookingUUID)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress from redis: %w", err)
	}

	var progress models.Progress
	if err := json.Unmarshal([]byte(val), &progress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}

	return &progress, nil
}

func (r *RedisProgressRepository) ClearProgress(ctx context.Context, bookingUUID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("booking_progress:%s", bookingUUID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete progress from redis: %w", err)
	}
	return nil
}

func (r *RedisProgressRepository) CheckRateLimit(ctx context.Context, clientKey string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("rate_limit:%s", clientKey)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
