package repository

import (
	"context"
	"sync"
	"time"

	"calbook/internal/models"
)

type MemoryProgressRepository struct {
	progress   sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemoryProgressRepository(ttl time.Duration) *MemoryProgressRepository {
	return &MemoryProgressRepository{
		ttl: ttl,
	}
}

func (r *MemoryProgressRepository) SetPhase(ctx context.Context, bookingUUID, phase string) error {
	r.progress.Store(bookingUUID, &models.Progress{
		BookingUUID: bookingUUID,
		Phase:       phase,
		UpdatedAt:   time.Now(),
	})
	return nil
}

func (r *MemoryProgressRepository) GetProgress(ctx context.Context, bookingUUID string) (*models.Progress, error) {
	val, ok := r.progress.Load(bookingUUID)
	if !ok {
		return nil, nil
	}
	return val.(*models.Progress), nil
}

func (r *MemoryProgressRepository) ClearProgress(ctx context.Context, bookingUUID string) error {
	r.progress.Delete(bookingUUID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryProgressRepository) CheckRateLimit(ctx context.Context, clientKey string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(clientKey)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(clientKey, entry)
	return entry.count <= limit, nil
}
