package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"calbook/internal/domain"
	"calbook/internal/models"

	"github.com/rs/zerolog"
)

// FailoverProgressRepository prefers the primary (redis) repository and falls
// back to the in-memory one while the primary is down, probing it again after
// a minute.
type FailoverProgressRepository struct {
	primary  domain.ProgressRepository
	fallback domain.ProgressRepository
	logger   *zerolog.Logger
	isDown   atomic.Bool

	// mu guards lastCheck; workers and HTTP handlers hit this repository
	// concurrently.
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverProgressRepository(primary, fallback domain.ProgressRepository, logger *zerolog.Logger) *FailoverProgressRepository {
	return &FailoverProgressRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverProgressRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary progress repository failed, falling back to memory")
	r.isDown.Store(true)
	r.touchLastCheck()
}

func (r *FailoverProgressRepository) touchLastCheck() {
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// shouldProbe reports whether enough time has passed since the last primary
// failure to try it again.
func (r *FailoverProgressRepository) shouldProbe() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > time.Minute
}

func (r *FailoverProgressRepository) SetPhase(ctx context.Context, bookingUUID, phase string) error {
	if !r.isDown.Load() {
		err := r.primary.SetPhase(ctx, bookingUUID, phase)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetPhase(ctx, bookingUUID, phase)
}

func (r *FailoverProgressRepository) GetProgress(ctx context.Context, bookingUUID string) (*models.Progress, error) {
	if !r.isDown.Load() {
		progress, err := r.primary.GetProgress(ctx, bookingUUID)
		if err == nil {
			return progress, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && r.shouldProbe() {
		progress, err := r.primary.GetProgress(ctx, bookingUUID)
		if err == nil {
			r.isDown.Store(false)
			return progress, nil
		}
		r.touchLastCheck()
	}

	return r.fallback.GetProgress(ctx, bookingUUID)
}

func (r *FailoverProgressRepository) ClearProgress(ctx context.Context, bookingUUID string) error {
	if !r.isDown.Load() {
		err := r.primary.ClearProgress(ctx, bookingUUID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.ClearProgress(ctx, bookingUUID)
}

func (r *FailoverProgressRepository) CheckRateLimit(ctx context.Context, clientKey string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, clientKey, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, clientKey, limit, window)
}
