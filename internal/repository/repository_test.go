package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"calbook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProgressRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProgressRepository(time.Minute)

	progress, err := repo.GetProgress(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, progress)

	require.NoError(t, repo.SetPhase(ctx, "uuid-1", models.PhaseNavigate))
	require.NoError(t, repo.SetPhase(ctx, "uuid-1", models.PhaseSelectDate))

	progress, err = repo.GetProgress(ctx, "uuid-1")
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, models.PhaseSelectDate, progress.Phase)
	assert.Equal(t, "uuid-1", progress.BookingUUID)

	require.NoError(t, repo.ClearProgress(ctx, "uuid-1"))
	progress, err = repo.GetProgress(ctx, "uuid-1")
	require.NoError(t, err)
	assert.Nil(t, progress)
}

func TestMemoryRateLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProgressRepository(time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := repo.CheckRateLimit(ctx, "client", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := repo.CheckRateLimit(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// A different client has its own window.
	allowed, err = repo.CheckRateLimit(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func newMiniredisRepo(t *testing.T) (*RedisProgressRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisProgressRepository(client, time.Minute), mr
}

func TestRedisProgressRepository(t *testing.T) {
	ctx := context.Background()
	repo, mr := newMiniredisRepo(t)

	progress, err := repo.GetProgress(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, progress)

	require.NoError(t, repo.SetPhase(ctx, "uuid-1", models.PhaseFillForm))
	assert.True(t, mr.Exists("booking_progress:uuid-1"))

	progress, err = repo.GetProgress(ctx, "uuid-1")
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, models.PhaseFillForm, progress.Phase)

	require.NoError(t, repo.ClearProgress(ctx, "uuid-1"))
	assert.False(t, mr.Exists("booking_progress:uuid-1"))
}

func TestRedisRateLimit(t *testing.T) {
	ctx := context.Background()
	repo, mr := newMiniredisRepo(t)

	for i := 0; i < 2; i++ {
		allowed, err := repo.CheckRateLimit(ctx, "client", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := repo.CheckRateLimit(ctx, "client", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Expiring the window resets the counter.
	mr.FastForward(2 * time.Minute)
	allowed, err = repo.CheckRateLimit(ctx, "client", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

// failingRepo simulates a broken primary.
type failingRepo struct {
	err error
}

func (f *failingRepo) SetPhase(ctx context.Context, bookingUUID, phase string) error { return f.err }

func (f *failingRepo) GetProgress(ctx context.Context, bookingUUID string) (*models.Progress, error) {
	return nil, f.err
}

func (f *failingRepo) ClearProgress(ctx context.Context, bookingUUID string) error { return f.err }

func (f *failingRepo) CheckRateLimit(ctx context.Context, clientKey string, limit int, window time.Duration) (bool, error) {
	return false, f.err
}

func TestFailoverFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	primary := &failingRepo{err: errors.New("connection refused")}
	fallback := NewMemoryProgressRepository(time.Minute)
	repo := NewFailoverProgressRepository(primary, fallback, &logger)

	require.NoError(t, repo.SetPhase(ctx, "uuid-1", models.PhaseSubmit))

	// The write landed in the fallback even though the primary failed.
	progress, err := fallback.GetProgress(ctx, "uuid-1")
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, models.PhaseSubmit, progress.Phase)

	// Subsequent reads serve from the fallback without touching the primary.
	progress, err = repo.GetProgress(ctx, "uuid-1")
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, models.PhaseSubmit, progress.Phase)
}

func TestFailoverConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	primary := &failingRepo{err: errors.New("connection refused")}
	fallback := NewMemoryProgressRepository(time.Minute)
	repo := NewFailoverProgressRepository(primary, fallback, &logger)

	// Writers and readers race on the down-marking path; run under -race.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = repo.SetPhase(ctx, "uuid-1", models.PhaseNavigate)
				_, _ = repo.GetProgress(ctx, "uuid-1")
				_, _ = repo.CheckRateLimit(ctx, "client", 100, time.Minute)
			}
		}()
	}
	wg.Wait()

	progress, err := repo.GetProgress(ctx, "uuid-1")
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, models.PhaseNavigate, progress.Phase)
}

func TestFailoverPrefersHealthyPrimary(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	primary := NewMemoryProgressRepository(time.Minute)
	fallback := NewMemoryProgressRepository(time.Minute)
	repo := NewFailoverProgressRepository(primary, fallback, &logger)

	require.NoError(t, repo.SetPhase(ctx, "uuid-1", models.PhaseDone))

	progress, err := primary.GetProgress(ctx, "uuid-1")
	require.NoError(t, err)
	require.NotNil(t, progress)

	progress, err = fallback.GetProgress(ctx, "uuid-1")
	require.NoError(t, err)
	assert.Nil(t, progress)
}
