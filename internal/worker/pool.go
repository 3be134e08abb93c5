package worker

import (
	"context"
	"errors"
	"sync"

	"calbook/internal/domain"
	"calbook/internal/metrics"
	"calbook/internal/models"

	"github.com/rs/zerolog"
)

// ErrQueueFull is returned when the automation queue has no room; intake maps
// it to a 503 so callers get backpressure instead of unbounded browsers.
var ErrQueueFull = errors.New("automation queue is full")

// Job is one booking waiting for its browser session.
type Job struct {
	BookingID   int64
	BookingUUID string
	CalendlyURL string
	Details     models.FormDetails
}

// Pool runs booking automations on a fixed number of workers, each driving
// at most one browser session at a time.
type Pool struct {
	automator domain.BookingAutomator
	queue     chan Job
	workers   int
	logger    *zerolog.Logger
	wg        sync.WaitGroup
}

func NewPool(automator domain.BookingAutomator, workers, queueSize int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = models.DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = models.DefaultQueueSize
	}

	return &Pool{
		automator: automator,
		queue:     make(chan Job, queueSize),
		workers:   workers,
		logger:    logger,
	}
}

// Enqueue hands a booking to the pool without blocking.
func (p *Pool) Enqueue(job Job) error {
	select {
	case p.queue <- job:
		metrics.SetQueueDepth(len(p.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers; they stop when ctx is done.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info().Int("workers", p.workers).Int("queue_size", cap(p.queue)).Msg("automation pool started")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.With().Int("worker", id).Logger()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker stopped")
			return
		case job := <-p.queue:
			metrics.SetQueueDepth(len(p.queue))
			// Errors are already reflected in the booking record and logs;
			// the worker just moves on to the next job.
			if err := p.automator.AutomateBooking(ctx, job.BookingID, job.CalendlyURL, job.Details); err != nil {
				logger.Error().Err(err).Int64("booking_id", job.BookingID).Msg("automation job failed")
			}
		}
	}
}
