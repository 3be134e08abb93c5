package service

import (
	"context"
	"time"

	"calbook/internal/domain"
	"calbook/internal/events"
	"calbook/internal/metrics"
	"calbook/internal/models"

	"github.com/rs/zerolog"
)

// BookingService owns the booking lifecycle: record creation at intake and
// the automation sequence that drives one isolated browser session per
// booking.
type BookingService struct {
	store    domain.BookingStore
	sessions domain.AutomatorFactory
	progress domain.ProgressRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewBookingService(
	store domain.BookingStore,
	sessions domain.AutomatorFactory,
	progress domain.ProgressRepository,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		store:    store,
		sessions: sessions,
		progress: progress,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CreateBooking persists a fresh pending record for the request.
func (s *BookingService) CreateBooking(ctx context.Context, email string) (*models.Booking, error) {
	booking, err := s.store.CreateBooking(ctx, email)
	if err != nil {
		return nil, err
	}

	s.setPhase(ctx, booking.UUID, models.PhaseQueued)
	s.publishEvent(events.EventBookingCreated, booking, "")

	return booking, nil
}

// GetBookingByUUID looks a booking up for the API.
func (s *BookingService) GetBookingByUUID(ctx context.Context, bookingUUID string) (*models.Booking, error) {
	return s.store.GetBookingByUUID(ctx, bookingUUID)
}

// GetProgress returns the last automation phase recorded for a booking.
func (s *BookingService) GetProgress(ctx context.Context, bookingUUID string) (*models.Progress, error) {
	if s.progress == nil {
		return nil, nil
	}
	return s.progress.GetProgress(ctx, bookingUUID)
}

// GetBookingsByDateRange returns bookings created inside the range.
func (s *BookingService) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	return s.store.GetBookingsByDateRange(ctx, start, end)
}

// AutomateBooking runs the full sequence for one booking: fresh session,
// processing, navigate, pick date, pick slot, fill and submit, persist the
// captured slot time, completed. Any failure marks the record failed and
// propagates. The session is torn down no matter what.
func (s *BookingService) AutomateBooking(ctx context.Context, bookingID int64, calendlyURL string, details models.FormDetails) error {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	logger := s.logger.With().Int64("booking_id", bookingID).Str("booking_uuid", booking.UUID).Logger()
	start := time.Now()

	// Processing is marked before the session opens so a failed launch still
	// lands on a valid processing -> failed transition.
	if err := s.store.UpdateBookingStatus(ctx, bookingID, models.StatusProcessing); err != nil {
		logger.Error().Err(err).Msg("failed to mark booking processing")
		return err
	}
	booking.Status = models.StatusProcessing
	s.publishEvent(events.EventBookingProcessing, booking, "")
	logger.Info().Str("url", calendlyURL).Msg("booking automation started")

	session, err := s.sessions.NewAutomator(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open browser session")
		s.markFailed(ctx, booking, err)
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("failed to close browser session")
		}
	}()

	slot, err := s.runSteps(ctx, session, booking, calendlyURL, details)
	if err != nil {
		logger.Error().Err(err).Msg("booking automation failed")
		s.markFailed(ctx, booking, err)
		return err
	}

	// The slot time is persisted only when it was actually captured, and
	// before the record goes terminal.
	if !slot.StartTime.IsZero() {
		if err := s.store.UpdateBookedFor(ctx, bookingID, slot.StartTime); err != nil {
			logger.Error().Err(err).Msg("failed to persist booked slot time")
			s.markFailed(ctx, booking, err)
			return err
		}
		booking.BookedFor = &slot.StartTime
	}

	// A booking that cannot reach completed must not strand in processing
	// with booked_for set, so this write failure is terminal too.
	if err := s.store.UpdateBookingStatus(ctx, bookingID, models.StatusCompleted); err != nil {
		logger.Error().Err(err).Msg("failed to mark booking completed")
		s.markFailed(ctx, booking, err)
		return err
	}
	booking.Status = models.StatusCompleted

	s.setPhase(ctx, booking.UUID, models.PhaseDone)
	s.publishEvent(events.EventBookingCompleted, booking, "")
	metrics.IncBooking(models.StatusCompleted)
	metrics.ObserveAutomationDuration(time.Since(start))

	logger.Info().Time("booked_for", slot.StartTime).Dur("took", time.Since(start)).Msg("booking automation completed")
	return nil
}

func (s *BookingService) runSteps(
	ctx context.Context,
	session domain.Automator,
	booking *models.Booking,
	calendlyURL string,
	details models.FormDetails,
) (models.SelectedSlot, error) {
	var slot models.SelectedSlot

	s.setPhase(ctx, booking.UUID, models.PhaseNavigate)
	if err := session.Navigate(ctx, calendlyURL); err != nil {
		return slot, err
	}

	s.setPhase(ctx, booking.UUID, models.PhaseSelectDate)
	dateLabel, err := session.SelectDate(ctx)
	if err != nil {
		return slot, err
	}
	slot.DateLabel = dateLabel

	s.setPhase(ctx, booking.UUID, models.PhaseSelectTime)
	startTime, err := session.SelectTimeSlot(ctx, slot.DateLabel)
	if err != nil {
		return slot, err
	}
	slot.StartTime = startTime

	s.setPhase(ctx, booking.UUID, models.PhaseFillForm)
	if err := session.FillForm(ctx, details); err != nil {
		return slot, err
	}

	s.setPhase(ctx, booking.UUID, models.PhaseSubmit)
	if err := session.Submit(ctx); err != nil {
		return slot, err
	}

	return slot, nil
}

func (s *BookingService) markFailed(ctx context.Context, booking *models.Booking, cause error) {
	// Shutdown cancels the worker context mid-flight; the terminal status
	// still has to land, so the write runs on its own short deadline.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.store.UpdateBookingStatus(writeCtx, booking.ID, models.StatusFailed); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to mark booking failed")
		return
	}
	booking.Status = models.StatusFailed

	s.setPhase(writeCtx, booking.UUID, models.PhaseDone)
	s.publishEvent(events.EventBookingFailed, booking, cause.Error())
	metrics.IncBooking(models.StatusFailed)
}

func (s *BookingService) setPhase(ctx context.Context, bookingUUID, phase string) {
	if s.progress == nil {
		return
	}
	if err := s.progress.SetPhase(ctx, bookingUUID, phase); err != nil {
		s.logger.Warn().Err(err).Str("booking_uuid", bookingUUID).Msg("failed to record automation phase")
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, reason string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		BookingUUID: booking.UUID,
		Email:       booking.Email,
		Status:      booking.Status,
		BookedFor:   booking.BookedFor,
		Reason:      reason,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}
