package domain

import (
	"context"
	"time"

	"calbook/internal/models"
)

// BookingStore owns booking persistence. Status updates enforce the
// pending → processing → completed|failed lifecycle.
type BookingStore interface {
	CreateBooking(ctx context.Context, email string) (*models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByUUID(ctx context.Context, uuid string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status string) error
	UpdateBookedFor(ctx context.Context, id int64, bookedFor time.Time) error
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
}

// Automator drives one browser session through the scheduling page. A fresh
// instance is created per booking and must be closed by the caller; no page
// state survives Close.
type Automator interface {
	Navigate(ctx context.Context, url string) error
	SelectDate(ctx context.Context) (string, error)
	SelectTimeSlot(ctx context.Context, dateLabel string) (time.Time, error)
	FillForm(ctx context.Context, details models.FormDetails) error
	Submit(ctx context.Context) error
	Close() error
}

// AutomatorFactory opens a new isolated browser session.
type AutomatorFactory interface {
	NewAutomator(ctx context.Context) (Automator, error)
}

// ProgressRepository tracks the last automation phase per booking so the API
// can expose in-flight progress.
type ProgressRepository interface {
	SetPhase(ctx context.Context, bookingUUID, phase string) error
	GetProgress(ctx context.Context, bookingUUID string) (*models.Progress, error)
	ClearProgress(ctx context.Context, bookingUUID string) error
	CheckRateLimit(ctx context.Context, clientKey string, limit int, window time.Duration) (bool, error)
}

// EventPublisher fans booking lifecycle events out to subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// BookingAutomator runs the full sequence for one booking. Implemented by the
// service layer, consumed by the worker pool.
type BookingAutomator interface {
	AutomateBooking(ctx context.Context, bookingID int64, calendlyURL string, details models.FormDetails) error
}

// Notifier delivers operator-facing messages about terminal bookings.
type Notifier interface {
	NotifyBookingCompleted(booking *models.Booking) error
	NotifyBookingFailed(booking *models.Booking, reason string) error
}
