package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"calbook/internal/browser"
	"calbook/internal/domain"
	"calbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateBooking(ctx context.Context, email string) (*models.Booking, error) {
	args := m.Called(ctx, email)
	if b := args.Get(0); b != nil {
		return b.(*models.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if b := args.Get(0); b != nil {
		return b.(*models.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetBookingByUUID(ctx context.Context, uuid string) (*models.Booking, error) {
	args := m.Called(ctx, uuid)
	if b := args.Get(0); b != nil {
		return b.(*models.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockStore) UpdateBookedFor(ctx context.Context, id int64, bookedFor time.Time) error {
	return m.Called(ctx, id, bookedFor).Error(0)
}

func (m *mockStore) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, start, end)
	if b := args.Get(0); b != nil {
		return b.([]*models.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAutomator struct {
	mock.Mock
}

func (m *mockAutomator) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *mockAutomator) SelectDate(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockAutomator) SelectTimeSlot(ctx context.Context, dateLabel string) (time.Time, error) {
	args := m.Called(ctx, dateLabel)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *mockAutomator) FillForm(ctx context.Context, details models.FormDetails) error {
	return m.Called(ctx, details).Error(0)
}

func (m *mockAutomator) Submit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockAutomator) Close() error {
	return m.Called().Error(0)
}

type mockFactory struct {
	automator domain.Automator
	err       error
	calls     int
}

func (f *mockFactory) NewAutomator(ctx context.Context) (domain.Automator, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.automator, nil
}

// phaseRecorder captures every phase the sequencer reports.
type phaseRecorder struct {
	mu     sync.Mutex
	phases []string
}

func (r *phaseRecorder) SetPhase(ctx context.Context, bookingUUID, phase string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
	return nil
}

func (r *phaseRecorder) GetProgress(ctx context.Context, bookingUUID string) (*models.Progress, error) {
	return nil, nil
}

func (r *phaseRecorder) ClearProgress(ctx context.Context, bookingUUID string) error { return nil }

func (r *phaseRecorder) CheckRateLimit(ctx context.Context, clientKey string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func newTestService(store domain.BookingStore, factory domain.AutomatorFactory, progress domain.ProgressRepository) *BookingService {
	logger := zerolog.Nop()
	return NewBookingService(store, factory, progress, nil, &logger)
}

func pendingBooking() *models.Booking {
	return &models.Booking{
		ID:        1,
		UUID:      "uuid-1",
		Email:     "jane.doe@example.com",
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
	}
}

func TestAutomateBookingSuccess(t *testing.T) {
	ctx := context.Background()
	slot := time.Date(2026, time.May, 12, 15, 0, 0, 0, time.UTC)
	details := models.FormDetails{Name: "Jane Doe", Email: "jane.doe@example.com"}

	store := &mockStore{}
	store.On("GetBooking", ctx, int64(1)).Return(pendingBooking(), nil)
	store.On("UpdateBookingStatus", ctx, int64(1), models.StatusProcessing).Return(nil)
	store.On("UpdateBookedFor", ctx, int64(1), slot).Return(nil)
	store.On("UpdateBookingStatus", ctx, int64(1), models.StatusCompleted).Return(nil)

	session := &mockAutomator{}
	session.On("Navigate", ctx, "https://calendly.com/someone/30min").Return(nil)
	session.On("SelectDate", ctx).Return("Monday, May 12", nil)
	session.On("SelectTimeSlot", ctx, "Monday, May 12").Return(slot, nil)
	session.On("FillForm", ctx, details).Return(nil)
	session.On("Submit", ctx).Return(nil)
	session.On("Close").Return(nil)

	recorder := &phaseRecorder{}
	svc := newTestService(store, &mockFactory{automator: session}, recorder)

	err := svc.AutomateBooking(ctx, 1, "https://calendly.com/someone/30min", details)
	require.NoError(t, err)

	store.AssertExpectations(t)
	session.AssertExpectations(t)
	store.AssertNotCalled(t, "UpdateBookingStatus", mock.Anything, int64(1), models.StatusFailed)

	assert.Equal(t, []string{
		models.PhaseNavigate,
		models.PhaseSelectDate,
		models.PhaseSelectTime,
		models.PhaseFillForm,
		models.PhaseSubmit,
		models.PhaseDone,
	}, recorder.phases)
}

func TestAutomateBookingStepFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	stepErr := errors.New("no slots available")

	store := &mockStore{}
	store.On("GetBooking", ctx, int64(1)).Return(pendingBooking(), nil)
	store.On("UpdateBookingStatus", ctx, int64(1), models.StatusProcessing).Return(nil)
	store.On("UpdateBookingStatus", mock.Anything, int64(1), models.StatusFailed).Return(nil)

	session := &mockAutomator{}
	session.On("Navigate", ctx, mock.Anything).Return(nil)
	session.On("SelectDate", ctx).Return("", stepErr)
	session.On("Close").Return(nil)

	svc := newTestService(store, &mockFactory{automator: session}, &phaseRecorder{})

	err := svc.AutomateBooking(ctx, 1, "https://calendly.com/someone/30min", models.FormDetails{})
	assert.ErrorIs(t, err, stepErr)

	store.AssertExpectations(t)
	session.AssertExpectations(t)

	// The slot was never captured, so nothing gets persisted.
	store.AssertNotCalled(t, "UpdateBookedFor", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "UpdateBookingStatus", ctx, int64(1), models.StatusCompleted)
}

func TestAutomateBookingSessionAlwaysClosed(t *testing.T) {
	ctx := context.Background()

	store := &mockStore{}
	store.On("GetBooking", ctx, int64(1)).Return(pendingBooking(), nil)
	store.On("UpdateBookingStatus", ctx, int64(1), models.StatusProcessing).Return(nil)
	store.On("UpdateBookingStatus", mock.Anything, int64(1), models.StatusFailed).Return(nil)

	session := &mockAutomator{}
	session.On("Navigate", ctx, mock.Anything).Return(nil)
	session.On("SelectDate", ctx).Return("Monday, May 12", nil)
	session.On("SelectTimeSlot", ctx, "Monday, May 12").Return(time.Time{}, browser.ErrNoSlotsAvailable)
	session.On("Close").Return(nil)

	svc := newTestService(store, &mockFactory{automator: session}, &phaseRecorder{})

	err := svc.AutomateBooking(ctx, 1, "https://calendly.com/someone/30min", models.FormDetails{})
	assert.ErrorIs(t, err, browser.ErrNoSlotsAvailable)

	session.AssertCalled(t, "Close")
}

func TestAutomateBookingLaunchFailure(t *testing.T) {
	ctx := context.Background()
	launchErr := errors.New("chrome missing")

	store := &mockStore{}
	store.On("GetBooking", ctx, int64(1)).Return(pendingBooking(), nil)
	store.On("UpdateBookingStatus", ctx, int64(1), models.StatusProcessing).Return(nil)
	store.On("UpdateBookingStatus", mock.Anything, int64(1), models.StatusFailed).Return(nil)

	svc := newTestService(store, &mockFactory{err: launchErr}, &phaseRecorder{})

	err := svc.AutomateBooking(ctx, 1, "https://calendly.com/someone/30min", models.FormDetails{})
	assert.ErrorIs(t, err, launchErr)

	// Processing is recorded before the launch, so the failure still lands on
	// a valid transition.
	store.AssertExpectations(t)
}

func TestAutomateBookingCompletedWriteFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	slot := time.Date(2026, time.May, 12, 15, 0, 0, 0, time.UTC)
	writeErr := errors.New("database is locked")

	store := &mockStore{}
	store.On("GetBooking", ctx, int64(1)).Return(pendingBooking(), nil)
	store.On("UpdateBookingStatus", ctx, int64(1), models.StatusProcessing).Return(nil)
	store.On("UpdateBookedFor", ctx, int64(1), slot).Return(nil)
	store.On("UpdateBookingStatus", ctx, int64(1), models.StatusCompleted).Return(writeErr)
	store.On("UpdateBookingStatus", mock.Anything, int64(1), models.StatusFailed).Return(nil)

	session := &mockAutomator{}
	session.On("Navigate", ctx, mock.Anything).Return(nil)
	session.On("SelectDate", ctx).Return("Monday, May 12", nil)
	session.On("SelectTimeSlot", ctx, "Monday, May 12").Return(slot, nil)
	session.On("FillForm", ctx, mock.Anything).Return(nil)
	session.On("Submit", ctx).Return(nil)
	session.On("Close").Return(nil)

	svc := newTestService(store, &mockFactory{automator: session}, &phaseRecorder{})

	err := svc.AutomateBooking(ctx, 1, "https://calendly.com/someone/30min", models.FormDetails{})
	assert.ErrorIs(t, err, writeErr)

	// The record must not strand in processing with booked_for set.
	store.AssertExpectations(t)
}

func TestFailedStatusWriteSurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	launchErr := errors.New("chrome missing")

	store := &mockStore{}
	store.On("GetBooking", mock.Anything, int64(1)).Return(pendingBooking(), nil)
	store.On("UpdateBookingStatus", mock.Anything, int64(1), models.StatusProcessing).Return(nil)
	store.On("UpdateBookingStatus", mock.Anything, int64(1), models.StatusFailed).
		Run(func(args mock.Arguments) {
			// The terminal write runs on its own context, so shutdown
			// cancellation must not reach it.
			writeCtx := args.Get(0).(context.Context)
			assert.NoError(t, writeCtx.Err())
		}).
		Return(nil)

	svc := newTestService(store, &mockFactory{err: launchErr}, &phaseRecorder{})

	err := svc.AutomateBooking(ctx, 1, "https://calendly.com/someone/30min", models.FormDetails{})
	assert.ErrorIs(t, err, launchErr)
	store.AssertExpectations(t)
}

func TestAutomateBookingUnknownBooking(t *testing.T) {
	ctx := context.Background()
	notFound := errors.New("booking not found")

	store := &mockStore{}
	store.On("GetBooking", ctx, int64(42)).Return(nil, notFound)

	factory := &mockFactory{}
	svc := newTestService(store, factory, &phaseRecorder{})

	err := svc.AutomateBooking(ctx, 42, "https://calendly.com/someone/30min", models.FormDetails{})
	assert.ErrorIs(t, err, notFound)
	assert.Zero(t, factory.calls)
}

func TestCreateBookingPublishesAndQueuesPhase(t *testing.T) {
	ctx := context.Background()

	store := &mockStore{}
	store.On("CreateBooking", ctx, "jane@example.com").Return(pendingBooking(), nil)

	recorder := &phaseRecorder{}
	svc := newTestService(store, &mockFactory{}, recorder)

	booking, err := svc.CreateBooking(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Equal(t, []string{models.PhaseQueued}, recorder.phases)
}
