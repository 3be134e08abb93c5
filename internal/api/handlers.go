package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"calbook/internal/database"
	"calbook/internal/metrics"
	"calbook/internal/models"
	"calbook/internal/service"
	"calbook/internal/worker"
)

// handleCreateBooking accepts an intake request, persists the pending record
// and queues the automation. The response carries the record before the
// browser does anything; callers poll the status endpoints.
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("create_booking")

	var req models.BookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if msg := validateBookingRequest(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	// Intake has its own tighter quota on top of the per-key limiter; each
	// accepted request costs a browser session.
	if s.progress != nil {
		clientKey := s.auth.clientKey(r)
		allowed, err := s.progress.CheckRateLimit(r.Context(), "intake:"+clientKey, models.RateLimitRequests, models.RateLimitWindow*time.Second)
		if err != nil {
			s.logger.Warn().Err(err).Msg("intake rate limit check failed")
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, "intake rate limit exceeded")
			return
		}
	}

	booking, err := s.bookings.CreateBooking(r.Context(), req.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create booking record")
		writeError(w, http.StatusInternalServerError, "failed to create booking")
		return
	}

	job := worker.Job{
		BookingID:   booking.ID,
		BookingUUID: booking.UUID,
		CalendlyURL: req.CalendlyURL,
		Details:     service.BuildFormDetails(req.Email, req.GuestEmails, req.Notes),
	}
	if err := s.pool.Enqueue(job); err != nil {
		if errors.Is(err, worker.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "automation queue is full, try again later")
			return
		}
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to enqueue booking")
		writeError(w, http.StatusInternalServerError, "failed to queue booking")
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

func validateBookingRequest(req *models.BookingRequest) string {
	req.Email = strings.TrimSpace(req.Email)
	req.CalendlyURL = strings.TrimSpace(req.CalendlyURL)

	if req.Email == "" {
		return "email is required"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "invalid email address"
	}
	if req.CalendlyURL == "" {
		return "calendlyUrl is required"
	}
	if u, err := url.Parse(req.CalendlyURL); err != nil || u.Scheme == "" || u.Host == "" {
		return "calendlyUrl must be an absolute URL"
	}
	for _, guest := range req.GuestEmails {
		guest = strings.TrimSpace(guest)
		if guest == "" {
			continue
		}
		if _, err := mail.ParseAddress(guest); err != nil {
			return "invalid guest email address: " + guest
		}
	}
	if len(req.Notes) > models.MaxNotesLength {
		return "notes exceed the maximum length"
	}
	return ""
}

// handleBookingByUUID serves GET /api/v1/bookings/{uuid} and
// GET /api/v1/bookings/{uuid}/progress.
func (s *HTTPServer) handleBookingByUUID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const prefix = "/api/v1/bookings/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	bookingUUID, sub, _ := strings.Cut(rest, "/")
	bookingUUID = strings.TrimSpace(bookingUUID)
	if bookingUUID == "" {
		writeError(w, http.StatusBadRequest, "booking uuid is required")
		return
	}

	switch sub {
	case "":
		metrics.IncHTTP("get_booking")
		s.serveBooking(w, r, bookingUUID)
	case "progress":
		metrics.IncHTTP("get_progress")
		s.serveProgress(w, r, bookingUUID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) serveBooking(w http.ResponseWriter, r *http.Request, bookingUUID string) {
	booking, err := s.bookings.GetBookingByUUID(r.Context(), bookingUUID)
	if err != nil {
		if errors.Is(err, database.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		s.logger.Error().Err(err).Str("booking_uuid", bookingUUID).Msg("failed to load booking")
		writeError(w, http.StatusInternalServerError, "failed to load booking")
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) serveProgress(w http.ResponseWriter, r *http.Request, bookingUUID string) {
	booking, err := s.bookings.GetBookingByUUID(r.Context(), bookingUUID)
	if err != nil {
		if errors.Is(err, database.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		s.logger.Error().Err(err).Str("booking_uuid", bookingUUID).Msg("failed to load booking")
		writeError(w, http.StatusInternalServerError, "failed to load booking")
		return
	}

	progress, err := s.bookings.GetProgress(r.Context(), bookingUUID)
	if err != nil {
		s.logger.Warn().Err(err).Str("booking_uuid", bookingUUID).Msg("failed to load progress")
	}

	resp := map[string]any{
		"uuid":   booking.UUID,
		"status": booking.Status,
	}
	if progress != nil {
		resp["phase"] = progress.Phase
		resp["updated_at"] = progress.UpdatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleExport renders bookings in a date range as an xlsx download.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("export_bookings")

	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "exports are not configured")
		return
	}

	end := time.Now()
	start := end.AddDate(0, 0, -30)

	if raw := strings.TrimSpace(r.URL.Query().Get("start")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start date; expected YYYY-MM-DD")
			return
		}
		start = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("end")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end date; expected YYYY-MM-DD")
			return
		}
		// Inclusive end of day.
		end = parsed.AddDate(0, 0, 1).Add(-time.Second)
	}

	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end date is before start date")
		return
	}

	bookings, err := s.bookings.GetBookingsByDateRange(r.Context(), start, end)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load bookings for export")
		writeError(w, http.StatusInternalServerError, "failed to load bookings")
		return
	}

	filePath, err := s.exporter.ExportBookings(bookings, start, end)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build export file")
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=bookings.xlsx")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, filePath)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
