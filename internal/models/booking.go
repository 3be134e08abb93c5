package models

import "time"

// Booking tracks one automation attempt from intake to terminal status.
type Booking struct {
	ID        int64      `json:"id"`
	UUID      string     `json:"uuid"`
	Email     string     `json:"email"`
	Status    string     `json:"status"` // pending, processing, completed, failed
	CreatedAt time.Time  `json:"created_at"`
	BookedFor *time.Time `json:"booked_for,omitempty"`
}

// BookingRequest is the intake payload.
type BookingRequest struct {
	Email       string   `json:"email"`
	CalendlyURL string   `json:"calendlyUrl"`
	GuestEmails []string `json:"guestEmails,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// FormDetails is what gets typed into the scheduling form. Derived once per
// booking attempt, never persisted.
type FormDetails struct {
	Name        string
	Email       string
	GuestEmails []string
	Notes       string
}

// SelectedSlot is the date/time pair captured from the page before the form
// is submitted. Lives only for the duration of one sequencer run.
type SelectedSlot struct {
	DateLabel string
	StartTime time.Time
}

// Progress is the last automation phase observed for an in-flight booking.
type Progress struct {
	BookingUUID string    `json:"booking_uuid"`
	Phase       string    `json:"phase"`
	UpdatedAt   time.Time `json:"updated_at"`
}
