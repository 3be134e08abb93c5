package browser

import "errors"

var (
	// ErrSessionClosed is returned when a step runs before the session is
	// initialized or after Close.
	ErrSessionClosed = errors.New("browser session is not initialized")

	// ErrNoSlotsAvailable means the page showed no selectable date or time.
	ErrNoSlotsAvailable = errors.New("no available slots found")

	// ErrMalformedSlotTime means the captured start-time text did not parse.
	ErrMalformedSlotTime = errors.New("slot time does not match expected format")

	// ErrNotesTooLong means the notes exceed the form's length ceiling.
	ErrNotesTooLong = errors.New("notes exceed maximum length")
)
