package models

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Automation phases recorded in the progress repository.
const (
	PhaseQueued     = "queued"
	PhaseNavigate   = "navigate"
	PhaseSelectDate = "select_date"
	PhaseSelectTime = "select_time"
	PhaseFillForm   = "fill_form"
	PhaseSubmit     = "submit"
	PhaseDone       = "done"
)

const (
	// MaxNotesLength is the ceiling the scheduling form enforces on notes.
	MaxNotesLength = 10000

	// DefaultProgressTTL lifetime of a progress record in Redis (seconds).
	DefaultProgressTTL = 24 * 60 * 60

	// DefaultQueueSize automation queue capacity.
	DefaultQueueSize = 64

	// DefaultWorkers concurrent browser sessions.
	DefaultWorkers = 2

	// DefaultMaxRetries per-step retry budget.
	DefaultMaxRetries = 3

	// RateLimitRequests intake requests per window per client.
	RateLimitRequests = 10

	// RateLimitWindow intake rate limit window in seconds.
	RateLimitWindow = 60
)

// ValidTransition reports whether a booking may move from one status to
// another. The lifecycle is strictly pending → processing → completed|failed.
func ValidTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}
