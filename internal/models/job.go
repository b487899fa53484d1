package models

import "time"

// Job kinds handled by the recompute processor.
const (
	JobKindRecompute = "recompute"
	JobKindImport    = "import"
	JobKindScheduled = "scheduled"
)

// RecomputeJob asks for rollups of the given months followed by a
// year-to-date pass over the whole year of one city.
type RecomputeJob struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	City     string    `json:"city"`
	Year     int       `json:"year"`
	Months   []int     `json:"months"`
	Location string    `json:"location,omitempty"`
	QueuedAt time.Time `json:"queued_at"`
}

// AllMonths returns 1..12.
func AllMonths() []int {
	months := make([]int, 12)
	for i := range months {
		months[i] = i + 1
	}
	return months
}
