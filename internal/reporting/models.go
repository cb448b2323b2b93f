package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Valid reports whether the range is non-empty and bounded on both ends.
func (r TimeRange) Valid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

// DayRange returns the UTC calendar day containing t.
func DayRange(t time.Time) TimeRange {
	u := t.UTC()
	from := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return TimeRange{From: from, To: from.AddDate(0, 0, 1)}
}

// WorkerActivity aggregates one worker's allocated calls over a window.
type WorkerActivity struct {
	WorkerID int64     `json:"delivery_worker_id"`
	Range    TimeRange `json:"range"`

	TotalCalls     int `json:"total_calls"`
	ConnectedCalls int `json:"connected_calls"`
	BusyCalls      int `json:"busy_calls"`
	NoAnswerCalls  int `json:"no_answer_calls"`
	FailedCalls    int `json:"failed_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// LastOrderID is the order of the newest call in the window, if any.
	LastOrderID string `json:"last_order_id,omitempty"`
}
