package calls

import (
	"time"

	"delivery-dispatch/pkg/pagination"
)

// Record is one allocation of an inbound call to a worker.
//
// Records are append-only in the allocation flow. OrderID is the same
// identifier written to the worker's current_order_id when the call was placed.
type Record struct {
	ID           int64  `json:"id" db:"id"`
	WorkerID     int64  `json:"delivery_worker_id" db:"delivery_worker_id"`
	WorkerName   string `json:"delivery_worker_name" db:"-"`
	ClientNumber string `json:"client_number" db:"client_number"`
	OrderID      string `json:"order_id" db:"order_id"`

	CallTime time.Time `json:"call_time" db:"call_time"`
	Status   Status    `json:"call_status" db:"call_status"`

	// DurationSeconds stays 0 until a status callback reports it.
	DurationSeconds int    `json:"call_duration" db:"call_duration"`
	Notes           string `json:"notes,omitempty" db:"notes"`
}

type Status string

const (
	StatusConnected Status = "connected"
	StatusBusy      Status = "busy"
	StatusNoAnswer  Status = "no_answer"
	StatusFailed    Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusConnected, StatusBusy, StatusNoAnswer, StatusFailed:
		return true
	default:
		return false
	}
}

// Page is one page of a worker's call history, newest first.
type Page struct {
	Items []Record `json:"call_logs"`
	Total int      `json:"total"`
	Pages int      `json:"pages"`
	Page  int      `json:"current_page"`
}

func newPage(items []Record, total int, p pagination.Params) Page {
	if items == nil {
		items = []Record{}
	}
	return Page{Items: items, Total: total, Pages: p.Pages(total), Page: p.Page}
}
