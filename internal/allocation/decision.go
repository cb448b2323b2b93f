package allocation

import (
	"errors"

	"delivery-dispatch/internal/telephony"
)

var (
	// ErrValidation means the inbound call cannot be processed as sent.
	ErrValidation = errors.New("allocation: invalid inbound call")
	// ErrNotAvailable means no free, active worker could be claimed.
	ErrNotAvailable = errors.New("allocation: no worker available")
)

// Outcome classifies an allocation for logs and metrics.
type Outcome string

const (
	OutcomeConnected   Outcome = "connected"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeFailed      Outcome = "failed"
)

// Result is the outcome of one Allocate call.
//
// Response is always populated, including on error, so the caller never
// hears silence. Worker and order fields are set only when Outcome is
// OutcomeConnected.
type Result struct {
	Outcome  Outcome            `json:"outcome"`
	Response telephony.Response `json:"response"`

	WorkerID   int64  `json:"worker_id,omitempty"`
	WorkerName string `json:"worker_name,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	RecordID   int64  `json:"record_id,omitempty"`

	// Forwarded is false when the call was assigned but outbound dialing is
	// not configured.
	Forwarded bool `json:"forwarded"`
	// Attempts counts claim attempts, including lost races.
	Attempts int `json:"attempts"`
}
