package allocation

import (
	"context"
	"time"

	"delivery-dispatch/internal/calls"
	"delivery-dispatch/internal/telephony"
	"delivery-dispatch/internal/workers"
	"delivery-dispatch/pkg/metrics"
)

// DefaultMaxClaimAttempts bounds how often one call retries a claim that
// failed on an order id collision.
const DefaultMaxClaimAttempts = 16

// Store is the persistence the engine needs.
//
// ClaimNextAndRecord must be atomic: it takes the least recently updated
// free, active worker, moves it free -> occupied with OrderID and writes the
// call record, or does none of it. Concurrent callers each get a different
// worker. It returns workers.ErrNoneAvailable when nobody is free and
// calls.ErrDuplicateOrderID when the order id collided.
type Store interface {
	ClaimNextAndRecord(ctx context.Context, c Claim) (Assignment, error)
}

// Claim is one attempt to hand a call to the next free worker.
type Claim struct {
	OrderID      string
	ClientNumber string
	CallTime     time.Time
}

// Assignment is the worker a Claim landed on and the record written for it.
type Assignment struct {
	Worker workers.Worker
	Record calls.Record
}

// OrderIDSource mints assignment identifiers.
type OrderIDSource interface {
	Next() (string, error)
}

// Egress describes outbound call forwarding. Enabled requires the full set
// of provider credentials; CallerID is presented to the worker.
type Egress struct {
	Enabled  bool
	CallerID string
}

// Options tunes an Engine. Zero values fall back to defaults.
type Options struct {
	MaxClaimAttempts int
	OrderIDs         OrderIDSource
	Metrics          *metrics.Allocation
	Now              func() time.Time
}

// Engine turns an inbound call into a worker assignment and a telephony response.
//
// Selection, claim and record happen in this order:
//  1. reject blank callers without touching the store
//  2. mint an order id
//  3. claim the least recently updated free, active worker and write the
//     call record in one atomic unit
//  4. on an order id collision, go back to 2
type Engine struct {
	store       Store
	egress      Egress
	orderIDs    OrderIDSource
	metrics     *metrics.Allocation
	maxAttempts int
	now         func() time.Time
}

// NewEngine builds an Engine over store, filling unset options with defaults.
func NewEngine(store Store, egress Egress, opts Options) *Engine {
	e := &Engine{
		store:       store,
		egress:      egress,
		orderIDs:    opts.OrderIDs,
		metrics:     opts.Metrics,
		maxAttempts: opts.MaxClaimAttempts,
		now:         opts.Now,
	}
	if e.orderIDs == nil {
		e.orderIDs = calls.NewOrderIDGenerator()
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = DefaultMaxClaimAttempts
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// HandleInboundCall adapts the engine to the telephony webhook.
func (e *Engine) HandleInboundCall(ctx context.Context, call telephony.InboundCall) telephony.Response {
	res, _ := e.Allocate(ctx, call)
	return res.Response
}

var _ telephony.CallAllocator = (*Engine)(nil)
