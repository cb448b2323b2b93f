package calls

import (
	"context"
	"errors"
	"time"

	"delivery-dispatch/pkg/pagination"
)

var (
	ErrDuplicateOrderID = errors.New("calls: order id already recorded")
	ErrInvalidRecord    = errors.New("calls: invalid record")
)

// Repository is the call record store. Records are insert-only.
type Repository interface {
	Append(ctx context.Context, rec Record) (Record, error)
	// ListForWorker pages a worker's history ordered by call_time DESC, id DESC.
	ListForWorker(ctx context.Context, workerID int64, p pagination.Params) (Page, error)
	// ListForWorkerBetween returns records with from <= call_time < to, newest first.
	ListForWorkerBetween(ctx context.Context, workerID int64, from, to time.Time) ([]Record, error)
}

func validate(rec Record) error {
	if rec.WorkerID <= 0 || rec.ClientNumber == "" || rec.OrderID == "" {
		return ErrInvalidRecord
	}
	if rec.Status != "" && !rec.Status.Valid() {
		return ErrInvalidRecord
	}
	return nil
}

var (
	_ Repository = (*PostgresRepo)(nil)
	_ Repository = (*MemoryRepo)(nil)
)
