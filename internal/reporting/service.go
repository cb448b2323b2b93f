package reporting

import (
	"context"
	"errors"
	"time"

	"delivery-dispatch/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// CallSource is the slice of the call record store reporting reads from.
type CallSource interface {
	ListForWorkerBetween(ctx context.Context, workerID int64, from, to time.Time) ([]calls.Record, error)
}

type Service struct {
	calls CallSource
}

func NewService(src CallSource) *Service { return &Service{calls: src} }

func (s *Service) WorkerActivity(ctx context.Context, workerID int64, r TimeRange) (WorkerActivity, error) {
	if workerID <= 0 || !r.Valid() {
		return WorkerActivity{}, ErrInvalidRequest
	}
	if s.calls == nil {
		return WorkerActivity{}, errors.New("reporting: call source not configured")
	}

	rows, err := s.calls.ListForWorkerBetween(ctx, workerID, r.From, r.To)
	if err != nil {
		return WorkerActivity{}, err
	}

	out := WorkerActivity{WorkerID: workerID, Range: r}
	for i, rec := range rows {
		// rows arrive newest first
		if i == 0 {
			out.LastOrderID = rec.OrderID
		}
		out.TotalCalls++
		out.TotalDurationSeconds += rec.DurationSeconds
		switch rec.Status {
		case calls.StatusConnected, "":
			out.ConnectedCalls++
		case calls.StatusBusy:
			out.BusyCalls++
		case calls.StatusNoAnswer:
			out.NoAnswerCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

// DeliveriesToday counts every call allocated to the worker on the UTC day of now.
func (s *Service) DeliveriesToday(ctx context.Context, workerID int64, now time.Time) (int, error) {
	a, err := s.WorkerActivity(ctx, workerID, DayRange(now))
	if err != nil {
		return 0, err
	}
	return a.TotalCalls, nil
}
