package calls

import (
	"context"
	"sort"
	"sync"
	"time"

	"delivery-dispatch/pkg/pagination"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu      sync.Mutex
	records []Record
	orders  map[string]struct{}
	nextID  int64

	// FailAppend, when set, is returned by every Append.
	FailAppend error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{orders: map[string]struct{}{}}
}

func (r *MemoryRepo) Append(ctx context.Context, rec Record) (Record, error) {
	if err := validate(rec); err != nil {
		return Record{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailAppend != nil {
		return Record{}, r.FailAppend
	}
	if _, dup := r.orders[rec.OrderID]; dup {
		return Record{}, ErrDuplicateOrderID
	}
	if rec.Status == "" {
		rec.Status = StatusConnected
	}
	if rec.CallTime.IsZero() {
		rec.CallTime = time.Now().UTC()
	}
	r.nextID++
	rec.ID = r.nextID
	r.records = append(r.records, rec)
	r.orders[rec.OrderID] = struct{}{}
	return rec, nil
}

func (r *MemoryRepo) ListForWorker(ctx context.Context, workerID int64, p pagination.Params) (Page, error) {
	p = pagination.Normalize(p.Page, p.PerPage)
	all := r.filter(func(rec Record) bool { return rec.WorkerID == workerID })

	total := len(all)
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.PerPage
	if end > total {
		end = total
	}
	return newPage(all[start:end], total, p), nil
}

func (r *MemoryRepo) ListForWorkerBetween(ctx context.Context, workerID int64, from, to time.Time) ([]Record, error) {
	return r.filter(func(rec Record) bool {
		return rec.WorkerID == workerID && !rec.CallTime.Before(from) && rec.CallTime.Before(to)
	}), nil
}

// All returns every record, newest first.
func (r *MemoryRepo) All() []Record {
	return r.filter(func(Record) bool { return true })
}

func (r *MemoryRepo) filter(keep func(Record) bool) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0)
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CallTime.Equal(out[j].CallTime) {
			return out[i].CallTime.After(out[j].CallTime)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
