package allocation

import (
	"context"
	"fmt"

	"delivery-dispatch/internal/calls"
	"delivery-dispatch/internal/workers"
)

// MemoryStore composes the in-memory repos. Selection and claim are atomic
// under the worker repo's lock; if the record append then fails the claim is
// released, so no worker stays occupied without a record.
type MemoryStore struct {
	Workers *workers.MemoryRepo
	Calls   *calls.MemoryRepo
}

func NewMemoryStore(w *workers.MemoryRepo, c *calls.MemoryRepo) *MemoryStore {
	return &MemoryStore{Workers: w, Calls: c}
}

func (s *MemoryStore) ClaimNextAndRecord(ctx context.Context, c Claim) (Assignment, error) {
	w, err := s.Workers.ClaimNext(ctx, c.OrderID)
	if err != nil {
		return Assignment{}, err
	}

	rec, err := s.Calls.Append(ctx, newRecord(w, c))
	if err != nil {
		if relErr := s.Workers.ReleaseClaim(ctx, w.ID, c.OrderID); relErr != nil {
			return Assignment{}, fmt.Errorf("%w (release claim: %v)", err, relErr)
		}
		return Assignment{}, err
	}
	return Assignment{Worker: w, Record: rec}, nil
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
