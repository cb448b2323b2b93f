package workers

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
// All mutations happen under one mutex, which makes ClaimNext and TryClaim atomic.
type MemoryRepo struct {
	mu     sync.Mutex
	byID   map[int64]*Worker
	nextID int64

	// Now stamps created_at/updated_at. Defaults to time.Now.
	Now func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[int64]*Worker{}, Now: time.Now}
}

func (r *MemoryRepo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

func (r *MemoryRepo) FindAvailable(ctx context.Context) (Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	best := r.nextAvailable()
	if best == nil {
		return Worker{}, ErrNoneAvailable
	}
	return clone(best), nil
}

func (r *MemoryRepo) ClaimNext(ctx context.Context, orderID string) (Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.nextAvailable()
	if w == nil {
		return Worker{}, ErrNoneAvailable
	}
	r.occupy(w, orderID)
	return clone(w), nil
}

// nextAvailable must be called with mu held.
func (r *MemoryRepo) nextAvailable() *Worker {
	var best *Worker
	for _, w := range r.byID {
		if !w.Available() {
			continue
		}
		if best == nil || lessRecentlyUpdated(w, best) {
			best = w
		}
	}
	return best
}

func lessRecentlyUpdated(a, b *Worker) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.ID < b.ID
}

func (r *MemoryRepo) TryClaim(ctx context.Context, id int64, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.byID[id]
	if !ok || !w.Available() {
		return false, nil
	}
	r.occupy(w, orderID)
	return true, nil
}

// ReleaseClaim undoes a ClaimNext or TryClaim that could not be completed.
// It only frees the worker if it still holds orderID, so a later assignment
// is never lost.
func (r *MemoryRepo) ReleaseClaim(ctx context.Context, id int64, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if w.CurrentOrderID == nil || *w.CurrentOrderID != orderID {
		return nil
	}
	r.release(w)
	return nil
}

func (r *MemoryRepo) MarkOccupied(ctx context.Context, id int64, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	r.occupy(w, orderID)
	return nil
}

func (r *MemoryRepo) MarkFree(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	r.release(w)
	return nil
}

func (r *MemoryRepo) occupy(w *Worker, orderID string) {
	id := orderID
	w.Status = StatusOccupied
	w.CurrentOrderID = &id
	w.UpdatedAt = r.now()
}

func (r *MemoryRepo) release(w *Worker) {
	w.Status = StatusFree
	w.CurrentOrderID = nil
	w.UpdatedAt = r.now()
}

func (r *MemoryRepo) Get(ctx context.Context, id int64) (Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.byID[id]
	if !ok {
		return Worker{}, ErrNotFound
	}
	return clone(w), nil
}

func (r *MemoryRepo) GetByPhone(ctx context.Context, phone string) (Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range r.byID {
		if w.Phone == phone {
			return clone(w), nil
		}
	}
	return Worker{}, ErrNotFound
}

func (r *MemoryRepo) Create(ctx context.Context, in NewWorker) (Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range r.byID {
		if w.Phone == in.Phone {
			return Worker{}, ErrPhoneTaken
		}
		if in.Email != nil && w.Email != nil && *w.Email == *in.Email {
			return Worker{}, ErrEmailTaken
		}
	}

	r.nextID++
	now := r.now()
	w := &Worker{
		ID:           r.nextID,
		Name:         in.Name,
		Phone:        in.Phone,
		Email:        copyString(in.Email),
		PasswordHash: in.PasswordHash,
		Status:       StatusFree,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[w.ID] = w
	return clone(w), nil
}

func (r *MemoryRepo) UpdateProfile(ctx context.Context, id int64, in ProfileUpdate) (Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.byID[id]
	if !ok {
		return Worker{}, ErrNotFound
	}
	if in.Email != nil && *in.Email != "" {
		for _, other := range r.byID {
			if other.ID != id && other.Email != nil && *other.Email == *in.Email {
				return Worker{}, ErrEmailTaken
			}
		}
	}
	if in.Name != nil {
		w.Name = *in.Name
	}
	if in.Email != nil {
		w.Email = NormalizeEmail(*in.Email)
	}
	w.UpdatedAt = r.now()
	return clone(w), nil
}

func (r *MemoryRepo) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range r.byID {
		if w.ID != exceptID && w.Email != nil && *w.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	w.PasswordHash = passwordHash
	w.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepo) SetDeliveriesToday(ctx context.Context, id int64, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	w.DeliveriesToday = n
	return nil
}

// SetActive toggles soft deactivation. Not part of Repository; used by tests
// and local seeding.
func (r *MemoryRepo) SetActive(id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	w.IsActive = active
	w.UpdatedAt = r.now()
	return nil
}

// Snapshot returns all workers ordered by id.
func (r *MemoryRepo) Snapshot() []Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Worker, 0, len(r.byID))
	for _, w := range r.byID {
		out = append(out, clone(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clone(w *Worker) Worker {
	out := *w
	out.Email = copyString(w.Email)
	out.CurrentOrderID = copyString(w.CurrentOrderID)
	return out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
