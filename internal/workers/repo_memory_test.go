package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock returns strictly increasing instants so updated_at ordering is deterministic.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func seed(t *testing.T, r *MemoryRepo, phones ...string) []Worker {
	t.Helper()
	out := make([]Worker, 0, len(phones))
	for i, p := range phones {
		w, err := r.Create(context.Background(), NewWorker{Name: "worker-" + string(rune('A'+i)), Phone: p, PasswordHash: "h"})
		require.NoError(t, err)
		out = append(out, w)
	}
	return out
}

func TestMemoryRepo_FindAvailable_LeastRecentlyUpdatedFirst(t *testing.T) {
	r := NewMemoryRepo()
	r.Now = steppingClock()
	ctx := context.Background()
	ws := seed(t, r, "+919000000001", "+919000000002", "+919000000003")

	got, err := r.FindAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, ws[0].ID, got.ID)

	// Read idempotence: no mutation, same answer.
	again, err := r.FindAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)

	// Touching the first worker pushes it to the back of the queue.
	require.NoError(t, r.MarkOccupied(ctx, ws[0].ID, "ORD1"))
	require.NoError(t, r.MarkFree(ctx, ws[0].ID))
	got, err = r.FindAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, ws[1].ID, got.ID)
}

func TestMemoryRepo_FindAvailable_TieBreaksOnID(t *testing.T) {
	r := NewMemoryRepo()
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return fixed }
	ws := seed(t, r, "+919000000001", "+919000000002")

	got, err := r.FindAvailable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ws[0].ID, got.ID)
}

func TestMemoryRepo_FindAvailable_SkipsInactiveAndOccupied(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	ws := seed(t, r, "+919000000001", "+919000000002")

	require.NoError(t, r.SetActive(ws[0].ID, false))
	require.NoError(t, r.MarkOccupied(ctx, ws[1].ID, "ORD1"))

	_, err := r.FindAvailable(ctx)
	assert.ErrorIs(t, err, ErrNoneAvailable)
}

func TestMemoryRepo_TryClaim(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	w := seed(t, r, "+919000000001")[0]

	ok, err := r.TryClaim(ctx, w.ID, "ORD1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.TryClaim(ctx, w.ID, "ORD2")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := r.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOccupied, got.Status)
	require.NotNil(t, got.CurrentOrderID)
	assert.Equal(t, "ORD1", *got.CurrentOrderID)

	ok, err = r.TryClaim(ctx, 999, "ORD3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRepo_TryClaim_SingleWinnerUnderContention(t *testing.T) {
	r := NewMemoryRepo()
	w := seed(t, r, "+919000000001")[0]

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.TryClaim(context.Background(), w.ID, "ORD")
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestMemoryRepo_ClaimNext_TakesLeastRecentlyUpdated(t *testing.T) {
	r := NewMemoryRepo()
	r.Now = steppingClock()
	ctx := context.Background()
	ws := seed(t, r, "+919000000001", "+919000000002")
	require.NoError(t, r.SetActive(ws[0].ID, false))
	require.NoError(t, r.SetActive(ws[0].ID, true))

	got, err := r.ClaimNext(ctx, "ORD1")
	require.NoError(t, err)
	assert.Equal(t, ws[1].ID, got.ID)
	assert.Equal(t, StatusOccupied, got.Status)
	require.NotNil(t, got.CurrentOrderID)
	assert.Equal(t, "ORD1", *got.CurrentOrderID)

	got, err = r.ClaimNext(ctx, "ORD2")
	require.NoError(t, err)
	assert.Equal(t, ws[0].ID, got.ID)

	_, err = r.ClaimNext(ctx, "ORD3")
	assert.ErrorIs(t, err, ErrNoneAvailable)
}

func TestMemoryRepo_ClaimNext_ConcurrentCallersGetDistinctWorkers(t *testing.T) {
	const k, callers = 32, 80
	r := NewMemoryRepo()
	phones := make([]string, k)
	for i := range phones {
		phones[i] = fmt.Sprintf("+91900000%04d", i+1)
	}
	seed(t, r, phones...)

	var (
		mu      sync.Mutex
		claimed = map[int64]int{}
		none    atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := r.ClaimNext(context.Background(), "ORD")
			if errors.Is(err, ErrNoneAvailable) {
				none.Add(1)
				return
			}
			mu.Lock()
			claimed[w.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, k)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "worker %d claimed %d times", id, n)
	}
	assert.EqualValues(t, callers-k, none.Load())
}

func TestMemoryRepo_ReleaseClaim_OnlyOwnOrder(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	w := seed(t, r, "+919000000001")[0]

	require.NoError(t, r.MarkOccupied(ctx, w.ID, "ORD-NEW"))
	require.NoError(t, r.ReleaseClaim(ctx, w.ID, "ORD-OLD"))

	got, _ := r.Get(ctx, w.ID)
	assert.Equal(t, StatusOccupied, got.Status)

	require.NoError(t, r.ReleaseClaim(ctx, w.ID, "ORD-NEW"))
	got, _ = r.Get(ctx, w.ID)
	assert.Equal(t, StatusFree, got.Status)
	assert.Nil(t, got.CurrentOrderID)
}

func TestMemoryRepo_MarkMissing(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	assert.ErrorIs(t, r.MarkFree(ctx, 1), ErrNotFound)
	assert.ErrorIs(t, r.MarkOccupied(ctx, 1, "ORD"), ErrNotFound)
	_, err := r.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepo_CreateRejectsDuplicates(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	email := "a@example.com"

	_, err := r.Create(ctx, NewWorker{Name: "A", Phone: "+919000000001", Email: &email, PasswordHash: "h"})
	require.NoError(t, err)

	_, err = r.Create(ctx, NewWorker{Name: "B", Phone: "+919000000001", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrPhoneTaken)

	_, err = r.Create(ctx, NewWorker{Name: "C", Phone: "+919000000002", Email: &email, PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestMemoryRepo_UpdateProfile(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	ws := seed(t, r, "+919000000001", "+919000000002")

	taken := "taken@example.com"
	_, err := r.UpdateProfile(ctx, ws[1].ID, ProfileUpdate{Email: &taken})
	require.NoError(t, err)

	_, err = r.UpdateProfile(ctx, ws[0].ID, ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	name := "Ravi"
	got, err := r.UpdateProfile(ctx, ws[1].ID, ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", got.Name)
	require.NotNil(t, got.Email)

	empty := ""
	got, err = r.UpdateProfile(ctx, ws[1].ID, ProfileUpdate{Email: &empty})
	require.NoError(t, err)
	assert.Nil(t, got.Email)
}

func TestMemoryRepo_ReturnsCopies(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	w := seed(t, r, "+919000000001")[0]
	require.NoError(t, r.MarkOccupied(ctx, w.ID, "ORD1"))

	got, _ := r.Get(ctx, w.ID)
	*got.CurrentOrderID = "tampered"

	again, _ := r.Get(ctx, w.ID)
	assert.Equal(t, "ORD1", *again.CurrentOrderID)
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidPhone("+919876543210"))
	assert.False(t, ValidPhone("+915876543210"))
	assert.False(t, ValidPhone("9876543210"))
	assert.False(t, ValidPhone("+9198765432101"))

	assert.True(t, ValidEmail("ravi.k@example.co.in"))
	assert.False(t, ValidEmail("ravi@"))

	assert.Nil(t, NormalizeEmail("  "))
	assert.Equal(t, "x@y.io", *NormalizeEmail(" x@y.io "))
}
