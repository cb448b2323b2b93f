package workers

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("workers: not found")
	ErrNoneAvailable = errors.New("workers: no worker available")
	ErrClaimConflict = errors.New("workers: worker was claimed concurrently")
	ErrPhoneTaken    = errors.New("workers: phone already registered")
	ErrEmailTaken    = errors.New("workers: email already registered")
	ErrInvalidInput  = errors.New("workers: invalid input")
)

// Repository is the worker directory.
//
// ClaimNext and TryClaim are the only paths that move a worker to occupied
// without a lost update: each is a single conditional write that succeeds
// for at most one concurrent caller.
type Repository interface {
	// FindAvailable returns the free, active worker that was least recently
	// updated (ties broken by lowest id), or ErrNoneAvailable.
	FindAvailable(ctx context.Context) (Worker, error)
	// ClaimNext selects the worker FindAvailable would return and marks it
	// occupied with orderID in the same step. Concurrent callers never get
	// the same worker. It returns the claimed worker or ErrNoneAvailable.
	ClaimNext(ctx context.Context, orderID string) (Worker, error)
	// TryClaim marks the worker occupied with orderID only if it is still
	// free and active. It reports whether this call won the claim.
	TryClaim(ctx context.Context, id int64, orderID string) (bool, error)

	MarkOccupied(ctx context.Context, id int64, orderID string) error
	MarkFree(ctx context.Context, id int64) error

	Get(ctx context.Context, id int64) (Worker, error)
	GetByPhone(ctx context.Context, phone string) (Worker, error)
	Create(ctx context.Context, in NewWorker) (Worker, error)
	UpdateProfile(ctx context.Context, id int64, in ProfileUpdate) (Worker, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetDeliveriesToday(ctx context.Context, id int64, n int) error
}

var (
	_ Repository = (*PostgresRepo)(nil)
	_ Repository = (*MemoryRepo)(nil)
)
