package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"delivery-dispatch/pkg/utils"
)

// PostgresRepo implements Repository on database/sql.
// It runs against either a pool or a transaction, so the allocation flow can
// claim a worker and write the call record in one unit.
type PostgresRepo struct {
	q utils.DBTX
}

func NewPostgresRepo(q utils.DBTX) *PostgresRepo { return &PostgresRepo{q: q} }

const workerColumns = `
id, name, phone, email, password_hash, status, current_order_id,
deliveries_today, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorker(row rowScanner) (Worker, error) {
	var w Worker
	if err := row.Scan(
		&w.ID,
		&w.Name,
		&w.Phone,
		&w.Email,
		&w.PasswordHash,
		&w.Status,
		&w.CurrentOrderID,
		&w.DeliveriesToday,
		&w.IsActive,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Worker{}, ErrNotFound
		}
		return Worker{}, err
	}
	return w, nil
}

func (r *PostgresRepo) FindAvailable(ctx context.Context) (Worker, error) {
	const q = `
SELECT` + workerColumns + `
FROM delivery_workers
WHERE status = 'free' AND is_active
ORDER BY updated_at ASC, id ASC
LIMIT 1
`
	w, err := scanWorker(r.q.QueryRowContext(ctx, q))
	if errors.Is(err, ErrNotFound) {
		return Worker{}, ErrNoneAvailable
	}
	return w, err
}

func (r *PostgresRepo) ClaimNext(ctx context.Context, orderID string) (Worker, error) {
	// SKIP LOCKED hands each concurrent claimer a different row instead of
	// queueing them all on the head of the list.
	const q = `
UPDATE delivery_workers
SET status = 'occupied', current_order_id = $1, updated_at = now()
WHERE id = (
    SELECT id
    FROM delivery_workers
    WHERE status = 'free' AND is_active
    ORDER BY updated_at ASC, id ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING` + workerColumns
	w, err := scanWorker(r.q.QueryRowContext(ctx, q, orderID))
	switch {
	case errors.Is(err, ErrNotFound):
		return Worker{}, ErrNoneAvailable
	case err != nil:
		return Worker{}, fmt.Errorf("claim next worker: %w", err)
	}
	return w, nil
}

func (r *PostgresRepo) TryClaim(ctx context.Context, id int64, orderID string) (bool, error) {
	// Row lock on UPDATE serializes racing claims; the loser re-evaluates the
	// WHERE clause after the winner commits and matches zero rows.
	const q = `
UPDATE delivery_workers
SET status = 'occupied', current_order_id = $2, updated_at = now()
WHERE id = $1 AND status = 'free' AND is_active
`
	n, err := execRows(ctx, r.q, q, id, orderID)
	if err != nil {
		return false, fmt.Errorf("claim worker %d: %w", id, err)
	}
	return n == 1, nil
}

func (r *PostgresRepo) MarkOccupied(ctx context.Context, id int64, orderID string) error {
	const q = `
UPDATE delivery_workers
SET status = 'occupied', current_order_id = $2, updated_at = now()
WHERE id = $1
`
	return r.execOne(ctx, q, id, orderID)
}

func (r *PostgresRepo) MarkFree(ctx context.Context, id int64) error {
	const q = `
UPDATE delivery_workers
SET status = 'free', current_order_id = NULL, updated_at = now()
WHERE id = $1
`
	return r.execOne(ctx, q, id)
}

func (r *PostgresRepo) Get(ctx context.Context, id int64) (Worker, error) {
	const q = `SELECT` + workerColumns + ` FROM delivery_workers WHERE id = $1`
	return scanWorker(r.q.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) GetByPhone(ctx context.Context, phone string) (Worker, error) {
	const q = `SELECT` + workerColumns + ` FROM delivery_workers WHERE phone = $1`
	return scanWorker(r.q.QueryRowContext(ctx, q, phone))
}

func (r *PostgresRepo) Create(ctx context.Context, in NewWorker) (Worker, error) {
	const q = `
INSERT INTO delivery_workers (name, phone, email, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING` + workerColumns
	w, err := scanWorker(r.q.QueryRowContext(ctx, q, in.Name, in.Phone, in.Email, in.PasswordHash))
	if err != nil {
		return Worker{}, mapUniqueViolation(err)
	}
	return w, nil
}

func (r *PostgresRepo) UpdateProfile(ctx context.Context, id int64, in ProfileUpdate) (Worker, error) {
	// $3 distinguishes "email not provided" from "clear email".
	const q = `
UPDATE delivery_workers
SET name = COALESCE($2, name),
    email = CASE WHEN $3 THEN NULLIF($4, '') ELSE email END,
    updated_at = now()
WHERE id = $1
RETURNING` + workerColumns
	var email string
	if in.Email != nil {
		email = *in.Email
	}
	w, err := scanWorker(r.q.QueryRowContext(ctx, q, id, in.Name, in.Email != nil, email))
	if err != nil {
		return Worker{}, mapUniqueViolation(err)
	}
	return w, nil
}

func (r *PostgresRepo) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM delivery_workers WHERE email = $1 AND id <> $2)`
	var taken bool
	if err := r.q.QueryRowContext(ctx, q, email, exceptID).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

func (r *PostgresRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const q = `UPDATE delivery_workers SET password_hash = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, q, id, passwordHash)
}

func (r *PostgresRepo) SetDeliveriesToday(ctx context.Context, id int64, n int) error {
	// Leaves updated_at alone so the counter refresh does not reorder allocation.
	const q = `UPDATE delivery_workers SET deliveries_today = $2 WHERE id = $1`
	return r.execOne(ctx, q, id, n)
}

func (r *PostgresRepo) execOne(ctx context.Context, q string, args ...any) error {
	n, err := execRows(ctx, r.q, q, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func execRows(ctx context.Context, db utils.DBTX, q string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func mapUniqueViolation(err error) error {
	constraint, ok := utils.UniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case "delivery_workers_phone_key":
		return ErrPhoneTaken
	case "delivery_workers_email_key":
		return ErrEmailTaken
	default:
		return err
	}
}
