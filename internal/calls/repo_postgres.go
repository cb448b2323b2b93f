package calls

import (
	"context"
	"fmt"
	"time"

	"delivery-dispatch/pkg/pagination"
	"delivery-dispatch/pkg/utils"
)

// PostgresRepo implements Repository over a pool or an open transaction.
type PostgresRepo struct {
	q utils.DBTX
}

func NewPostgresRepo(q utils.DBTX) *PostgresRepo { return &PostgresRepo{q: q} }

func (r *PostgresRepo) Append(ctx context.Context, rec Record) (Record, error) {
	if err := validate(rec); err != nil {
		return Record{}, err
	}
	if rec.Status == "" {
		rec.Status = StatusConnected
	}
	if rec.CallTime.IsZero() {
		rec.CallTime = time.Now().UTC()
	}

	const q = `
INSERT INTO call_logs (
  delivery_worker_id, client_number, order_id, call_time, call_status, call_duration, notes
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
RETURNING id
`
	err := r.q.QueryRowContext(ctx, q,
		rec.WorkerID,
		rec.ClientNumber,
		rec.OrderID,
		rec.CallTime,
		rec.Status,
		rec.DurationSeconds,
		rec.Notes,
	).Scan(&rec.ID)
	if err != nil {
		if constraint, ok := utils.UniqueViolation(err); ok && constraint == "call_logs_order_id_key" {
			return Record{}, ErrDuplicateOrderID
		}
		return Record{}, fmt.Errorf("insert call record: %w", err)
	}
	return rec, nil
}

const recordSelect = `
SELECT c.id, c.delivery_worker_id, w.name, c.client_number, c.order_id,
       c.call_time, c.call_status, c.call_duration, c.notes
FROM call_logs c
JOIN delivery_workers w ON w.id = c.delivery_worker_id
`

func (r *PostgresRepo) ListForWorker(ctx context.Context, workerID int64, p pagination.Params) (Page, error) {
	p = pagination.Normalize(p.Page, p.PerPage)

	const countQ = `SELECT count(*) FROM call_logs WHERE delivery_worker_id = $1`
	var total int
	if err := r.q.QueryRowContext(ctx, countQ, workerID).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count call records: %w", err)
	}

	const q = recordSelect + `
WHERE c.delivery_worker_id = $1
ORDER BY c.call_time DESC, c.id DESC
LIMIT $2 OFFSET $3
`
	items, err := r.query(ctx, q, workerID, p.PerPage, p.Offset())
	if err != nil {
		return Page{}, err
	}
	return newPage(items, total, p), nil
}

func (r *PostgresRepo) ListForWorkerBetween(ctx context.Context, workerID int64, from, to time.Time) ([]Record, error) {
	const q = recordSelect + `
WHERE c.delivery_worker_id = $1 AND c.call_time >= $2 AND c.call_time < $3
ORDER BY c.call_time DESC, c.id DESC
`
	return r.query(ctx, q, workerID, from, to)
}

func (r *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list call records: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID,
			&rec.WorkerID,
			&rec.WorkerName,
			&rec.ClientNumber,
			&rec.OrderID,
			&rec.CallTime,
			&rec.Status,
			&rec.DurationSeconds,
			&rec.Notes,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
