package audit

import (
	"context"
	"fmt"

	"delivery-dispatch/pkg/utils"
)

type PostgresRepo struct {
	q utils.DBTX
}

func NewPostgresRepo(q utils.DBTX) *PostgresRepo { return &PostgresRepo{q: q} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_events (id, worker_id, type, ip_address, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.WorkerID, string(e.Type), e.IPAddress, e.Message, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListForWorker(ctx context.Context, workerID int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, worker_id, type, ip_address, message, metadata, created_at
		FROM audit_events
		WHERE worker_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e   Event
			typ string
		)
		if err := rows.Scan(&e.ID, &e.WorkerID, &typ, &e.IPAddress, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
