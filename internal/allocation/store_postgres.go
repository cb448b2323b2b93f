package allocation

import (
	"context"
	"database/sql"

	"delivery-dispatch/internal/calls"
	"delivery-dispatch/internal/workers"
	"delivery-dispatch/pkg/utils"
)

// PostgresStore claims and records inside one transaction. The claim locks
// the selected row with SKIP LOCKED, so concurrent transactions move on to
// the next free worker and a rolled back record frees the worker again.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) ClaimNextAndRecord(ctx context.Context, c Claim) (Assignment, error) {
	var a Assignment
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		w, err := workers.NewPostgresRepo(tx).ClaimNext(ctx, c.OrderID)
		if err != nil {
			return err
		}

		rec, err := calls.NewPostgresRepo(tx).Append(ctx, newRecord(w, c))
		if err != nil {
			return err
		}
		a = Assignment{Worker: w, Record: rec}
		return nil
	})
	if err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func newRecord(w workers.Worker, c Claim) calls.Record {
	return calls.Record{
		WorkerID:     w.ID,
		WorkerName:   w.Name,
		ClientNumber: c.ClientNumber,
		OrderID:      c.OrderID,
		CallTime:     c.CallTime,
		Status:       calls.StatusConnected,
	}
}
