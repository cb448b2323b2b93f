package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"delivery-dispatch/pkg/logger"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListForWorker(ctx context.Context, workerID int64, limit int) ([]Event, error)
}

var (
	_ Repository = (*MemoryRepo)(nil)
	_ Repository = (*PostgresRepo)(nil)
)

// Service records worker account actions.
//
// Audit is internal-only and callers treat it as best-effort: the Record
// helper logs failures instead of returning them.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.WorkerID <= 0 || !e.Type.Valid() {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends an event and swallows any failure after logging it.
// metadata is marshalled to JSON when non-nil.
func (s *Service) Record(ctx context.Context, workerID int64, typ EventType, ip, message string, metadata map[string]any) {
	if s == nil {
		return
	}
	e := Event{WorkerID: workerID, Type: typ, IPAddress: ip, Message: message}
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			e.Metadata = string(b)
		}
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed",
			slog.Int64("worker_id", workerID),
			slog.String("type", string(typ)),
			slog.Any("err", err),
		)
	}
}

func (s *Service) Recent(ctx context.Context, workerID int64, limit int) ([]Event, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.ListForWorker(ctx, workerID, limit)
}
