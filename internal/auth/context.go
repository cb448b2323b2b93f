package auth

import (
	"context"
	"errors"
	"time"
)

type ctxKey int

const (
	ctxWorkerID ctxKey = iota
	ctxTokenID
	ctxTokenExpiry
)

var ErrNoIdentity = errors.New("auth: worker_id not in context")

// WithIdentity records the acting worker and the token that authenticated it.
func WithIdentity(ctx context.Context, c Claims) context.Context {
	ctx = context.WithValue(ctx, ctxWorkerID, c.WorkerID)
	ctx = context.WithValue(ctx, ctxTokenID, c.ID)
	if c.ExpiresAt != nil {
		ctx = context.WithValue(ctx, ctxTokenExpiry, c.ExpiresAt.Time)
	}
	return ctx
}

// WithWorkerID sets only the acting worker. Used by tests and internal callers.
func WithWorkerID(ctx context.Context, workerID int64) context.Context {
	return context.WithValue(ctx, ctxWorkerID, workerID)
}

func WorkerID(ctx context.Context) (int64, error) {
	if id, ok := ctx.Value(ctxWorkerID).(int64); ok && id > 0 {
		return id, nil
	}
	return 0, ErrNoIdentity
}

// TokenID returns the jti and expiry of the access token on this request.
func TokenID(ctx context.Context) (string, time.Time, bool) {
	jti, _ := ctx.Value(ctxTokenID).(string)
	exp, _ := ctx.Value(ctxTokenExpiry).(time.Time)
	return jti, exp, jti != ""
}
