package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"delivery-dispatch/internal/calls"
	"delivery-dispatch/internal/telephony"
	"delivery-dispatch/internal/workers"
	"delivery-dispatch/pkg/logger"
)

// Allocate assigns call to a free worker.
//
// Errors are classified with errors.Is: ErrValidation for a blank caller,
// ErrNotAvailable when no worker is free, anything else is a persistence or
// configuration failure. Result.Response is valid in every case.
func (e *Engine) Allocate(ctx context.Context, call telephony.InboundCall) (Result, error) {
	start := time.Now()
	log := logger.From(ctx).With("caller", call.From, "call_sid", call.ProviderCallID)

	res, err := e.allocate(ctx, call, log)

	e.metrics.Observe(string(res.Outcome), time.Since(start))
	switch {
	case err == nil:
		log.Info("call allocated",
			"outcome", res.Outcome,
			"worker_id", res.WorkerID,
			"order_id", res.OrderID,
			"forwarded", res.Forwarded,
			"attempts", res.Attempts,
		)
	case errors.Is(err, ErrValidation):
		log.Warn("call rejected", "outcome", res.Outcome, "err", err)
	case errors.Is(err, ErrNotAvailable):
		log.Info("no worker available", "outcome", res.Outcome, "attempts", res.Attempts, "err", err)
	default:
		log.Error("call allocation failed",
			"outcome", res.Outcome,
			"worker_id", res.WorkerID,
			"order_id", res.OrderID,
			"err", err,
		)
	}
	return res, err
}

func (e *Engine) allocate(ctx context.Context, call telephony.InboundCall, log *slog.Logger) (Result, error) {
	from := strings.TrimSpace(call.From)
	if from == "" {
		return Result{
			Outcome:  OutcomeInvalid,
			Response: telephony.SayResponse(telephony.PromptMissingCaller),
		}, fmt.Errorf("%w: caller number not provided", ErrValidation)
	}
	if e.store == nil {
		return failed(Result{}), errors.New("allocation: store not configured")
	}

	var (
		res     Result
		lastErr error
	)
	for res.Attempts < e.maxAttempts {
		res.Attempts++

		orderID, err := e.orderIDs.Next()
		if err != nil {
			return failed(res), fmt.Errorf("allocation: order id: %w", err)
		}

		a, err := e.store.ClaimNextAndRecord(ctx, Claim{
			OrderID:      orderID,
			ClientNumber: from,
			CallTime:     e.now().UTC(),
		})
		switch {
		case err == nil:
			return e.connected(res, a), nil
		case errors.Is(err, workers.ErrNoneAvailable):
			return unavailable(res), ErrNotAvailable
		case errors.Is(err, calls.ErrDuplicateOrderID), errors.Is(err, workers.ErrClaimConflict):
			e.metrics.IncConflict()
			log.Debug("claim lost, retrying", "order_id", orderID, "attempt", res.Attempts, "err", err)
			lastErr = err
			continue
		default:
			res.OrderID = orderID
			return failed(res), fmt.Errorf("allocation: claim worker: %w", err)
		}
	}

	return failed(res), fmt.Errorf("allocation: gave up after %d claim attempts: %w", res.Attempts, lastErr)
}

func (e *Engine) connected(res Result, a Assignment) Result {
	w, rec := a.Worker, a.Record
	res.Outcome = OutcomeConnected
	res.WorkerID = w.ID
	res.WorkerName = w.Name
	res.OrderID = rec.OrderID
	res.RecordID = rec.ID

	resp := telephony.SayResponse(telephony.PromptConnecting(w.Name))
	if e.egress.Enabled {
		resp = resp.Dial(w.Phone, e.egress.CallerID)
		res.Forwarded = true
	} else {
		resp = resp.Say(telephony.PromptForwardingNotConfigured)
	}
	res.Response = resp
	return res
}

func unavailable(res Result) Result {
	res.Outcome = OutcomeUnavailable
	res.Response = telephony.SayResponse(telephony.PromptAllBusy)
	return res
}

func failed(res Result) Result {
	res.Outcome = OutcomeFailed
	res.Response = telephony.SayResponse(telephony.PromptProcessingError)
	return res
}
