package settlement

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// WaitOutcome is the terminal result of a settlement wait
type WaitOutcome string

const (
	// OutcomeFulfilled means destination-side funds landed with the recipient
	OutcomeFulfilled WaitOutcome = "FULFILLED"
	// OutcomeExecuted means the transfer was processed without a fulfillment
	// signal and the caller opted to accept that as sufficient proof
	OutcomeExecuted WaitOutcome = "EXECUTED"
	// OutcomeTimedOut means no satisfactory state was observed within the
	// timeout budget
	OutcomeTimedOut WaitOutcome = "TIMED_OUT"
)

// WaitOptions bounds a single settlement wait
type WaitOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration

	// AcceptExecuted treats executed-without-fulfilled as a terminal success.
	// Policy-dependent; defaults to off.
	AcceptExecuted bool
}

// WaitResult is the outcome of one settlement wait
type WaitResult struct {
	Outcome    WaitOutcome
	ObservedAt time.Time
	Status     TransferStatus
}

// Progress is emitted on every poll tick for external observers. It is a side
// channel, not part of the wait contract.
type Progress struct {
	TransferRef string
	Elapsed     time.Duration
	Executed    bool
	Fulfilled   bool
}

// StatusSource is the settlement status query the watcher polls. *Client
// implements it.
type StatusSource interface {
	Status(ctx context.Context, transferRef string) (*TransferStatus, error)
}

// Watcher polls the settlement system until a transfer reaches a terminal
// state or the timeout budget is spent
type Watcher struct {
	source     StatusSource
	logger     *zap.Logger
	onProgress func(Progress)
}

// NewWatcher creates a new transfer watcher. onProgress may be nil.
func NewWatcher(source StatusSource, logger *zap.Logger, onProgress func(Progress)) *Watcher {
	return &Watcher{
		source:     source,
		logger:     logger.Named("watcher"),
		onProgress: onProgress,
	}
}

// Await polls the status of transferRef at opts.PollInterval until it is
// fulfilled (or executed, when opts.AcceptExecuted is set) or opts.Timeout
// elapses. An already-terminal first observation returns immediately without
// sleeping.
//
// Status flags are merged monotonically across polls: a stale response can
// never regress an executed/fulfilled flag that was already observed true.
// Transient query errors are tolerated and retried within the timeout budget;
// only context cancellation produces a non-nil error.
func (w *Watcher) Await(ctx context.Context, transferRef string, opts WaitOptions) (*WaitResult, error) {
	started := time.Now()
	deadline := started.Add(opts.Timeout)

	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	// Best status observed so far. Flags only ever go from false to true.
	best := TransferStatus{}

	for {
		status, err := w.source.Status(waitCtx, transferRef)
		if err != nil {
			var qErr *QueryError
			if !errors.As(err, &qErr) && waitCtx.Err() == nil {
				// Non-transient query errors are still not terminal for the
				// wait; the timeout budget is the only hard failure.
				w.logger.Warn("Unexpected status query error",
					zap.String("transfer_ref", transferRef),
					zap.Error(err))
			} else {
				w.logger.Debug("Transient settlement query failure",
					zap.String("transfer_ref", transferRef),
					zap.Error(err))
			}
		} else {
			best = merge(best, *status)
		}

		elapsed := time.Since(started)
		w.emitProgress(transferRef, elapsed, best)

		if best.Fulfilled {
			w.logger.Info("Transfer fulfilled",
				zap.String("transfer_ref", transferRef),
				zap.Duration("elapsed", elapsed))
			return &WaitResult{Outcome: OutcomeFulfilled, ObservedAt: time.Now(), Status: best}, nil
		}

		if best.Executed && opts.AcceptExecuted {
			w.logger.Info("Transfer executed, accepted as settlement proof",
				zap.String("transfer_ref", transferRef),
				zap.Duration("elapsed", elapsed))
			return &WaitResult{Outcome: OutcomeExecuted, ObservedAt: time.Now(), Status: best}, nil
		}

		if time.Now().After(deadline) {
			return w.timedOut(ctx, transferRef, started, best)
		}

		select {
		case <-waitCtx.Done():
			// Deadline exhaustion is a TimedOut result, not an error. A
			// cancelled parent context is the caller aborting the wait.
			if ctx.Err() != nil {
				w.logger.Info("Settlement wait cancelled",
					zap.String("transfer_ref", transferRef))
				return nil, ctx.Err()
			}
			return w.timedOut(ctx, transferRef, started, best)
		case <-time.After(opts.PollInterval):
		}
	}
}

func (w *Watcher) timedOut(ctx context.Context, transferRef string, started time.Time, best TransferStatus) (*WaitResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	w.logger.Warn("Settlement wait timed out",
		zap.String("transfer_ref", transferRef),
		zap.Duration("elapsed", time.Since(started)),
		zap.Bool("executed", best.Executed),
		zap.Bool("fulfilled", best.Fulfilled))
	return &WaitResult{Outcome: OutcomeTimedOut, ObservedAt: time.Now(), Status: best}, nil
}

func (w *Watcher) emitProgress(transferRef string, elapsed time.Duration, best TransferStatus) {
	if w.onProgress == nil {
		return
	}
	w.onProgress(Progress{
		TransferRef: transferRef,
		Elapsed:     elapsed,
		Executed:    best.Executed,
		Fulfilled:   best.Fulfilled,
	})
}

// merge keeps the most terminal view of the transfer across polls
func merge(best, next TransferStatus) TransferStatus {
	merged := next
	merged.Executed = best.Executed || next.Executed
	merged.Fulfilled = best.Fulfilled || next.Fulfilled
	if merged.Recipient == "" {
		merged.Recipient = best.Recipient
	}
	if merged.AmountIn.IsNil() || merged.AmountIn.IsZero() {
		merged.AmountIn = best.AmountIn
	}
	if merged.AmountOut.IsNil() || merged.AmountOut.IsZero() {
		merged.AmountOut = best.AmountOut
	}
	if merged.RequestedAt.IsZero() {
		merged.RequestedAt = best.RequestedAt
	}
	return merged
}
