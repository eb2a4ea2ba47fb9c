package payment

import (
	"context"
	"time"
)

// Strategy runs one card charge end to end: create the intent, then wait a
// bounded time for the terminal to finish. A client-side poll loop and a
// gateway-side blocking call both live behind this one contract. The intent
// id is reported through onIntent as soon as it exists so a cancel can
// reference it.
type Strategy interface {
	Execute(ctx context.Context, amount float64, timeout time.Duration, onIntent func(intentID string)) (string, IntentStatus, error)
}

// PollStrategy creates the intent, then checks its status at a fixed
// interval. Each iteration observes ctx so a cancel stops the loop promptly.
type PollStrategy struct {
	api      API
	interval time.Duration
}

func NewPollStrategy(api API, interval time.Duration) *PollStrategy {
	if interval <= 0 {
		interval = time.Second
	}
	return &PollStrategy{api: api, interval: interval}
}

func (s *PollStrategy) Execute(ctx context.Context, amount float64, timeout time.Duration, onIntent func(string)) (string, IntentStatus, error) {
	intentID, err := s.api.CreateIntent(ctx, amount)
	if err != nil {
		return "", StatusFailed, err
	}
	if onIntent != nil {
		onIntent(intentID)
	}

	status, err := s.awaitPaymentResult(ctx, intentID, timeout)
	return intentID, status, err
}

func (s *PollStrategy) awaitPaymentResult(ctx context.Context, intentID string, timeout time.Duration) (IntentStatus, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return StatusCanceled, ErrCanceled
		case <-ticker.C:
		}

		status, err := s.api.GetIntentStatus(ctx, intentID)
		if err != nil {
			if ctx.Err() != nil {
				return StatusCanceled, ErrCanceled
			}
			// transient status-check errors keep polling until the deadline
			log.Warningf("Intent status check failed: %v", err)
		} else if status.Terminal() {
			return status, nil
		}

		if time.Now().After(deadline) {
			return StatusPending, ErrTimeout
		}
	}
}

// BlockingStrategy delegates the whole wait to the gateway, which holds the
// request open until the terminal finishes. The intent id only becomes known
// when the call returns, so mid-flight cancels fall back to a terminal reset.
type BlockingStrategy struct {
	api API
}

func NewBlockingStrategy(api API) *BlockingStrategy {
	return &BlockingStrategy{api: api}
}

func (s *BlockingStrategy) Execute(ctx context.Context, amount float64, timeout time.Duration, onIntent func(string)) (string, IntentStatus, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	intentID, status, err := s.api.ProcessBlocking(waitCtx, amount)
	if intentID != "" && onIntent != nil {
		onIntent(intentID)
	}
	if err != nil {
		if ctx.Err() != nil {
			return intentID, StatusCanceled, ErrCanceled
		}
		if waitCtx.Err() != nil {
			return intentID, StatusPending, ErrTimeout
		}
		return intentID, StatusFailed, err
	}
	return intentID, status, nil
}
