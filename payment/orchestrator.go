package payment

import (
	"context"
	"sync"
	"time"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("log")

const DefaultTimeout = 60 * time.Second

// Orchestrator exposes the single payment surface the flow consumes:
// PayNow, Cancel, and the cash change math.
type Orchestrator struct {
	api      API
	strategy Strategy
	timeout  time.Duration

	mu              sync.Mutex
	currentIntentID string
	cancelWait      context.CancelFunc
}

func NewOrchestrator(api API, strategy Strategy, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{api: api, strategy: strategy, timeout: timeout}
}

// PayNow charges amount on the card terminal and blocks until the charge
// resolves, times out, or is canceled. Always returns a Result; the error
// only reports plumbing failures that prevented a result entirely.
func (o *Orchestrator) PayNow(ctx context.Context, amount float64) Result {
	waitCtx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.currentIntentID = ""
	o.cancelWait = cancel
	o.mu.Unlock()

	defer func() {
		cancel()
		o.mu.Lock()
		o.cancelWait = nil
		o.mu.Unlock()
	}()

	intentID, status, err := o.strategy.Execute(waitCtx, amount, o.timeout, func(id string) {
		o.mu.Lock()
		o.currentIntentID = id
		o.mu.Unlock()
	})

	if err != nil {
		log.Warningf("Card payment did not complete: %v", err)
		o.abandonIntent(intentID, err)
		return Result{Success: false, Err: err.Error()}
	}

	switch status {
	case StatusSucceeded:
		return Result{Success: true, TransactionID: intentID}
	case StatusCanceled:
		return Result{Success: false, Err: ErrCanceled.Error()}
	default:
		return Result{Success: false, Err: ErrDeclined.Error()}
	}
}

// abandonIntent cleans up after a timeout or failure so the reader is not
// left mid-collection. Runs on a fresh context; the wait context is dead.
func (o *Orchestrator) abandonIntent(intentID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if intentID != "" {
		if err := o.api.CancelIntent(ctx, intentID); err != nil {
			log.Warningf("Failed to cancel abandoned intent %s: %v", intentID, err)
		}
	}
	if err := o.api.ResetTerminal(ctx); err != nil {
		log.Warningf("Failed to reset terminal after %v: %v", cause, err)
	}
}

// Cancel aborts an in-flight card payment: stop the local wait, best-effort
// cancel the remote intent, and reset the reader's action queue. Resetting
// an already idle reader is not an error, so cancelling twice is safe.
func (o *Orchestrator) Cancel(ctx context.Context) {
	o.mu.Lock()
	intentID := o.currentIntentID
	cancelWait := o.cancelWait
	o.currentIntentID = ""
	o.mu.Unlock()

	if cancelWait != nil {
		cancelWait()
	}

	if intentID != "" {
		if err := o.api.CancelIntent(ctx, intentID); err != nil {
			log.Warningf("Failed to cancel intent %s: %v", intentID, err)
		}
	}
	if err := o.api.ResetTerminal(ctx); err != nil {
		log.Warningf("Failed to reset terminal: %v", err)
	}
}

// CashChange validates a cash tender and returns the change due.
func CashChange(received, totalDue float64) (float64, error) {
	if received < totalDue {
		return 0, ErrInsufficientCash
	}
	return received - totalDue, nil
}
