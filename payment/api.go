// Package payment drives card-present and cash payments. The card path
// talks to an opaque gateway wrapping the real terminal API; the flow only
// ever sees the bounded PayNow/Cancel contract.
package payment

import (
	"context"

	"github.com/pkg/errors"
)

// IntentStatus as reported by the gateway.
type IntentStatus string

const (
	StatusPending   IntentStatus = "pending"
	StatusSucceeded IntentStatus = "succeeded"
	StatusCanceled  IntentStatus = "canceled"
	StatusFailed    IntentStatus = "failed"
)

// Terminal reports whether the status is final.
func (s IntentStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusCanceled || s == StatusFailed
}

var (
	ErrTimeout          = errors.New("payment confirmation timed out")
	ErrCanceled         = errors.New("payment was canceled")
	ErrDeclined         = errors.New("payment failed or was declined")
	ErrInsufficientCash = errors.New("received amount is less than the total due")
)

// API is the opaque payment gateway the orchestrator consumes.
type API interface {
	// CreateIntent registers a card-present charge and points the physical
	// terminal at it. Returns the payment intent id.
	CreateIntent(ctx context.Context, amount float64) (string, error)

	// GetIntentStatus reports the current status of an intent.
	GetIntentStatus(ctx context.Context, intentID string) (IntentStatus, error)

	// CancelIntent best-effort cancels an intent. Cancelling an already
	// finished or unknown intent is not an error.
	CancelIntent(ctx context.Context, intentID string) error

	// ResetTerminal clears the physical reader's action queue. Idempotent;
	// resetting an idle reader succeeds.
	ResetTerminal(ctx context.Context) error

	// ProcessBlocking creates an intent and waits server-side until the
	// terminal finishes. Used by the blocking waiter variant.
	ProcessBlocking(ctx context.Context, amount float64) (string, IntentStatus, error)
}

// Result is what the flow receives back from PayNow.
type Result struct {
	Success       bool
	TransactionID string
	Err           string
}
