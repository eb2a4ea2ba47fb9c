// Package orders talks to the back-office order API. Every write is an
// independent network call; the flow tolerates partial failure around it.
package orders

import (
	"time"

	"github.com/timlee789/pos-sub000/cart"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

// Forward-only transitions: open/processing may become paid or failed, paid
// may become refunded. Everything else is rejected.
func (s Status) CanBecome(next Status) bool {
	switch s {
	case StatusOpen, StatusProcessing:
		return next == StatusPaid || next == StatusFailed || next == StatusProcessing
	case StatusPaid:
		return next == StatusRefunded
	default:
		return false
	}
}

type PaymentMethod string

const (
	MethodNone    PaymentMethod = ""
	MethodCash    PaymentMethod = "CASH"
	MethodCard    PaymentMethod = "CARD"
	MethodPending PaymentMethod = "PENDING"
)

type OrderType string

const (
	TypeNone   OrderType = ""
	TypeDineIn OrderType = "dine_in"
	TypeToGo   OrderType = "to_go"
)

// Order is the persisted record. Card orders are created as `processing`
// before the payment intent exists so the kitchen ticket and the eventual
// terminal event share a stable id.
type Order struct {
	ID            string        `json:"id,omitempty"`
	OrderNumber   int64         `json:"order_number,omitempty"`
	Items         []cart.Line   `json:"items,omitempty"`
	Subtotal      float64       `json:"subtotal"`
	Tax           float64       `json:"tax"`
	Tip           float64       `json:"tip"`
	Total         float64       `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	TransactionID string        `json:"transaction_id,omitempty"`
	OrderType     OrderType     `json:"order_type"`
	TableNumber   string        `json:"table_number"`
	EmployeeName  string        `json:"employee_name"`
	Status        Status        `json:"status"`
	CreatedAt     time.Time     `json:"created_at,omitempty"`
}

// Patch updates an order in place as payment resolves. Nil fields are left
// untouched.
type Patch struct {
	Status        Status        `json:"status,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Tip           *float64      `json:"tip,omitempty"`
	Total         *float64      `json:"total,omitempty"`
}
