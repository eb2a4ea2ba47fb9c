// Package flow is the checkout state machine: one linear, interruptible
// sequence from item selection to payment and reset, driven by UI events
// and by asynchronous payment results.
package flow

import (
	"github.com/timlee789/pos-sub000/orders"
)

type Step int

const (
	StepIdle Step = iota
	StepOrderType
	StepTableNumber
	StepTip
	StepCashCollection
	StepCardProcessing
	StepPhoneOrder
	StepOrderList
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepOrderType:
		return "orderType"
	case StepTableNumber:
		return "tableNumber"
	case StepTip:
		return "tip"
	case StepCashCollection:
		return "cashCollection"
	case StepCardProcessing:
		return "cardProcessing"
	case StepPhoneOrder:
		return "phoneOrderCapture"
	case StepOrderList:
		return "orderListBrowse"
	default:
		return "unknown"
	}
}

// State is the single source of truth for where checkout stands. Purely
// transient per session; never persisted.
type State struct {
	Step        Step
	Method      orders.PaymentMethod
	OrderType   orders.OrderType
	TableNumber string
	TipAmount   float64
}

// Event is one input to the transition function.
type Event interface{ isEvent() }

type StartPayment struct {
	Method orders.PaymentMethod
}

type SelectOrderType struct {
	Type orders.OrderType
}

type ConfirmTableNumber struct {
	Number string
}

type SelectTip struct {
	Amount float64
}

type ShowPhoneOrder struct{}

type ShowOrderList struct{}

type CloseOrderList struct{}

type Cancel struct{}

type Reset struct{}

// internal events fed back by the effect layer
type paymentSucceeded struct{}
type paymentFailed struct{}
type cashCompleted struct{}
type phoneOrderCompleted struct{}

func (StartPayment) isEvent()        {}
func (SelectOrderType) isEvent()     {}
func (ConfirmTableNumber) isEvent()  {}
func (SelectTip) isEvent()           {}
func (ShowPhoneOrder) isEvent()      {}
func (ShowOrderList) isEvent()       {}
func (CloseOrderList) isEvent()      {}
func (Cancel) isEvent()              {}
func (Reset) isEvent()               {}
func (paymentSucceeded) isEvent()    {}
func (paymentFailed) isEvent()       {}
func (cashCompleted) isEvent()       {}
func (phoneOrderCompleted) isEvent() {}

// Guards carries the facts the pure transition function needs from outside
// the state itself.
type Guards struct {
	CartEmpty bool
	// TableRequired reports whether a table number must be captured for the
	// chosen order type. Dine-in always requires one.
	TableRequired func(orders.OrderType) bool
	// RecalledOrder is true when an open order was recalled into the cart;
	// with its table number already known the flow jumps straight to tip.
	RecalledOrder bool
}
