package flow

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/timlee789/pos-sub000/orders"
)

// ErrInvalidTransition rejects an event that is not legal in the current
// step. The flow state is left untouched.
var ErrInvalidTransition = errors.New("invalid flow transition")

var ErrEmptyCart = errors.New("cart is empty")

func invalid(step Step, event string) error {
	return errors.Wrap(ErrInvalidTransition, fmt.Sprintf("%s in step %s", event, step))
}

// transition is the pure reducer: given the current state, an event and the
// guards, produce the next state or an error. No side effects happen here;
// the Machine runs effects off the (previous, next) step pair.
func transition(s State, e Event, g Guards) (State, error) {
	switch ev := e.(type) {

	case StartPayment:
		if s.Step != StepIdle {
			return s, invalid(s.Step, "startPayment")
		}
		if g.CartEmpty {
			return s, ErrEmptyCart
		}
		if ev.Method != orders.MethodCash && ev.Method != orders.MethodCard {
			return s, errors.Wrap(ErrInvalidTransition, "unknown payment method")
		}
		if g.RecalledOrder && s.TableNumber != "" {
			// recalled orders already carry order type and table number
			return State{
				Step:        afterTableStep(ev.Method),
				Method:      ev.Method,
				OrderType:   s.OrderType,
				TableNumber: s.TableNumber,
			}, nil
		}
		return State{Step: StepOrderType, Method: ev.Method}, nil

	case SelectOrderType:
		if s.Step != StepOrderType {
			return s, invalid(s.Step, "selectOrderType")
		}
		if ev.Type != orders.TypeDineIn && ev.Type != orders.TypeToGo {
			return s, errors.Wrap(ErrInvalidTransition, "unknown order type")
		}
		s.OrderType = ev.Type
		if g.TableRequired != nil && g.TableRequired(ev.Type) {
			s.Step = StepTableNumber
			return s, nil
		}
		s.TableNumber = ""
		s.Step = afterTableStep(s.Method)
		return s, nil

	case ConfirmTableNumber:
		if s.Step != StepTableNumber {
			return s, invalid(s.Step, "confirmTableNumber")
		}
		s.TableNumber = ev.Number
		s.Step = afterTableStep(s.Method)
		return s, nil

	case SelectTip:
		if s.Step != StepTip {
			return s, invalid(s.Step, "selectTip")
		}
		if ev.Amount < 0 {
			return s, errors.Wrap(ErrInvalidTransition, "negative tip")
		}
		s.TipAmount = ev.Amount
		s.Step = StepCardProcessing
		return s, nil

	case ShowPhoneOrder:
		if s.Step != StepIdle {
			return s, invalid(s.Step, "showPhoneOrder")
		}
		if g.CartEmpty {
			return s, ErrEmptyCart
		}
		s.Step = StepPhoneOrder
		return s, nil

	case ShowOrderList:
		if s.Step != StepIdle {
			return s, invalid(s.Step, "showOrderList")
		}
		s.Step = StepOrderList
		return s, nil

	case CloseOrderList:
		if s.Step != StepOrderList {
			return s, invalid(s.Step, "closeOrderList")
		}
		s.Step = StepIdle
		return s, nil

	case Cancel:
		switch s.Step {
		case StepIdle:
			return s, invalid(s.Step, "cancel")
		case StepCardProcessing:
			// back to tip so the customer can retry tipping without
			// re-entering order type and table number
			s.Step = StepTip
			return s, nil
		default:
			return State{}, nil
		}

	case Reset:
		return State{}, nil

	case paymentSucceeded, cashCompleted, phoneOrderCompleted:
		return State{}, nil

	case paymentFailed:
		if s.Step != StepCardProcessing {
			return s, invalid(s.Step, "paymentFailed")
		}
		s.Step = StepTip
		return s, nil

	default:
		return s, errors.Wrap(ErrInvalidTransition, "unknown event")
	}
}

// afterTableStep: card payments capture a tip next; cash goes straight to
// the drawer.
func afterTableStep(method orders.PaymentMethod) Step {
	if method == orders.MethodCash {
		return StepCashCollection
	}
	return StepTip
}
