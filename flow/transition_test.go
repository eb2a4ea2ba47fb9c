package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timlee789/pos-sub000/orders"
)

func guards(cartEmpty bool) Guards {
	return Guards{
		CartEmpty: cartEmpty,
		TableRequired: func(t orders.OrderType) bool {
			return t == orders.TypeDineIn
		},
	}
}

func TestStartPaymentGuards(t *testing.T) {
	_, err := transition(State{}, StartPayment{Method: orders.MethodCard}, guards(true))
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = transition(State{Step: StepTip}, StartPayment{Method: orders.MethodCard}, guards(false))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = transition(State{}, StartPayment{Method: "BITCOIN"}, guards(false))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	next, err := transition(State{}, StartPayment{Method: orders.MethodCard}, guards(false))
	require.NoError(t, err)
	assert.Equal(t, StepOrderType, next.Step)
	assert.Equal(t, orders.MethodCard, next.Method)
}

func TestRecalledOrderSkipsTypeAndTableCapture(t *testing.T) {
	g := guards(false)
	g.RecalledOrder = true
	s := State{OrderType: orders.TypeDineIn, TableNumber: "12"}

	next, err := transition(s, StartPayment{Method: orders.MethodCard}, g)
	require.NoError(t, err)
	assert.Equal(t, StepTip, next.Step)
	assert.Equal(t, "12", next.TableNumber)
	assert.Equal(t, orders.TypeDineIn, next.OrderType)

	// cash goes straight to the drawer, same as after a table capture
	next, err = transition(s, StartPayment{Method: orders.MethodCash}, g)
	require.NoError(t, err)
	assert.Equal(t, StepCashCollection, next.Step)
	assert.Equal(t, "12", next.TableNumber)
}

func TestOrderTypeRouting(t *testing.T) {
	tests := []struct {
		name      string
		method    orders.PaymentMethod
		orderType orders.OrderType
		wantStep  Step
	}{
		{"dine-in always asks for a table", orders.MethodCard, orders.TypeDineIn, StepTableNumber},
		{"to-go card skips straight to tip", orders.MethodCard, orders.TypeToGo, StepTip},
		{"to-go cash skips straight to drawer", orders.MethodCash, orders.TypeToGo, StepCashCollection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{Step: StepOrderType, Method: tt.method}
			next, err := transition(s, SelectOrderType{Type: tt.orderType}, guards(false))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStep, next.Step)
		})
	}

	_, err := transition(State{Step: StepOrderType}, SelectOrderType{Type: "delivery"}, guards(false))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTableNumberThenTipOrCash(t *testing.T) {
	s := State{Step: StepTableNumber, Method: orders.MethodCard, OrderType: orders.TypeDineIn}
	next, err := transition(s, ConfirmTableNumber{Number: "7"}, guards(false))
	require.NoError(t, err)
	assert.Equal(t, StepTip, next.Step)
	assert.Equal(t, "7", next.TableNumber)

	s.Method = orders.MethodCash
	next, err = transition(s, ConfirmTableNumber{Number: "7"}, guards(false))
	require.NoError(t, err)
	assert.Equal(t, StepCashCollection, next.Step)
}

func TestSelectTipStartsProcessing(t *testing.T) {
	s := State{Step: StepTip, Method: orders.MethodCard}
	next, err := transition(s, SelectTip{Amount: 1.28}, guards(false))
	require.NoError(t, err)
	assert.Equal(t, StepCardProcessing, next.Step)
	assert.InDelta(t, 1.28, next.TipAmount, 1e-9)

	_, err = transition(s, SelectTip{Amount: -1}, guards(false))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelFromProcessingReturnsToTip(t *testing.T) {
	s := State{
		Step:        StepCardProcessing,
		Method:      orders.MethodCard,
		OrderType:   orders.TypeDineIn,
		TableNumber: "3",
		TipAmount:   2,
	}
	next, err := transition(s, Cancel{}, guards(false))
	require.NoError(t, err)
	assert.Equal(t, StepTip, next.Step)
	// order type and table survive so the customer only redoes the tip
	assert.Equal(t, "3", next.TableNumber)
	assert.Equal(t, orders.TypeDineIn, next.OrderType)
}

func TestCancelElsewhereGoesIdle(t *testing.T) {
	for _, step := range []Step{StepOrderType, StepTableNumber, StepTip, StepCashCollection, StepPhoneOrder, StepOrderList} {
		next, err := transition(State{Step: step, Method: orders.MethodCard}, Cancel{}, guards(false))
		require.NoError(t, err, "cancel in %s", step)
		assert.Equal(t, State{}, next, "cancel in %s", step)
	}

	_, err := transition(State{}, Cancel{}, guards(false))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPaymentFailureReturnsToTip(t *testing.T) {
	s := State{Step: StepCardProcessing, Method: orders.MethodCard, TipAmount: 2}
	next, err := transition(s, paymentFailed{}, guards(false))
	require.NoError(t, err)
	assert.Equal(t, StepTip, next.Step)

	// a late failure after the operator already canceled is rejected
	_, err = transition(State{Step: StepTip}, paymentFailed{}, guards(false))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompletionEventsResetEverything(t *testing.T) {
	s := State{Step: StepCardProcessing, Method: orders.MethodCard, TableNumber: "4", TipAmount: 3}
	next, err := transition(s, paymentSucceeded{}, guards(false))
	require.NoError(t, err)
	assert.Equal(t, State{}, next)

	next, err = transition(State{Step: StepCashCollection}, cashCompleted{}, guards(false))
	require.NoError(t, err)
	assert.Equal(t, State{}, next)

	next, err = transition(State{Step: StepPhoneOrder}, phoneOrderCompleted{}, guards(false))
	require.NoError(t, err)
	assert.Equal(t, State{}, next)
}

func TestOrderListOpenClose(t *testing.T) {
	next, err := transition(State{}, ShowOrderList{}, guards(true))
	require.NoError(t, err)
	assert.Equal(t, StepOrderList, next.Step)

	next, err = transition(next, CloseOrderList{}, guards(true))
	require.NoError(t, err)
	assert.Equal(t, StepIdle, next.Step)
}

func TestPhoneOrderNeedsItems(t *testing.T) {
	_, err := transition(State{}, ShowPhoneOrder{}, guards(true))
	assert.ErrorIs(t, err, ErrEmptyCart)

	next, err := transition(State{}, ShowPhoneOrder{}, guards(false))
	require.NoError(t, err)
	assert.Equal(t, StepPhoneOrder, next.Step)
}
