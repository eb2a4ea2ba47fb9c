package flow

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/timlee789/pos-sub000/displaysync"
	"github.com/timlee789/pos-sub000/orders"
	"github.com/timlee789/pos-sub000/payment"
	"github.com/timlee789/pos-sub000/printer"
)

// runCardPayment is the card effect: persist a processing order, hand the
// amount to the orchestrator and feed the outcome back as an internal event.
// Runs on its own goroutine; every shared access goes through the machine.
func (m *Machine) runCardPayment(st State) {
	totals := m.deps.Cart.Totals(true)
	grandTotal := totals.GrandTotal + st.TipAmount

	orderID, orderNumber, err := m.ensureOrder(st, totals.Subtotal, totals.Tax, st.TipAmount, grandTotal)
	if err != nil {
		log.Errorf("Failed to persist order before payment: %v", err)
		m.setStatus("Could not save the order, payment not started")
		m.failPayment()
		return
	}

	res := m.deps.Payments.PayNow(context.Background(), grandTotal)
	if !res.Success {
		if res.Err == payment.ErrCanceled.Error() {
			// operator cancel already moved the flow back to tip
			log.Infof("Payment for order %d canceled", orderNumber)
			return
		}
		m.markOrderFailed(orderID)
		m.setStatus("Payment failed: " + res.Err)
		m.failPayment()
		return
	}

	tip := st.TipAmount
	total := grandTotal
	_, err = m.deps.Store.Update(m.persistCtx(), orderID, orders.Patch{
		Status:        orders.StatusPaid,
		PaymentMethod: orders.MethodCard,
		TransactionID: res.TransactionID,
		Tip:           &tip,
		Total:         &total,
	})
	if err != nil {
		// the charge went through; surface the gap instead of hiding it
		log.Errorf("Payment captured but order %s not marked paid: %v", orderID, err)
		m.setStatus(fmt.Sprintf("Paid, but order #%d needs manual reconcile", orderNumber))
	}

	m.printTicket(st, totals.Subtotal, totals.Tax, totals.CardFee, st.TipAmount, grandTotal,
		orders.MethodCard, orderNumber, true, true)
	m.finishCheckout()
}

// ensureOrder creates the processing order for this checkout, or re-marks the
// existing one when retrying or paying a recalled order. The same order id is
// reused across retries so a declined first attempt never duplicates rows.
func (m *Machine) ensureOrder(st State, subtotal, tax, tip, total float64) (string, int64, error) {
	m.mu.Lock()
	orderID := m.activeOrderID
	orderNumber := m.recalledNumber
	m.mu.Unlock()

	if orderID != "" {
		_, err := m.deps.Store.Update(m.persistCtx(), orderID, orders.Patch{Status: orders.StatusProcessing})
		return orderID, orderNumber, err
	}

	res, err := m.deps.Store.Create(m.persistCtx(), orders.Order{
		Items:         m.deps.Cart.Lines(),
		Subtotal:      subtotal,
		Tax:           tax,
		Tip:           tip,
		Total:         total,
		PaymentMethod: orders.MethodCard,
		OrderType:     st.OrderType,
		TableNumber:   st.TableNumber,
		EmployeeName:  m.deps.Session.Name(),
		Status:        orders.StatusProcessing,
	})
	if err != nil {
		return "", 0, err
	}

	m.mu.Lock()
	m.activeOrderID = res.OrderID
	m.recalledNumber = res.OrderNumber
	m.mu.Unlock()
	return res.OrderID, res.OrderNumber, nil
}

func (m *Machine) markOrderFailed(orderID string) {
	if _, err := m.deps.Store.Update(m.persistCtx(), orderID, orders.Patch{Status: orders.StatusFailed}); err != nil {
		log.Errorf("Failed to mark order %s failed: %v", orderID, err)
	}
}

// failPayment feeds the failure event back in; if the operator already
// canceled out of the processing step the event is a no-op.
func (m *Machine) failPayment() {
	if err := m.dispatch(paymentFailed{}); err != nil {
		log.Debugf("Payment failure event dropped: %v", err)
	}
}

// finishCheckout clears the cart, returns to idle and holds the success
// screen before the display goes back to idle.
func (m *Machine) finishCheckout() {
	m.deps.Cart.Clear()
	m.clearActiveOrder()
	if err := m.dispatch(paymentSucceeded{}); err != nil {
		log.Errorf("Failed to complete checkout: %v", err)
		return
	}
	m.deps.Broadcaster.SyncState(displaysync.StateSnapshot{Mode: displaysync.ModePaymentSuccess})
	m.after(m.cfg.SuccessHold, func() {
		if m.State().Step == StepIdle {
			m.broadcast(m.State())
		}
	})
}

// ConfirmCashPayment takes the received amount, computes change and persists
// the paid order synchronously. On a persistence error the flow stays on the
// cash screen so the operator can retry or cancel.
func (m *Machine) ConfirmCashPayment(received float64) (float64, error) {
	st := m.State()
	if st.Step != StepCashCollection {
		return 0, invalid(st.Step, "confirmCashPayment")
	}

	totals := m.deps.Cart.Totals(false)
	change, err := payment.CashChange(received, totals.GrandTotal)
	if err != nil {
		return 0, err
	}

	orderNumber, err := m.persistCashOrder(st, totals.Subtotal, totals.Tax, totals.GrandTotal)
	if err != nil {
		log.Errorf("Failed to persist cash order: %v", err)
		return 0, err
	}

	m.printTicket(st, totals.Subtotal, totals.Tax, 0, 0, totals.GrandTotal,
		orders.MethodCash, orderNumber, true, true)

	m.deps.Cart.Clear()
	m.clearActiveOrder()
	if dispatchErr := m.dispatch(cashCompleted{}); dispatchErr != nil {
		return change, dispatchErr
	}
	m.deps.Broadcaster.SyncState(displaysync.StateSnapshot{Mode: displaysync.ModePaymentSuccess})
	m.after(m.cfg.SuccessHold, func() {
		if m.State().Step == StepIdle {
			m.broadcast(m.State())
		}
	})
	return change, nil
}

func (m *Machine) persistCashOrder(st State, subtotal, tax, total float64) (int64, error) {
	m.mu.Lock()
	orderID := m.activeOrderID
	orderNumber := m.recalledNumber
	m.mu.Unlock()

	if orderID != "" {
		_, err := m.deps.Store.Update(m.persistCtx(), orderID, orders.Patch{
			Status:        orders.StatusPaid,
			PaymentMethod: orders.MethodCash,
			Total:         &total,
		})
		return orderNumber, err
	}

	res, err := m.deps.Store.Create(m.persistCtx(), orders.Order{
		Items:         m.deps.Cart.Lines(),
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         total,
		PaymentMethod: orders.MethodCash,
		OrderType:     st.OrderType,
		TableNumber:   st.TableNumber,
		EmployeeName:  m.deps.Session.Name(),
		Status:        orders.StatusPaid,
	})
	if err != nil {
		return 0, err
	}
	return res.OrderNumber, nil
}

// ConfirmPhoneOrder saves the cart as an open order for later payment and
// prints a kitchen ticket only. The customer name rides in the table-number
// field the way pickup tickets are labeled.
func (m *Machine) ConfirmPhoneOrder(customerName string) error {
	st := m.State()
	if st.Step != StepPhoneOrder {
		return invalid(st.Step, "confirmPhoneOrder")
	}
	if customerName == "" {
		return errors.New("customer name is required")
	}

	totals := m.deps.Cart.Totals(false)
	tableLabel := "To Go: " + customerName
	res, err := m.deps.Store.Create(m.persistCtx(), orders.Order{
		Items:         m.deps.Cart.Lines(),
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.GrandTotal,
		PaymentMethod: orders.MethodPending,
		OrderType:     orders.TypeToGo,
		TableNumber:   tableLabel,
		EmployeeName:  m.deps.Session.Name(),
		Status:        orders.StatusOpen,
	})
	if err != nil {
		log.Errorf("Failed to save phone order: %v", err)
		return err
	}

	phoneState := State{OrderType: orders.TypeToGo, TableNumber: tableLabel}
	m.printTicket(phoneState, totals.Subtotal, totals.Tax, 0, 0, totals.GrandTotal,
		orders.MethodPending, res.OrderNumber, true, false)

	m.deps.Cart.Clear()
	m.clearActiveOrder()
	return m.dispatch(phoneOrderCompleted{})
}

// RecallOrder loads an open order back into the cart so it can be paid or
// extended. Paying it later updates the same row instead of creating one.
func (m *Machine) RecallOrder(order orders.Order) error {
	st := m.State()
	if st.Step != StepOrderList && st.Step != StepIdle {
		return invalid(st.Step, "recallOrder")
	}
	if order.Status != orders.StatusOpen && order.Status != orders.StatusProcessing {
		return errors.Errorf("order %d is %s, only open orders can be recalled", order.OrderNumber, order.Status)
	}
	if err := m.deps.Cart.Restore(order.Items); err != nil {
		return err
	}

	m.mu.Lock()
	m.activeOrderID = order.ID
	m.recalledNumber = order.OrderNumber
	m.state = State{
		Step:        StepIdle,
		OrderType:   order.OrderType,
		TableNumber: order.TableNumber,
	}
	next := m.state
	m.mu.Unlock()

	m.broadcast(next)
	if m.onChange != nil {
		m.onChange(next)
	}
	return nil
}

// RefundOrder refunds a paid card order through the back office. On failure
// the order keeps its status and the error goes to the operator.
func (m *Machine) RefundOrder(order orders.Order) error {
	if order.Status != orders.StatusPaid {
		return errors.Errorf("order %d is %s, only paid orders can be refunded", order.OrderNumber, order.Status)
	}
	if order.TransactionID == "" {
		return errors.Errorf("order %d has no transaction to refund", order.OrderNumber)
	}
	return m.deps.Store.Refund(m.persistCtx(), order.ID, order.TransactionID, order.Total)
}

// ListOrders fetches the order list for the recall/refund screen.
func (m *Machine) ListOrders(ctx context.Context) ([]orders.Order, error) {
	return m.deps.Store.List(ctx)
}

func (m *Machine) printTicket(st State, subtotal, tax, cardFee, tip, total float64,
	method orders.PaymentMethod, orderNumber int64, kitchen, receipt bool) {
	m.deps.Printer.Print(printer.Job{
		Items:         m.deps.Cart.Lines(),
		OrderNumber:   orderNumber,
		TableNumber:   st.TableNumber,
		OrderType:     st.OrderType,
		Subtotal:      subtotal,
		Tax:           tax,
		CardFee:       cardFee,
		TipAmount:     tip,
		TotalAmount:   total,
		PaymentMethod: method,
		EmployeeName:  m.deps.Session.Name(),
		PrintKitchen:  kitchen,
		PrintReceipt:  receipt,
	})
}

// persistCtx: order-store calls rely on the HTTP client's own timeout.
func (m *Machine) persistCtx() context.Context {
	return context.Background()
}

// --- customer display ------------------------------------------------------

// broadcast mirrors the flow state onto the customer display.
func (m *Machine) broadcast(st State) {
	m.deps.Broadcaster.SyncState(m.snapshot(st))
}

func (m *Machine) snapshot(st State) displaysync.StateSnapshot {
	snap := displaysync.StateSnapshot{
		Mode:  displaysync.ModeIdle,
		Cart:  m.deps.Cart.Lines(),
		Total: m.displayTotal(st),
	}
	switch st.Step {
	case StepIdle, StepPhoneOrder, StepOrderList:
		if !m.deps.Cart.IsEmpty() {
			snap.Mode = displaysync.ModeCart
		}
	case StepOrderType:
		snap.Mode = displaysync.ModeOrderTypeSelect
	case StepTableNumber:
		snap.Mode = displaysync.ModeTableNumberSelect
	case StepTip:
		snap.Mode = displaysync.ModeTipping
		snap.TipBase = m.deps.Cart.TipBase()
	case StepCardProcessing:
		snap.Mode = displaysync.ModeProcessing
	case StepCashCollection:
		snap.Mode = displaysync.ModeCart
	}
	return snap
}

// displayTotal is what the customer sees: the grand total for the chosen
// method plus any tip already selected.
func (m *Machine) displayTotal(st State) float64 {
	totals := m.deps.Cart.Totals(st.Method == orders.MethodCard)
	return totals.GrandTotal + st.TipAmount
}

// HandleDisplayMessage consumes customer-display input. Selections are only
// honored in the step that asked for them; anything else is stale and dropped.
func (m *Machine) HandleDisplayMessage(msg *displaysync.Message) {
	switch msg.Type {
	case displaysync.TypeTipSelected:
		sel, err := msg.TipSelection()
		if err != nil {
			log.Errorf("Bad tip selection from display: %v", err)
			return
		}
		if err := m.SelectTip(sel.TipAmount); err != nil {
			log.Debugf("Ignoring tip selection: %v", err)
		}
	case displaysync.TypeOrderTypeSelected:
		sel, err := msg.OrderTypeSelection()
		if err != nil {
			log.Errorf("Bad order type selection from display: %v", err)
			return
		}
		if err := m.SelectOrderType(orders.OrderType(sel.OrderType)); err != nil {
			log.Debugf("Ignoring order type selection: %v", err)
		}
	case displaysync.TypeSyncState:
		// terminal-originated, nothing to do
	default:
		log.Warningf("Unknown display message type %q", msg.Type)
	}
}
