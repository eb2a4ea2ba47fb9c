package flow

import (
	"context"
	"sync"
	"time"

	"github.com/op/go-logging"

	"github.com/timlee789/pos-sub000/cart"
	"github.com/timlee789/pos-sub000/catalog"
	"github.com/timlee789/pos-sub000/display"
	"github.com/timlee789/pos-sub000/employee"
	"github.com/timlee789/pos-sub000/orders"
	"github.com/timlee789/pos-sub000/payment"
	"github.com/timlee789/pos-sub000/printer"
)

var log = logging.MustGetLogger("log")

// CardPayer is the slice of the payment orchestrator the flow drives.
type CardPayer interface {
	PayNow(ctx context.Context, amount float64) payment.Result
	Cancel(ctx context.Context)
}

// Printer is the best-effort print surface.
type Printer interface {
	Print(job printer.Job) bool
}

type Config struct {
	// RequireToGoTableNumber mirrors the store setting; dine-in always
	// captures a table number.
	RequireToGoTableNumber bool
	// SuccessHold is how long the customer display lingers on the success
	// screen before returning to idle.
	SuccessHold time.Duration
	// StatusTTL is how long transient error messages stay visible.
	StatusTTL time.Duration
}

func (c *Config) defaults() {
	if c.SuccessHold <= 0 {
		c.SuccessHold = 3 * time.Second
	}
	if c.StatusTTL <= 0 {
		c.StatusTTL = 3 * time.Second
	}
}

type Deps struct {
	Cart        *cart.Cart
	Payments    CardPayer
	Store       orders.Store
	Printer     Printer
	Broadcaster *display.Broadcaster
	Session     *employee.Session
}

// Machine applies events through the pure transition function and runs side
// effects off the step changes. It is the sole mutator of flow state within
// a terminal session; the mutex only serializes the asynchronous payment
// result against UI events.
type Machine struct {
	mu   sync.Mutex
	cfg  Config
	deps Deps

	state State

	// activeOrderID is the kitchen-ticket order for the checkout in
	// progress: pre-created for card payments or recalled from the order
	// list. A retry after cancel/failure reuses it instead of creating a
	// duplicate order.
	activeOrderID  string
	recalledNumber int64

	statusMessage string
	statusExpiry  time.Time

	// onChange notifies the UI layer after every applied event.
	onChange func(State)

	// spawn and after are goroutine/timer seams; tests run them inline.
	spawn func(func())
	after func(time.Duration, func())
}

func NewMachine(deps Deps, cfg Config) *Machine {
	cfg.defaults()
	return &Machine{
		cfg:   cfg,
		deps:  deps,
		spawn: func(f func()) { go f() },
		after: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// OnChange registers the UI re-render hook.
func (m *Machine) OnChange(f func(State)) { m.onChange = f }

// SetScheduler overrides the goroutine and timer seams; tests only.
func (m *Machine) SetScheduler(spawn func(func()), after func(time.Duration, func())) {
	m.spawn = spawn
	m.after = after
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Busy reports whether a payment is actively processing; the idle timeout
// must not fire mid-transaction.
func (m *Machine) Busy() bool {
	return m.State().Step == StepCardProcessing
}

// StatusMessage returns the transient operator message, if still fresh.
func (m *Machine) StatusMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Now().After(m.statusExpiry) {
		return ""
	}
	return m.statusMessage
}

func (m *Machine) setStatus(msg string) {
	m.mu.Lock()
	m.statusMessage = msg
	m.statusExpiry = time.Now().Add(m.cfg.StatusTTL)
	m.mu.Unlock()
}

func (m *Machine) guards() Guards {
	return Guards{
		CartEmpty:     m.deps.Cart.IsEmpty(),
		RecalledOrder: m.activeOrderID != "",
		TableRequired: func(t orders.OrderType) bool {
			if t == orders.TypeDineIn {
				return true
			}
			return m.cfg.RequireToGoTableNumber
		},
	}
}

// dispatch applies one event and runs the resulting effects.
func (m *Machine) dispatch(e Event) error {
	m.mu.Lock()
	prev := m.state
	next, err := transition(prev, e, m.guards())
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = next
	m.mu.Unlock()

	m.runEffects(prev, next, e)
	if m.onChange != nil {
		m.onChange(next)
	}
	return nil
}

// runEffects is keyed on the (previous, next) step pair so every side
// effect is enumerable independently of the UI.
func (m *Machine) runEffects(prev, next State, e Event) {
	switch {
	case next.Step == StepCardProcessing && prev.Step == StepTip:
		m.deps.Cart.Freeze()
		m.broadcast(next)
		m.spawn(func() { m.runCardPayment(next) })

	case prev.Step == StepCardProcessing && next.Step == StepTip:
		// canceled or failed payment: thaw the cart for the retry
		if _, isCancel := e.(Cancel); isCancel {
			m.deps.Payments.Cancel(context.Background())
		}
		m.deps.Cart.Unfreeze()
		m.broadcast(next)

	case isReset(e):
		m.deps.Cart.Clear()
		m.clearActiveOrder()
		m.broadcast(next)

	default:
		m.broadcast(next)
	}
}

func isReset(e Event) bool {
	_, ok := e.(Reset)
	return ok
}

func (m *Machine) clearActiveOrder() {
	m.mu.Lock()
	m.activeOrderID = ""
	m.recalledNumber = 0
	m.mu.Unlock()
}

// --- dispatchable actions -------------------------------------------------

func (m *Machine) StartPayment(method orders.PaymentMethod) error {
	return m.dispatch(StartPayment{Method: method})
}

func (m *Machine) SelectOrderType(t orders.OrderType) error {
	return m.dispatch(SelectOrderType{Type: t})
}

func (m *Machine) ConfirmTableNumber(num string) error {
	return m.dispatch(ConfirmTableNumber{Number: num})
}

func (m *Machine) SelectTip(amount float64) error {
	return m.dispatch(SelectTip{Amount: amount})
}

func (m *Machine) ShowPhoneOrder() error { return m.dispatch(ShowPhoneOrder{}) }

func (m *Machine) ShowOrderList() error { return m.dispatch(ShowOrderList{}) }

func (m *Machine) CloseOrderList() error { return m.dispatch(CloseOrderList{}) }

func (m *Machine) Cancel() error { return m.dispatch(Cancel{}) }

// Reset forcibly returns to idle, clearing the cart and all captured fields.
func (m *Machine) Reset() {
	_ = m.dispatch(Reset{})
}

// SyncCart re-broadcasts the current snapshot after a cart edit made
// outside the flow (adds, removals, notes).
func (m *Machine) SyncCart() {
	m.broadcast(m.State())
}

// PreviewItem mirrors the modifier picker onto the customer display while
// staff configures an item. Display-only; flow state does not change.
func (m *Machine) PreviewItem(itemName string, groups []catalog.ModifierGroup) {
	st := m.State()
	m.deps.Broadcaster.ModifierSelect(m.deps.Cart.Lines(), m.displayTotal(st), itemName, groups)
}

// IdleTimeout is the timer callback: reset unless a payment is processing.
func (m *Machine) IdleTimeout() {
	if m.Busy() {
		return
	}
	log.Info("Idle timeout reached, resetting terminal")
	m.Reset()
}
