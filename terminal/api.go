package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timlee789/pos-sub000/cart"
	"github.com/timlee789/pos-sub000/catalog"
	"github.com/timlee789/pos-sub000/employee"
	"github.com/timlee789/pos-sub000/flow"
	"github.com/timlee789/pos-sub000/orders"
	"github.com/timlee789/pos-sub000/payment"
)

// api is the localhost bridge the POS front-end drives. It owns no state;
// every operation delegates to the flow machine or the cart.
type api struct {
	machine  *flow.Machine
	cart     *cart.Cart
	catalog  *catalog.Catalog
	auth     *employee.Client
	session  *employee.Session
	activity func()
}

func newAPI(machine *flow.Machine, c *cart.Cart, cat *catalog.Catalog,
	auth *employee.Client, session *employee.Session, activity func()) *api {
	return &api{
		machine:  machine,
		cart:     c,
		catalog:  cat,
		auth:     auth,
		session:  session,
		activity: activity,
	}
}

func (a *api) router() http.Handler {
	r := chi.NewRouter()
	r.Use(a.touch)

	r.Get("/api/state", a.getState)
	r.Get("/api/menu", a.getMenu)

	r.Post("/api/login", a.login)
	r.Post("/api/logout", a.logout)

	r.Post("/api/cart/items", a.addItem)
	r.Delete("/api/cart/items/{lineID}", a.removeLine)
	r.Post("/api/cart/items/{lineID}/note", a.setNote)
	r.Post("/api/cart/preview-item", a.previewItem)

	r.Post("/api/flow/start", a.startPayment)
	r.Post("/api/flow/order-type", a.selectOrderType)
	r.Post("/api/flow/table-number", a.confirmTableNumber)
	r.Post("/api/flow/tip", a.selectTip)
	r.Post("/api/flow/cash", a.confirmCash)
	r.Post("/api/flow/phone-order", a.showPhoneOrder)
	r.Post("/api/flow/phone-order/confirm", a.confirmPhoneOrder)
	r.Post("/api/flow/cancel", a.cancel)
	r.Post("/api/flow/reset", a.reset)

	r.Get("/api/orders", a.listOrders)
	r.Post("/api/orders/{orderID}/recall", a.recallOrder)
	r.Post("/api/orders/{orderID}/refund", a.refundOrder)

	return r
}

// touch feeds the idle watchdog on every front-end interaction.
func (a *api) touch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.activity != nil {
			a.activity()
		}
		next.ServeHTTP(w, r)
	})
}

type stateResponse struct {
	Step          string      `json:"step"`
	Method        string      `json:"method"`
	OrderType     string      `json:"order_type"`
	TableNumber   string      `json:"table_number"`
	TipAmount     float64     `json:"tip_amount"`
	Cart          []cart.Line `json:"cart"`
	Totals        cart.Totals `json:"totals"`
	TipBase       float64     `json:"tip_base"`
	StatusMessage string      `json:"status_message,omitempty"`
	Employee      string      `json:"employee,omitempty"`
	LoggedIn      bool        `json:"logged_in"`
}

func (a *api) getState(w http.ResponseWriter, r *http.Request) {
	st := a.machine.State()
	resp := stateResponse{
		Step:          st.Step.String(),
		Method:        string(st.Method),
		OrderType:     string(st.OrderType),
		TableNumber:   st.TableNumber,
		TipAmount:     st.TipAmount,
		Cart:          a.cart.Lines(),
		Totals:        a.cart.Totals(st.Method == orders.MethodCard),
		TipBase:       a.cart.TipBase(),
		StatusMessage: a.machine.StatusMessage(),
		LoggedIn:      a.session.LoggedIn(),
	}
	if emp, ok := a.session.Current(); ok {
		resp.Employee = emp.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) getMenu(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.catalog)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if !decode(w, r, &req) {
		return
	}
	emp, err := a.auth.Authenticate(r.Context(), req.PIN)
	if err != nil {
		writeErr(w, err)
		return
	}
	a.session.Login(emp)
	writeJSON(w, http.StatusOK, emp)
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	a.session.Logout()
	writeJSON(w, http.StatusOK, okBody())
}

func (a *api) addItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID            string                   `json:"item_id"`
		SelectedModifiers []catalog.ModifierOption `json:"selected_modifiers"`
	}
	if !decode(w, r, &req) {
		return
	}
	item, ok := a.catalog.FindItem(req.ItemID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errBody("unknown menu item"))
		return
	}
	added, err := a.cart.AddItem(item, req.SelectedModifiers)
	if err != nil {
		writeErr(w, err)
		return
	}
	a.machine.SyncCart()
	writeJSON(w, http.StatusOK, added)
}

func (a *api) removeLine(w http.ResponseWriter, r *http.Request) {
	if err := a.cart.RemoveLine(chi.URLParam(r, "lineID")); err != nil {
		writeErr(w, err)
		return
	}
	a.machine.SyncCart()
	writeJSON(w, http.StatusOK, okBody())
}

func (a *api) setNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := a.cart.SetNote(chi.URLParam(r, "lineID"), req.Note); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody())
}

// previewItem pushes the modifier picker for the item being configured onto
// the customer display. Nothing is added to the cart yet.
func (a *api) previewItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID string `json:"item_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	item, ok := a.catalog.FindItem(req.ItemID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errBody("unknown menu item"))
		return
	}
	var groups []catalog.ModifierGroup
	for _, name := range item.ModifierGroups {
		if g, found := a.catalog.Group(name); found {
			groups = append(groups, g)
		}
	}
	a.machine.PreviewItem(item.Name, groups)
	writeJSON(w, http.StatusOK, okBody())
}

func (a *api) startPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
	}
	if !decode(w, r, &req) {
		return
	}
	a.respond(w, a.machine.StartPayment(orders.PaymentMethod(req.Method)))
}

func (a *api) selectOrderType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderType string `json:"order_type"`
	}
	if !decode(w, r, &req) {
		return
	}
	a.respond(w, a.machine.SelectOrderType(orders.OrderType(req.OrderType)))
}

func (a *api) confirmTableNumber(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TableNumber string `json:"table_number"`
	}
	if !decode(w, r, &req) {
		return
	}
	a.respond(w, a.machine.ConfirmTableNumber(req.TableNumber))
}

func (a *api) selectTip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	a.respond(w, a.machine.SelectTip(req.Amount))
}

func (a *api) confirmCash(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Received float64 `json:"received"`
	}
	if !decode(w, r, &req) {
		return
	}
	change, err := a.machine.ConfirmCashPayment(req.Received)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"change": change})
}

func (a *api) showPhoneOrder(w http.ResponseWriter, r *http.Request) {
	a.respond(w, a.machine.ShowPhoneOrder())
}

func (a *api) confirmPhoneOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerName string `json:"customer_name"`
	}
	if !decode(w, r, &req) {
		return
	}
	a.respond(w, a.machine.ConfirmPhoneOrder(req.CustomerName))
}

func (a *api) cancel(w http.ResponseWriter, r *http.Request) {
	a.respond(w, a.machine.Cancel())
}

func (a *api) reset(w http.ResponseWriter, r *http.Request) {
	a.machine.Reset()
	writeJSON(w, http.StatusOK, okBody())
}

func (a *api) listOrders(w http.ResponseWriter, r *http.Request) {
	if err := a.machine.ShowOrderList(); err != nil {
		writeErr(w, err)
		return
	}
	list, err := a.machine.ListOrders(r.Context())
	if err != nil {
		_ = a.machine.CloseOrderList()
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *api) recallOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := a.findOrder(w, r)
	if !ok {
		return
	}
	a.respond(w, a.machine.RecallOrder(order))
}

func (a *api) refundOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := a.findOrder(w, r)
	if !ok {
		return
	}
	if err := a.machine.RefundOrder(order); err != nil {
		writeErr(w, err)
		return
	}
	_ = a.machine.CloseOrderList()
	writeJSON(w, http.StatusOK, okBody())
}

func (a *api) findOrder(w http.ResponseWriter, r *http.Request) (orders.Order, bool) {
	orderID := chi.URLParam(r, "orderID")
	list, err := a.machine.ListOrders(r.Context())
	if err != nil {
		writeErr(w, err)
		return orders.Order{}, false
	}
	for _, o := range list {
		if o.ID == orderID {
			return o, true
		}
	}
	writeJSON(w, http.StatusNotFound, errBody("order not found"))
	return orders.Order{}, false
}

func (a *api) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody())
}

// writeErr maps domain errors onto HTTP statuses for the front-end.
func writeErr(w http.ResponseWriter, err error) {
	var validation *cart.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, errBody(validation.Reason))
	case errors.Is(err, payment.ErrInsufficientCash):
		writeJSON(w, http.StatusUnprocessableEntity, errBody(err.Error()))
	case errors.Is(err, employee.ErrInvalidPIN):
		writeJSON(w, http.StatusUnauthorized, errBody(err.Error()))
	case errors.Is(err, flow.ErrInvalidTransition),
		errors.Is(err, flow.ErrEmptyCart),
		errors.Is(err, cart.ErrCartFrozen):
		writeJSON(w, http.StatusConflict, errBody(err.Error()))
	case errors.Is(err, cart.ErrLineNotFound):
		writeJSON(w, http.StatusNotFound, errBody(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, errBody(err.Error()))
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func okBody() map[string]bool { return map[string]bool{"success": true} }

func errBody(msg string) map[string]interface{} {
	return map[string]interface{}{"success": false, "error": msg}
}
