// Package api is the back-office HTTP surface: order persistence, menu,
// auth, settings, reports, the payment-gateway proxy and the display-state
// fallback endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"github.com/timlee789/pos-sub000/catalog"
	"github.com/timlee789/pos-sub000/employee"
	"github.com/timlee789/pos-sub000/orders"
	"github.com/timlee789/pos-sub000/server/store"
)

var log = logging.MustGetLogger("log")

// Persistence is what the handlers need from the database layer.
type Persistence interface {
	CreateOrder(ctx context.Context, o orders.Order) (orders.CreateResult, error)
	UpdateOrder(ctx context.Context, id string, patch orders.Patch) (orders.Order, error)
	GetOrder(ctx context.Context, id string) (orders.Order, error)
	ListOrders(ctx context.Context, limit int) ([]orders.Order, error)
	MarkStaleFailed(ctx context.Context, cutoff time.Time) (int64, error)
	AuthenticateEmployee(ctx context.Context, pin string) (employee.Employee, error)
	Settings(ctx context.Context) (map[string]string, error)
	Menu(ctx context.Context) (*catalog.Catalog, error)
	ClosingReport(ctx context.Context, since time.Time) ([]store.MethodTotals, error)
}

type Config struct {
	// GatewayAddress is the upstream payment gateway the stripe endpoints
	// proxy to. Empty disables card processing server-side.
	GatewayAddress string
	// StaleAfter is how old a `processing` order must be before the
	// reconcile sweep marks it failed.
	StaleAfter time.Duration
	// OpeningHour is the local hour the business day starts at, for the
	// closing report window.
	OpeningHour int
}

type Server struct {
	store   Persistence
	cfg     Config
	gateway *http.Client
	now     func() time.Time

	// last-write display snapshot, the fallback path when no broker is
	// available between terminal and customer display
	displayMu   sync.RWMutex
	displayBody json.RawMessage
}

func New(store Persistence, cfg Config) *Server {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	return &Server{
		store:   store,
		cfg:     cfg,
		gateway: &http.Client{Timeout: 90 * time.Second},
		now:     time.Now,
	}
}

// SetClock overrides the report/reconcile clock; tests only.
func (s *Server) SetClock(now func() time.Time) { s.now = now }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(logRequests)

	r.Post("/api/orders/create", s.createOrder)
	r.Post("/api/orders/update", s.updateOrder)
	r.Get("/api/orders/list", s.listOrders)
	r.Post("/api/orders/reconcile", s.reconcile)

	r.Post("/api/stripe/process", s.proxyGateway)
	r.Post("/api/stripe/capture", s.proxyGateway)
	r.Post("/api/stripe/cancel", s.proxyGateway)
	r.Post("/api/stripe/refund", s.refund)

	r.Get("/api/display", s.getDisplay)
	r.Post("/api/display", s.postDisplay)

	r.Get("/api/menu", s.getMenu)
	r.Get("/api/settings", s.getSettings)
	r.Post("/api/employees/auth", s.authEmployee)
	r.Get("/api/reports/closing", s.closingReport)

	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var o orders.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "decode order"))
		return
	}
	res, err := s.store.CreateOrder(r.Context(), o)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.ok(w, map[string]interface{}{
		"order_id":     res.OrderID,
		"order_number": res.OrderNumber,
	})
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"order_id"`
		orders.Patch
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "decode patch"))
		return
	}
	updated, err := s.store.UpdateOrder(r.Context(), req.OrderID, req.Patch)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.fail(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrStatusConflict):
		s.fail(w, http.StatusConflict, err)
	case err != nil:
		s.fail(w, http.StatusInternalServerError, err)
	default:
		s.ok(w, map[string]interface{}{"order": updated})
	}
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListOrders(r.Context(), 100)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.ok(w, map[string]interface{}{"orders": list})
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	cutoff := s.now().Add(-s.cfg.StaleAfter)
	swept, err := s.store.MarkStaleFailed(r.Context(), cutoff)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if swept > 0 {
		log.Warningf("Reconcile sweep marked %d stale orders failed", swept)
	}
	s.ok(w, map[string]interface{}{"swept": swept})
}

// refund forwards the refund to the gateway first; only after the gateway
// accepts does the order flip to refunded. A gateway failure leaves the
// status untouched and surfaces the error.
func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID         string  `json:"order_id"`
		PaymentIntentID string  `json:"payment_intent_id"`
		Amount          float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "decode refund"))
		return
	}
	if req.PaymentIntentID == "" {
		s.fail(w, http.StatusBadRequest, errors.New("payment_intent_id is required"))
		return
	}

	if err := s.forwardRefund(r.Context(), req.PaymentIntentID, req.Amount); err != nil {
		s.fail(w, http.StatusBadGateway, err)
		return
	}

	if _, err := s.store.UpdateOrder(r.Context(), req.OrderID,
		orders.Patch{Status: orders.StatusRefunded}); err != nil {
		// money already moved back; keep the refund visible in the logs
		log.Errorf("Refunded %s at gateway but status update failed: %v", req.OrderID, err)
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) forwardRefund(ctx context.Context, intentID string, amount float64) error {
	if s.cfg.GatewayAddress == "" {
		return errors.New("no payment gateway configured")
	}
	body, _ := json.Marshal(map[string]interface{}{
		"payment_intent_id": intentID,
		"amount":            amount,
	})
	resp, err := s.postGateway(ctx, "/api/stripe/refund", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var parsed struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return errors.Wrap(err, "decode gateway refund response")
	}
	if resp.StatusCode != http.StatusOK || !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = resp.Status
		}
		return errors.Errorf("gateway refund failed: %s", msg)
	}
	return nil
}

// proxyGateway forwards process/capture/cancel untouched. The terminals
// normally talk to the gateway directly; this path keeps older builds that
// route everything through the back office working.
func (s *Server) proxyGateway(w http.ResponseWriter, r *http.Request) {
	if s.cfg.GatewayAddress == "" {
		s.fail(w, http.StatusBadGateway, errors.New("no payment gateway configured"))
		return
	}
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "decode gateway payload"))
		return
	}
	resp, err := s.postGateway(r.Context(), r.URL.Path, body)
	if err != nil {
		s.fail(w, http.StatusBadGateway, err)
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	var passthrough json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&passthrough); err != nil {
		log.Errorf("Bad gateway response on %s: %v", r.URL.Path, err)
		return
	}
	if _, err := w.Write(passthrough); err != nil {
		log.Errorf("Failed to write gateway response: %v", err)
	}
}

func (s *Server) postGateway(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.GatewayAddress+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "build gateway request %s", path)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.gateway.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "gateway %s", path)
	}
	return resp, nil
}

func (s *Server) getDisplay(w http.ResponseWriter, r *http.Request) {
	s.displayMu.RLock()
	body := s.displayBody
	s.displayMu.RUnlock()
	if body == nil {
		body = json.RawMessage(`{}`)
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		log.Errorf("Failed to write display state: %v", err)
	}
}

func (s *Server) postDisplay(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "decode display state"))
		return
	}
	s.displayMu.Lock()
	s.displayBody = body
	s.displayMu.Unlock()
	s.ok(w, nil)
}

func (s *Server) getMenu(w http.ResponseWriter, r *http.Request) {
	cat, err := s.store.Menu(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories":      cat.Categories,
		"items":           cat.Items,
		"modifier_groups": cat.ModifierGroups,
	})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.Settings(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) authEmployee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "decode auth request"))
		return
	}
	emp, err := s.store.AuthenticateEmployee(r.Context(), req.PIN)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid PIN"})
		return
	}
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// closingReport aggregates the business day that started at OpeningHour.
// Before opening, the window covers yesterday's day.
func (s *Server) closingReport(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	opening := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.OpeningHour, 0, 0, 0, now.Location())
	if now.Before(opening) {
		opening = opening.AddDate(0, 0, -1)
	}
	report, err := s.store.ClosingReport(r.Context(), opening)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.ok(w, map[string]interface{}{
		"since":   opening,
		"methods": report,
	})
}

func (s *Server) ok(w http.ResponseWriter, extra map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	log.Errorf("Request failed: %v", err)
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}
