package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timlee789/pos-sub000/catalog"
	"github.com/timlee789/pos-sub000/employee"
	"github.com/timlee789/pos-sub000/orders"
	"github.com/timlee789/pos-sub000/server/store"
)

// fakeStore is an in-memory Persistence used by the handler tests.
type fakeStore struct {
	orders     map[string]orders.Order
	nextNumber int64
	employees  map[string]employee.Employee
	settings   map[string]string
	menu       *catalog.Catalog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:    map[string]orders.Order{},
		employees: map[string]employee.Employee{},
		settings:  map[string]string{},
		menu:      &catalog.Catalog{ModifierGroups: map[string]catalog.ModifierGroup{}},
	}
}

func (f *fakeStore) CreateOrder(_ context.Context, o orders.Order) (orders.CreateResult, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	f.nextNumber++
	o.OrderNumber = f.nextNumber
	if o.Status == "" {
		o.Status = orders.StatusOpen
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	f.orders[o.ID] = o
	return orders.CreateResult{OrderID: o.ID, OrderNumber: o.OrderNumber}, nil
}

func (f *fakeStore) UpdateOrder(_ context.Context, id string, patch orders.Patch) (orders.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return orders.Order{}, store.ErrNotFound
	}
	if patch.Status != "" {
		if !o.Status.CanBecome(patch.Status) {
			return orders.Order{}, store.ErrStatusConflict
		}
		o.Status = patch.Status
	}
	if patch.PaymentMethod != "" {
		o.PaymentMethod = patch.PaymentMethod
	}
	if patch.TransactionID != "" {
		o.TransactionID = patch.TransactionID
	}
	if patch.Tip != nil {
		o.Tip = *patch.Tip
	}
	if patch.Total != nil {
		o.Total = *patch.Total
	}
	f.orders[id] = o
	return o, nil
}

func (f *fakeStore) GetOrder(_ context.Context, id string) (orders.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return orders.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (f *fakeStore) ListOrders(_ context.Context, _ int) ([]orders.Order, error) {
	out := make([]orders.Order, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) MarkStaleFailed(_ context.Context, cutoff time.Time) (int64, error) {
	var swept int64
	for id, o := range f.orders {
		if o.Status == orders.StatusProcessing && o.CreatedAt.Before(cutoff) {
			o.Status = orders.StatusFailed
			f.orders[id] = o
			swept++
		}
	}
	return swept, nil
}

func (f *fakeStore) AuthenticateEmployee(_ context.Context, pin string) (employee.Employee, error) {
	emp, ok := f.employees[pin]
	if !ok {
		return employee.Employee{}, store.ErrNotFound
	}
	return emp, nil
}

func (f *fakeStore) Settings(_ context.Context) (map[string]string, error) {
	return f.settings, nil
}

func (f *fakeStore) Menu(_ context.Context) (*catalog.Catalog, error) {
	return f.menu, nil
}

func (f *fakeStore) ClosingReport(_ context.Context, since time.Time) ([]store.MethodTotals, error) {
	byMethod := map[string]*store.MethodTotals{}
	for _, o := range f.orders {
		if o.Status != orders.StatusPaid && o.Status != orders.StatusRefunded {
			continue
		}
		if o.CreatedAt.Before(since) {
			continue
		}
		mt, ok := byMethod[string(o.PaymentMethod)]
		if !ok {
			mt = &store.MethodTotals{PaymentMethod: string(o.PaymentMethod)}
			byMethod[string(o.PaymentMethod)] = mt
		}
		mt.Count++
		mt.Sales += o.Total
		mt.Tips += o.Tip
	}
	out := make([]store.MethodTotals, 0, len(byMethod))
	for _, mt := range byMethod {
		out = append(out, *mt)
	}
	return out, nil
}

func newTestServer(fs *fakeStore, gateway string) *httptest.Server {
	s := New(fs, Config{
		GatewayAddress: gateway,
		StaleAfter:     15 * time.Minute,
		OpeningHour:    6,
	})
	return httptest.NewServer(s.Router())
}

func postJSON(t *testing.T, url string, body interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var parsed map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return parsed
}

func TestCreateAndListOrders(t *testing.T) {
	fs := newFakeStore()
	srv := newTestServer(fs, "")
	defer srv.Close()

	created := postJSON(t, srv.URL+"/api/orders/create", orders.Order{
		Subtotal: 8, Tax: 0.56, Total: 8.56,
		PaymentMethod: orders.MethodCash,
		Status:        orders.StatusPaid,
	})
	assert.Equal(t, true, created["success"])
	assert.NotEmpty(t, created["order_id"])
	assert.EqualValues(t, 1, created["order_number"])

	resp, err := http.Get(srv.URL + "/api/orders/list")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list struct {
		Success bool           `json:"success"`
		Orders  []orders.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.True(t, list.Success)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, orders.StatusPaid, list.Orders[0].Status)
}

func TestUpdateOrderRejectsBackwardsTransition(t *testing.T) {
	fs := newFakeStore()
	srv := newTestServer(fs, "")
	defer srv.Close()

	created := postJSON(t, srv.URL+"/api/orders/create", orders.Order{Status: orders.StatusPaid})
	orderID := created["order_id"].(string)

	raw, _ := json.Marshal(map[string]interface{}{"order_id": orderID, "status": "open"})
	resp, err := http.Post(srv.URL+"/api/orders/update", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, orders.StatusPaid, fs.orders[orderID].Status)
}

func TestReconcileSweepsOnlyStaleProcessing(t *testing.T) {
	fs := newFakeStore()
	srv := newTestServer(fs, "")
	defer srv.Close()

	fs.orders["stale"] = orders.Order{
		ID: "stale", Status: orders.StatusProcessing,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	fs.orders["fresh"] = orders.Order{
		ID: "fresh", Status: orders.StatusProcessing,
		CreatedAt: time.Now(),
	}
	fs.orders["paid"] = orders.Order{
		ID: "paid", Status: orders.StatusPaid,
		CreatedAt: time.Now().Add(-time.Hour),
	}

	result := postJSON(t, srv.URL+"/api/orders/reconcile", struct{}{})
	assert.Equal(t, true, result["success"])
	assert.EqualValues(t, 1, result["swept"])
	assert.Equal(t, orders.StatusFailed, fs.orders["stale"].Status)
	assert.Equal(t, orders.StatusProcessing, fs.orders["fresh"].Status)
	assert.Equal(t, orders.StatusPaid, fs.orders["paid"].Status)
}

func TestRefundGatewayFirst(t *testing.T) {
	var gatewayCalled bool
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/stripe/refund", r.URL.Path)
		gatewayCalled = true
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer gateway.Close()

	fs := newFakeStore()
	srv := newTestServer(fs, gateway.URL)
	defer srv.Close()

	created := postJSON(t, srv.URL+"/api/orders/create", orders.Order{Status: orders.StatusPaid})
	orderID := created["order_id"].(string)

	result := postJSON(t, srv.URL+"/api/stripe/refund", map[string]interface{}{
		"order_id":          orderID,
		"payment_intent_id": "pi_1",
		"amount":            8.56,
	})
	assert.Equal(t, true, result["success"])
	assert.True(t, gatewayCalled)
	assert.Equal(t, orders.StatusRefunded, fs.orders[orderID].Status)
}

func TestRefundGatewayFailureLeavesStatus(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "processor says no"})
	}))
	defer gateway.Close()

	fs := newFakeStore()
	srv := newTestServer(fs, gateway.URL)
	defer srv.Close()

	created := postJSON(t, srv.URL+"/api/orders/create", orders.Order{Status: orders.StatusPaid})
	orderID := created["order_id"].(string)

	result := postJSON(t, srv.URL+"/api/stripe/refund", map[string]interface{}{
		"order_id":          orderID,
		"payment_intent_id": "pi_1",
		"amount":            8.56,
	})
	assert.Equal(t, false, result["success"])
	assert.Equal(t, orders.StatusPaid, fs.orders[orderID].Status, "status untouched when the gateway refuses")
}

func TestGatewayProxyPassthrough(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/stripe/process", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":           true,
			"payment_intent_id": "pi_42",
		})
	}))
	defer gateway.Close()

	srv := newTestServer(newFakeStore(), gateway.URL)
	defer srv.Close()

	result := postJSON(t, srv.URL+"/api/stripe/process", map[string]interface{}{"amount": 10.0, "source": "pos"})
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "pi_42", result["payment_intent_id"])
}

func TestGatewayProxyWithoutUpstream(t *testing.T) {
	srv := newTestServer(newFakeStore(), "")
	defer srv.Close()

	raw, _ := json.Marshal(map[string]interface{}{"amount": 10.0})
	resp, err := http.Post(srv.URL+"/api/stripe/process", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestDisplayLastWrite(t *testing.T) {
	srv := newTestServer(newFakeStore(), "")
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/display")
	require.NoError(t, err)
	var empty map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&empty))
	resp.Body.Close()
	assert.Empty(t, empty)

	postJSON(t, srv.URL+"/api/display", map[string]interface{}{"mode": "CART", "total": 8.56})
	postJSON(t, srv.URL+"/api/display", map[string]interface{}{"mode": "TIPPING", "total": 8.56})

	resp, err = http.Get(srv.URL + "/api/display")
	require.NoError(t, err)
	defer resp.Body.Close()
	var snap map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "TIPPING", snap["mode"], "last write wins")
}

func TestEmployeeAuth(t *testing.T) {
	fs := newFakeStore()
	fs.employees["1234"] = employee.Employee{ID: 7, Name: "Dana", Role: "manager"}
	srv := newTestServer(fs, "")
	defer srv.Close()

	raw, _ := json.Marshal(map[string]string{"pin": "1234"})
	resp, err := http.Post(srv.URL+"/api/employees/auth", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var emp employee.Employee
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&emp))
	assert.Equal(t, "Dana", emp.Name)

	raw, _ = json.Marshal(map[string]string{"pin": "0000"})
	resp2, err := http.Post(srv.URL+"/api/employees/auth", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestClosingReportWindow(t *testing.T) {
	fs := newFakeStore()
	s := New(fs, Config{OpeningHour: 6})
	// fixed clock: 2 PM, opening was 6 AM the same day
	now := time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	fs.orders["today-cash"] = orders.Order{
		ID: "today-cash", Status: orders.StatusPaid, PaymentMethod: orders.MethodCash,
		Total: 8.56, CreatedAt: now.Add(-2 * time.Hour),
	}
	fs.orders["today-card"] = orders.Order{
		ID: "today-card", Status: orders.StatusPaid, PaymentMethod: orders.MethodCard,
		Total: 10.10, Tip: 1.50, CreatedAt: now.Add(-time.Hour),
	}
	fs.orders["yesterday"] = orders.Order{
		ID: "yesterday", Status: orders.StatusPaid, PaymentMethod: orders.MethodCash,
		Total: 99, CreatedAt: now.Add(-24 * time.Hour),
	}

	resp, err := http.Get(srv.URL + "/api/reports/closing")
	require.NoError(t, err)
	defer resp.Body.Close()
	var report struct {
		Success bool                 `json:"success"`
		Methods []store.MethodTotals `json:"methods"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.True(t, report.Success)
	require.Len(t, report.Methods, 2, "yesterday's sales are outside the window")

	totals := map[string]store.MethodTotals{}
	for _, m := range report.Methods {
		totals[m.PaymentMethod] = m
	}
	assert.InDelta(t, 8.56, totals["CASH"].Sales, 1e-9)
	assert.InDelta(t, 1.50, totals["CARD"].Tips, 1e-9)
}
