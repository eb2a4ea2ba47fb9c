package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Store is what the flow needs from order persistence; Client is the HTTP
// implementation against the back-office API.
type Store interface {
	Create(ctx context.Context, order Order) (CreateResult, error)
	Update(ctx context.Context, orderID string, patch Patch) (Order, error)
	List(ctx context.Context) ([]Order, error)
	Refund(ctx context.Context, orderID, transactionID string, amount float64) error
}

type CreateResult struct {
	OrderID     string `json:"order_id"`
	OrderNumber int64  `json:"order_number"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	OrderID string          `json:"order_id,omitempty"`
	Number  int64           `json:"order_number,omitempty"`
	Order   json.RawMessage `json:"order,omitempty"`
	Orders  json.RawMessage `json:"orders,omitempty"`
	Swept   int             `json:"swept,omitempty"`
}

func (c *Client) Create(ctx context.Context, order Order) (CreateResult, error) {
	env, err := c.post(ctx, "/api/orders/create", order)
	if err != nil {
		return CreateResult{}, err
	}
	return CreateResult{OrderID: env.OrderID, OrderNumber: env.Number}, nil
}

func (c *Client) Update(ctx context.Context, orderID string, patch Patch) (Order, error) {
	payload := struct {
		OrderID string `json:"order_id"`
		Patch
	}{OrderID: orderID, Patch: patch}

	env, err := c.post(ctx, "/api/orders/update", payload)
	if err != nil {
		return Order{}, err
	}
	var updated Order
	if err := json.Unmarshal(env.Order, &updated); err != nil {
		return Order{}, errors.Wrap(err, "decode updated order")
	}
	return updated, nil
}

func (c *Client) List(ctx context.Context) ([]Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/orders/list", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build list request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	var list []Order
	if err := json.Unmarshal(env.Orders, &list); err != nil {
		return nil, errors.Wrap(err, "decode order list")
	}
	return list, nil
}

// Refund asks the back office to refund through the payment gateway and then
// flip the status. A gateway-side failure comes back as an error and the
// order stays in its prior status.
func (c *Client) Refund(ctx context.Context, orderID, transactionID string, amount float64) error {
	payload := map[string]interface{}{
		"order_id":          orderID,
		"payment_intent_id": transactionID,
		"amount":            amount,
	}
	_, err := c.post(ctx, "/api/stripe/refund", payload)
	return err
}

// Reconcile triggers the stale-`processing` sweep and returns how many
// orders were marked failed.
func (c *Client) Reconcile(ctx context.Context) (int, error) {
	env, err := c.post(ctx, "/api/orders/reconcile", struct{}{})
	if err != nil {
		return 0, err
	}
	return env.Swept, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*apiEnvelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s payload", path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "build %s request", path)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "post %s", path)
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp)
}

func decodeEnvelope(resp *http.Response) (*apiEnvelope, error) {
	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return nil, errors.Errorf("order api error: %s", msg)
	}
	return &env, nil
}
