package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// GatewayClient implements API against the payment gateway's REST wrappers
// (process/capture/cancel). Source identifies which physical reader serves
// this surface ("pos" or "kiosk").
type GatewayClient struct {
	baseURL string
	source  string
	http    *http.Client
}

func NewGatewayClient(baseURL, source string) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		source:  source,
		// the blocking process endpoint holds the request open while the
		// customer taps, so this client gets a generous timeout
		http: &http.Client{Timeout: 90 * time.Second},
	}
}

type gatewayResponse struct {
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	Status          string `json:"status,omitempty"`
}

func (g *GatewayClient) CreateIntent(ctx context.Context, amount float64) (string, error) {
	resp, err := g.post(ctx, "/api/stripe/process", map[string]interface{}{
		"amount": amount,
		"source": g.source,
	})
	if err != nil {
		return "", err
	}
	if resp.PaymentIntentID == "" {
		return "", errors.New("gateway returned no payment intent id")
	}
	return resp.PaymentIntentID, nil
}

func (g *GatewayClient) GetIntentStatus(ctx context.Context, intentID string) (IntentStatus, error) {
	resp, err := g.post(ctx, "/api/stripe/capture", map[string]interface{}{
		"payment_intent_id": intentID,
	})
	if err != nil {
		return "", err
	}
	switch IntentStatus(resp.Status) {
	case StatusSucceeded, StatusCanceled, StatusFailed, StatusPending:
		return IntentStatus(resp.Status), nil
	default:
		// unknown in-between states count as still pending
		return StatusPending, nil
	}
}

func (g *GatewayClient) CancelIntent(ctx context.Context, intentID string) error {
	_, err := g.post(ctx, "/api/stripe/cancel", map[string]interface{}{
		"payment_intent_id": intentID,
		"source":            g.source,
	})
	return err
}

func (g *GatewayClient) ResetTerminal(ctx context.Context) error {
	// same endpoint without an intent id: the reader is reset regardless
	_, err := g.post(ctx, "/api/stripe/cancel", map[string]interface{}{
		"source": g.source,
	})
	return err
}

func (g *GatewayClient) ProcessBlocking(ctx context.Context, amount float64) (string, IntentStatus, error) {
	resp, err := g.post(ctx, "/api/stripe/process", map[string]interface{}{
		"amount": amount,
		"source": g.source,
		"wait":   true,
	})
	if err != nil {
		return "", StatusFailed, err
	}
	// a charge without an intent id or a final status is never a success
	if resp.PaymentIntentID == "" {
		return "", StatusFailed, errors.New("gateway returned no payment intent id")
	}
	status := IntentStatus(resp.Status)
	if status == "" {
		return resp.PaymentIntentID, StatusFailed, errors.New("gateway returned no final status")
	}
	return resp.PaymentIntentID, status, nil
}

func (g *GatewayClient) post(ctx context.Context, path string, payload map[string]interface{}) (*gatewayResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s payload", path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "build %s request", path)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := g.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "post %s", path)
	}
	defer httpResp.Body.Close()

	var resp gatewayResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, errors.Wrapf(err, "decode %s response", path)
	}
	if httpResp.StatusCode != http.StatusOK || !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = httpResp.Status
		}
		return nil, errors.Errorf("gateway error: %s", msg)
	}
	return &resp, nil
}
