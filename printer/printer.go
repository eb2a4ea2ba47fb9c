// Package printer sends receipt/kitchen jobs to the local printer server.
// Printing is strictly best-effort: failures are logged and never reach the
// payment path.
package printer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/op/go-logging"

	"github.com/timlee789/pos-sub000/cart"
	"github.com/timlee789/pos-sub000/orders"
)

var log = logging.MustGetLogger("log")

// Job mirrors the JSON body the printer server accepts.
type Job struct {
	Items         []cart.Line          `json:"items"`
	OrderNumber   int64                `json:"order_number"`
	TableNumber   string               `json:"table_number"`
	OrderType     orders.OrderType     `json:"order_type"`
	Subtotal      float64              `json:"subtotal"`
	Tax           float64              `json:"tax"`
	CardFee       float64              `json:"card_fee"`
	TipAmount     float64              `json:"tip_amount"`
	TotalAmount   float64              `json:"total_amount"`
	PaymentMethod orders.PaymentMethod `json:"payment_method"`
	EmployeeName  string               `json:"employee_name"`
	Date          string               `json:"date"`
	PrintKitchen  bool                 `json:"print_kitchen"`
	PrintReceipt  bool                 `json:"print_receipt"`
}

type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

// Print posts the job and swallows every failure. Returns whether the
// printer accepted the job, for logging and tests only.
func (c *Client) Print(job Job) bool {
	if c == nil || c.url == "" {
		return false
	}
	if job.Date == "" {
		job.Date = time.Now().Format("1/2/2006, 3:04:05 PM")
	}

	body, err := json.Marshal(job)
	if err != nil {
		log.Errorf("Failed to marshal print job: %v", err)
		return false
	}

	resp, err := c.http.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Errorf("Printer unreachable: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("Printer rejected job: %s", resp.Status)
		return false
	}
	return true
}
