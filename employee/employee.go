// Package employee handles PIN login sessions on a POS terminal.
package employee

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidPIN = errors.New("invalid PIN code")

type Employee struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
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

// Authenticate looks the PIN up in the employee store. A miss is
// ErrInvalidPIN, not a transport error.
func (c *Client) Authenticate(ctx context.Context, pin string) (Employee, error) {
	if pin == "" {
		return Employee{}, ErrInvalidPIN
	}

	body, _ := json.Marshal(map[string]string{"pin": pin})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/employees/auth", bytes.NewReader(body))
	if err != nil {
		return Employee{}, errors.Wrap(err, "build auth request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Employee{}, errors.Wrap(err, "authenticate")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized {
		return Employee{}, ErrInvalidPIN
	}
	if resp.StatusCode != http.StatusOK {
		return Employee{}, errors.Errorf("auth returned status %d", resp.StatusCode)
	}

	var emp Employee
	if err := json.NewDecoder(resp.Body).Decode(&emp); err != nil {
		return Employee{}, errors.Wrap(err, "decode employee")
	}
	return emp, nil
}

// Session holds the logged-in employee for the duration of a terminal
// session. The zero value is logged out.
type Session struct {
	current *Employee
}

func (s *Session) Login(emp Employee) { s.current = &emp }

func (s *Session) Logout() { s.current = nil }

func (s *Session) LoggedIn() bool { return s.current != nil }

// Name returns the current employee name, or "Unknown" when logged out;
// persisted orders always carry an employee name.
func (s *Session) Name() string {
	if s.current == nil {
		return "Unknown"
	}
	return s.current.Name
}

func (s *Session) Current() (Employee, bool) {
	if s.current == nil {
		return Employee{}, false
	}
	return *s.current, true
}
