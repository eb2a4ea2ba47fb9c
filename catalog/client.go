package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Mode selects which visibility flag filters the fetched menu.
type Mode string

const (
	ModePos   Mode = "pos"
	ModeKiosk Mode = "kiosk"
)

// Client fetches the menu from the back-office API once per session.
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

type menuResponse struct {
	Categories     []Category               `json:"categories"`
	Items          []MenuItem               `json:"items"`
	ModifierGroups map[string]ModifierGroup `json:"modifier_groups"`
}

// Fetch loads categories, items and modifier groups for the given surface.
// Visibility filtering happens client-side so the same endpoint serves both.
func (c *Client) Fetch(ctx context.Context, mode Mode) (*Catalog, error) {
	url := fmt.Sprintf("%s/api/menu?mode=%s", c.baseURL, mode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build menu request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch menu")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("menu fetch returned status %d", resp.StatusCode)
	}

	var body menuResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode menu response")
	}

	cat := &Catalog{
		Categories:     body.Categories,
		Items:          filterVisible(body.Items, mode),
		ModifierGroups: body.ModifierGroups,
	}
	if cat.ModifierGroups == nil {
		cat.ModifierGroups = map[string]ModifierGroup{}
	}
	sortCatalog(cat)
	return cat, nil
}

func filterVisible(items []MenuItem, mode Mode) []MenuItem {
	out := make([]MenuItem, 0, len(items))
	for _, it := range items {
		if mode == ModeKiosk && !it.KioskVisible {
			continue
		}
		if mode == ModePos && !it.PosVisible {
			continue
		}
		out = append(out, it)
	}
	return out
}

func sortCatalog(c *Catalog) {
	sort.SliceStable(c.Categories, func(i, j int) bool {
		return c.Categories[i].SortOrder < c.Categories[j].SortOrder
	})
	sort.SliceStable(c.Items, func(i, j int) bool {
		return c.Items[i].SortOrder < c.Items[j].SortOrder
	})
}
