// Package cart owns the in-memory order-in-progress: line items, bundle
// expansion, grouped removal and running totals. It performs no I/O.
package cart

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/timlee789/pos-sub000/catalog"
)

var (
	ErrCartFrozen   = errors.New("cart is frozen while payment is in progress")
	ErrLineNotFound = errors.New("cart line not found")
)

// ValidationError rejects an add before any state changes; the UI shows
// Reason directly.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Line is one cart row: a menu item snapshot plus selections. Quantity is
// always 1 in this design, duplicates are separate lines.
type Line struct {
	ID                string                   `json:"unique_cart_id"`
	ItemID            string                   `json:"item_id"`
	Name              string                   `json:"name"`
	UnitPrice         float64                  `json:"price"`
	SelectedModifiers []catalog.ModifierOption `json:"selected_modifiers"`
	TotalPrice        float64                  `json:"total_price"`
	Quantity          int                      `json:"quantity"`
	Note              string                   `json:"note,omitempty"`
	// GroupID is shared by every line added together as a bundle.
	GroupID string `json:"group_id,omitempty"`
}

// Rates are the configured tax and card-fee rates (e.g. 0.07 and 0.03).
type Rates struct {
	Tax     float64
	CardFee float64
}

// Totals is the result of one totals computation. Tip is never included
// here; the flow adds it on top of GrandTotal.
type Totals struct {
	Subtotal   float64
	Tax        float64
	CardFee    float64
	GrandTotal float64
}

type Cart struct {
	catalog *catalog.Catalog
	rates   Rates
	lines   []Line
	frozen  bool
	now     func() time.Time
}

func New(cat *catalog.Catalog, rates Rates) *Cart {
	return &Cart{catalog: cat, rates: rates, now: time.Now}
}

// SetClock overrides the weekday clock; tests only.
func (c *Cart) SetClock(now func() time.Time) { c.now = now }

// AddItem validates the item, computes the line total and appends the line.
// Special bundles additionally append zero-priced child lines sharing one
// group id. Returns every line that was added.
func (c *Cart) AddItem(item catalog.MenuItem, selected []catalog.ModifierOption) ([]Line, error) {
	if c.frozen {
		return nil, ErrCartFrozen
	}
	if !item.IsAvailable {
		return nil, &ValidationError{Reason: fmt.Sprintf("%s is not available today", item.Name)}
	}
	if !catalog.AvailableOn(item, c.now().Weekday()) {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("%s is only available on %s", item.Name, item.DayOfWeekSpecial),
		}
	}
	if err := c.checkRequiredSelections(item, selected); err != nil {
		return nil, err
	}

	optionsPrice := 0.0
	for _, opt := range selected {
		optionsPrice += opt.Price
	}

	groupID := ""
	if item.IsSpecialBundle {
		groupID = uuid.NewString()
	}

	added := []Line{{
		ID:                uuid.NewString(),
		ItemID:            item.ID,
		Name:              item.TicketName(),
		UnitPrice:         item.Price,
		SelectedModifiers: selected,
		TotalPrice:        item.Price + optionsPrice,
		Quantity:          1,
		GroupID:           groupID,
	}}

	for _, child := range c.catalog.BundleChildren(item) {
		added = append(added, Line{
			ID:         uuid.NewString(),
			ItemID:     child.ID,
			Name:       "(Set) " + child.TicketName(),
			UnitPrice:  0,
			TotalPrice: 0,
			Quantity:   1,
			GroupID:    groupID,
		})
	}

	c.lines = append(c.lines, added...)
	return added, nil
}

func (c *Cart) checkRequiredSelections(item catalog.MenuItem, selected []catalog.ModifierOption) error {
	for _, groupName := range c.catalog.RequiredSelections(item) {
		group, ok := c.catalog.Group(groupName)
		if !ok {
			continue
		}
		if !hasSelectionFrom(group, selected) {
			return &ValidationError{Reason: fmt.Sprintf("Please select a %s", group.Name)}
		}
	}
	return nil
}

func hasSelectionFrom(group catalog.ModifierGroup, selected []catalog.ModifierOption) bool {
	for _, opt := range group.Options {
		for _, sel := range selected {
			if sel.Name == opt.Name {
				return true
			}
		}
	}
	return false
}

// RemoveLine deletes one line, or the whole bundle when the line carries a
// group id. Bundle lines cannot be deleted independently.
func (c *Cart) RemoveLine(lineID string) error {
	if c.frozen {
		return ErrCartFrozen
	}
	target, ok := c.find(lineID)
	if !ok {
		return ErrLineNotFound
	}
	keep := c.lines[:0]
	for _, l := range c.lines {
		if target.GroupID != "" {
			if l.GroupID != target.GroupID {
				keep = append(keep, l)
			}
		} else if l.ID != lineID {
			keep = append(keep, l)
		}
	}
	c.lines = keep
	return nil
}

// SetNote attaches free-text kitchen instructions to one line.
func (c *Cart) SetNote(lineID, note string) error {
	if c.frozen {
		return ErrCartFrozen
	}
	for i := range c.lines {
		if c.lines[i].ID == lineID {
			c.lines[i].Note = note
			return nil
		}
	}
	return ErrLineNotFound
}

func (c *Cart) find(lineID string) (Line, bool) {
	for _, l := range c.lines {
		if l.ID == lineID {
			return l, true
		}
	}
	return Line{}, false
}

// Subtotal is the sum of line totals times quantity.
func (c *Cart) Subtotal() float64 {
	sum := 0.0
	for _, l := range c.lines {
		sum += l.TotalPrice * float64(l.Quantity)
	}
	return sum
}

// Totals derives tax and, when the payment method is card, the card fee.
// Pure: the cart is not mutated and repeated calls agree.
func (c *Cart) Totals(withCardFee bool) Totals {
	t := Totals{Subtotal: c.Subtotal()}
	t.Tax = t.Subtotal * c.rates.Tax
	if withCardFee {
		t.CardFee = (t.Subtotal + t.Tax) * c.rates.CardFee
	}
	t.GrandTotal = t.Subtotal + t.Tax + t.CardFee
	return t
}

// TipBase is the amount tip percentages apply to: subtotal plus tax, before
// any card fee. This is the authoritative rule; see DESIGN.md.
func (c *Cart) TipBase() float64 {
	s := c.Subtotal()
	return s + s*c.rates.Tax
}

// Freeze locks the cart once payment is initiated so historical totals
// already sent to payment or print never shift underneath them.
func (c *Cart) Freeze()   { c.frozen = true }
func (c *Cart) Unfreeze() { c.frozen = false }

// Clear empties and unfreezes the cart. Called exactly once per completed or
// abandoned order.
func (c *Cart) Clear() {
	c.lines = nil
	c.frozen = false
}

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

func (c *Cart) Size() int { return len(c.lines) }

// Lines returns a copy of the current lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Restore replaces the cart content with previously persisted lines, used
// when recalling an open order. The cart must not be frozen.
func (c *Cart) Restore(lines []Line) error {
	if c.frozen {
		return ErrCartFrozen
	}
	c.lines = make([]Line, len(lines))
	copy(c.lines, lines)
	return nil
}
