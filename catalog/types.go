package catalog

// ModifierOption is a single priced choice inside a modifier group.
type ModifierOption struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ModifierGroup is an ordered list of options, keyed by name on menu items.
type ModifierGroup struct {
	Name    string           `json:"name"`
	Options []ModifierOption `json:"options"`
}

type MenuItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// PosName is the short name printed on kitchen tickets; empty means Name.
	PosName        string   `json:"pos_name,omitempty"`
	Price          float64  `json:"price"`
	Category       string   `json:"category"`
	Description    string   `json:"description,omitempty"`
	ImageURL       string   `json:"image_url,omitempty"`
	ModifierGroups []string `json:"modifier_groups,omitempty"`
	SortOrder      int      `json:"sort_order"`
	IsAvailable    bool     `json:"is_available"`
	KioskVisible   bool     `json:"is_kiosk_visible"`
	PosVisible     bool     `json:"is_pos_visible"`

	// DayOfWeekSpecial restricts ordering to a single weekday, e.g. "Friday".
	DayOfWeekSpecial string `json:"day_of_week_special,omitempty"`

	// IsSpecialBundle marks entrées that auto-attach zero-priced side lines.
	// BundleItems lists the child item names explicitly; when empty the legacy
	// description-keyword heuristic applies.
	IsSpecialBundle bool     `json:"is_special_bundle,omitempty"`
	BundleItems     []string `json:"bundle_items,omitempty"`

	// RequiresFlavorAndSize forces a selection from both the size and flavor
	// groups before the item can enter a cart (milkshakes).
	RequiresFlavorAndSize bool `json:"requires_flavor_and_size,omitempty"`
}

// TicketName is the name used on kitchen tickets and persisted order lines.
func (m MenuItem) TicketName() string {
	if m.PosName != "" {
		return m.PosName
	}
	return m.Name
}

type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

// Catalog is the immutable reference data a terminal loads once per session.
type Catalog struct {
	Categories     []Category
	Items          []MenuItem
	ModifierGroups map[string]ModifierGroup
}

// FindItem returns the first item whose id, name or POS name matches exactly.
func (c *Catalog) FindItem(key string) (MenuItem, bool) {
	for _, it := range c.Items {
		if it.ID == key || it.Name == key || (it.PosName != "" && it.PosName == key) {
			return it, true
		}
	}
	return MenuItem{}, false
}

// Group looks up a modifier group by name.
func (c *Catalog) Group(name string) (ModifierGroup, bool) {
	g, ok := c.ModifierGroups[name]
	return g, ok
}

// ItemsInCategory returns the items of one category in sort order.
// Items are assumed already sorted by the loader.
func (c *Catalog) ItemsInCategory(category string) []MenuItem {
	var out []MenuItem
	for _, it := range c.Items {
		if it.Category == category {
			out = append(out, it)
		}
	}
	return out
}
