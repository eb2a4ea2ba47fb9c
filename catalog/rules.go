package catalog

import (
	"strings"
	"time"
)

// Canonical side items the legacy bundle heuristic resolves against.
var (
	friesNames = []string{"1/2 FF", "French Fries"}
	drinkNames = []string{"Soft Drink"}
)

// AvailableOn reports whether a day-of-week special may be ordered on the
// given weekday. Items without the tag are always orderable.
func AvailableOn(item MenuItem, weekday time.Weekday) bool {
	if item.DayOfWeekSpecial == "" {
		return true
	}
	return strings.EqualFold(item.DayOfWeekSpecial, weekday.String())
}

// BundleChildren resolves the side items a special bundle auto-attaches.
// Declared BundleItems win; otherwise the legacy description keywords are
// matched against the canonical catalog items. Missing children are skipped,
// matching the source behavior of silently not attaching an absent side.
func (c *Catalog) BundleChildren(item MenuItem) []MenuItem {
	if !item.IsSpecialBundle {
		return nil
	}
	if len(item.BundleItems) > 0 {
		var children []MenuItem
		for _, name := range item.BundleItems {
			if child, ok := c.FindItem(name); ok {
				children = append(children, child)
			}
		}
		return children
	}
	return c.keywordChildren(item)
}

// keywordChildren is the legacy heuristic: substring checks on the free-text
// description. Kept as a migration path for rows without declared children.
func (c *Catalog) keywordChildren(item MenuItem) []MenuItem {
	desc := strings.ToLower(item.Description)
	var children []MenuItem
	if strings.Contains(desc, "fries") || strings.Contains(desc, "ff") {
		if fries, ok := c.findAny(friesNames); ok {
			children = append(children, fries)
		}
	}
	if strings.Contains(desc, "drink") || strings.Contains(desc, "w/d") {
		if drink, ok := c.findAny(drinkNames); ok {
			children = append(children, drink)
		}
	}
	return children
}

func (c *Catalog) findAny(names []string) (MenuItem, bool) {
	for _, n := range names {
		if it, ok := c.FindItem(n); ok {
			return it, true
		}
	}
	return MenuItem{}, false
}

// RequiredSelections returns the modifier groups that must have at least one
// selected option before the item may be added. Only the flavor/size rule
// imposes required groups today.
func (c *Catalog) RequiredSelections(item MenuItem) []string {
	if !item.RequiresFlavorAndSize {
		return nil
	}
	var required []string
	for _, name := range item.ModifierGroups {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "size") || strings.Contains(lower, "flavor") {
			required = append(required, name)
		}
	}
	return required
}
